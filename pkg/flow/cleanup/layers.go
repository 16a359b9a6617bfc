package cleanup

import "github.com/espalierhq/espalier/pkg/flow"

// bridgeLayers keeps layer boundary pins consistent with the inner
// graph they mirror. A boundary pin exists only to relay an edge
// between a pin inside the layer and a pin outside it; one that no
// longer touches any inner pin is removed together with both sides of
// its remaining edges.
type bridgeLayers struct {
	members  map[string]flow.StringSet
	removals []boundaryRemoval
}

type boundaryRemoval struct {
	layer *flow.Layer
	pin   *flow.Pin
}

func (f *bridgeLayers) Name() string { return "bridge_layers" }

func (f *bridgeLayers) Collect(b *flow.Board) {
	f.removals = f.removals[:0]
	// Inner membership per layer: contained nodes plus nested layers.
	f.members = make(map[string]flow.StringSet, len(b.Layers))
	for id, l := range b.Layers {
		members := l.Nodes.Clone()
		for childID, child := range b.Layers {
			if child.ParentID == id {
				members.Add(childID)
			}
		}
		f.members[id] = members
	}
}

func (f *bridgeLayers) Apply(b *flow.Board, lookup map[string]flow.PinRef) {
	for layerID, l := range b.Layers {
		members := f.members[layerID]
		for _, pin := range l.Pins {
			if !f.bridgesInner(pin, members, lookup) {
				f.removals = append(f.removals, boundaryRemoval{layer: l, pin: pin})
			}
		}
	}
}

// bridgesInner reports whether any neighbor of the boundary pin is
// owned by a node or layer inside the boundary's own layer.
func (f *bridgeLayers) bridgesInner(pin *flow.Pin, members flow.StringSet, lookup map[string]flow.PinRef) bool {
	neighbors := append(pin.DependsOn.Values(), pin.ConnectedTo.Values()...)
	for _, id := range neighbors {
		ref, ok := lookup[id]
		if !ok {
			continue
		}
		if ref.Node != nil && members.Has(ref.Node.ID) {
			return true
		}
		if ref.Layer != nil && members.Has(ref.Layer.ID) {
			return true
		}
	}
	return false
}

func (f *bridgeLayers) Finalize(b *flow.Board) {
	if len(f.removals) == 0 {
		return
	}
	lookup := b.PinLookup()
	for _, r := range f.removals {
		// Strip both sides of every remaining edge before dropping the
		// pin, so the symmetry invariant holds without another pass.
		for _, target := range r.pin.ConnectedTo.Values() {
			if ref, ok := lookup[target]; ok {
				ref.Pin.DependsOn.Remove(r.pin.ID)
			}
		}
		for _, source := range r.pin.DependsOn.Values() {
			if ref, ok := lookup[source]; ok {
				ref.Pin.ConnectedTo.Remove(r.pin.ID)
			}
		}
		delete(r.layer.Pins, r.pin.ID)
	}
}

package cleanup

import "github.com/espalierhq/espalier/pkg/flow"

// fixPins enforces the edge symmetry invariant: for any pins A and B,
// B is in A.ConnectedTo exactly when A is in B.DependsOn. Every edge
// whose counterpart pin is missing, or does not list the reverse
// direction, is scheduled for removal. Removals are applied once in
// Finalize so the shared lookup is never mutated mid-scan.
type fixPins struct {
	removals []edgeRemoval
}

type edgeRemoval struct {
	set    flow.StringSet
	member string
}

func (f *fixPins) Name() string { return "fix_pins" }

func (f *fixPins) Collect(*flow.Board) {
	f.removals = f.removals[:0]
}

func (f *fixPins) Apply(_ *flow.Board, lookup map[string]flow.PinRef) {
	for _, ref := range lookup {
		pin := ref.Pin
		for _, target := range pin.ConnectedTo.Values() {
			counterpart, ok := lookup[target]
			if !ok || !counterpart.Pin.DependsOn.Has(pin.ID) {
				f.removals = append(f.removals, edgeRemoval{set: pin.ConnectedTo, member: target})
			}
		}
		for _, source := range pin.DependsOn.Values() {
			counterpart, ok := lookup[source]
			if !ok || !counterpart.Pin.ConnectedTo.Has(pin.ID) {
				f.removals = append(f.removals, edgeRemoval{set: pin.DependsOn, member: source})
			}
		}
	}
}

func (f *fixPins) Finalize(*flow.Board) {
	for _, r := range f.removals {
		r.set.Remove(r.member)
	}
}

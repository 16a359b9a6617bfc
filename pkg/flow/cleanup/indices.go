package cleanup

import "github.com/espalierhq/espalier/pkg/flow"

// pinIndices assigns deterministic ordinal indices to every pin so
// rendering and execution ordering are stable across serializations.
// Inputs come before outputs; within a group the existing index is the
// primary sort key, so user-authored ordering survives renumbering.
type pinIndices struct{}

func (pinIndices) Name() string { return "pin_indices" }

func (pinIndices) Collect(*flow.Board) {}

func (pinIndices) Apply(b *flow.Board, _ map[string]flow.PinRef) {
	for _, n := range b.Nodes {
		renumber(n.SortedPins())
	}
	for _, l := range b.Layers {
		sorted := (&flow.Node{Pins: l.Pins}).SortedPins()
		renumber(sorted)
	}
}

func (pinIndices) Finalize(*flow.Board) {}

func renumber(pins []*flow.Pin) {
	for i, p := range pins {
		p.Index = i + 1
	}
}

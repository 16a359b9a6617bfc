// Package cleanup restores graph-wide invariants after arbitrary board
// edits: hand-edited documents, partial undo, version migration. It
// never fails; edges and references that cannot be repaired are pruned.
package cleanup

import "github.com/espalierhq/espalier/pkg/flow"

// Pass is one repair step. Each pass runs in three phases: Collect
// gathers facts over the as-loaded graph without mutating it, Apply
// mutates using the fully-built pin lookup, and Finalize performs
// removals deferred from Apply, since deleting entries mid-scan would
// invalidate the shared lookup.
type Pass interface {
	Name() string
	Collect(b *flow.Board)
	Apply(b *flow.Board, lookup map[string]flow.PinRef)
	Finalize(b *flow.Board)
}

// Passes returns the pipeline in its fixed execution order. Each pass
// is independent of the others' intermediate state.
func Passes() []Pass {
	return []Pass{
		&fixCoordinates{},
		&fixRefs{},
		&fixPins{},
		&bridgeLayers{},
		&pinIndices{},
	}
}

// Apply runs the full pipeline over the board. The pin lookup is
// rebuilt for every pass so later passes see earlier repairs. Cleanup
// must run after every board load and after every command execute or
// undo.
func Apply(b *flow.Board) {
	b.Normalize()
	for _, pass := range Passes() {
		pass.Collect(b)
		lookup := b.PinLookup()
		pass.Apply(b, lookup)
		pass.Finalize(b)
	}
}

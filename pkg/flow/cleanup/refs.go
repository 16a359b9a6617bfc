package cleanup

import "github.com/espalierhq/espalier/pkg/flow"

// fixRefs drops fn_refs entries pointing at nodes that no longer exist.
// Layer membership sets are pruned the same way.
type fixRefs struct {
	nodeIDs    flow.StringSet
	commentIDs flow.StringSet
	removals   []refRemoval
}

type refRemoval struct {
	set    flow.StringSet
	member string
}

func (f *fixRefs) Name() string { return "fix_refs" }

func (f *fixRefs) Collect(b *flow.Board) {
	f.nodeIDs = flow.NewStringSet()
	f.commentIDs = flow.NewStringSet()
	f.removals = f.removals[:0]
	for id := range b.Nodes {
		f.nodeIDs.Add(id)
	}
	for id := range b.Comments {
		f.commentIDs.Add(id)
	}
}

func (f *fixRefs) Apply(b *flow.Board, _ map[string]flow.PinRef) {
	for _, n := range b.Nodes {
		for _, ref := range n.FnRefs.Values() {
			if !f.nodeIDs.Has(ref) {
				f.removals = append(f.removals, refRemoval{set: n.FnRefs, member: ref})
			}
		}
	}
	for _, l := range b.Layers {
		for _, id := range l.Nodes.Values() {
			if !f.nodeIDs.Has(id) {
				f.removals = append(f.removals, refRemoval{set: l.Nodes, member: id})
			}
		}
		for _, id := range l.Comments.Values() {
			if !f.commentIDs.Has(id) {
				f.removals = append(f.removals, refRemoval{set: l.Comments, member: id})
			}
		}
	}
}

func (f *fixRefs) Finalize(*flow.Board) {
	for _, r := range f.removals {
		r.set.Remove(r.member)
	}
}

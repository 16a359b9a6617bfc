package commands

import (
	"context"
	"fmt"

	"github.com/espalierhq/espalier/pkg/flow"
)

// RemoveNode deletes a node and strips every dangling reference to it
// from the rest of the board. Each neighbor it patches is snapshotted
// first so Undo can restore it verbatim. Callers must re-run cleanup
// after Execute and Undo; patched neighbors may still carry edges that
// only the pin symmetry pass can settle.
type RemoveNode struct {
	Node *flow.Node `json:"node"`
	// Neighbors holds pre-patch snapshots of every other node that
	// referenced the removed node's pins or listed it in fn_refs.
	Neighbors []*flow.Node `json:"neighbors,omitempty"`
}

func NewRemoveNode(node *flow.Node) *RemoveNode {
	return &RemoveNode{Node: node}
}

func (c *RemoveNode) CommandType() string { return "remove_node" }

func (c *RemoveNode) Execute(_ context.Context, b *flow.Board) error {
	if c.Node == nil {
		return fmt.Errorf("remove_node: no node given")
	}
	target, ok := b.Nodes[c.Node.ID]
	if !ok {
		return fmt.Errorf("remove_node: %w: %s", flow.ErrNodeNotFound, c.Node.ID)
	}
	// Keep the exact stored node for undo, not the caller's copy.
	c.Node = target.Clone()

	owned := flow.NewStringSet()
	for pinID := range target.Pins {
		owned.Add(pinID)
	}

	c.Neighbors = c.Neighbors[:0]
	for _, other := range b.Nodes {
		if other.ID == target.ID {
			continue
		}
		if !referencesAny(other, target.ID, owned) {
			continue
		}
		c.Neighbors = append(c.Neighbors, other.Clone())
		stripReferences(other, target.ID, owned)
	}

	delete(b.Nodes, target.ID)
	b.Touch()
	return nil
}

func (c *RemoveNode) Undo(_ context.Context, b *flow.Board) error {
	if c.Node == nil {
		return fmt.Errorf("remove_node: nothing to undo")
	}
	b.Nodes[c.Node.ID] = c.Node.Clone()
	for _, neighbor := range c.Neighbors {
		b.Nodes[neighbor.ID] = neighbor.Clone()
	}
	b.Touch()
	return nil
}

// referencesAny reports whether the node points at the removed node
// through a pin edge or an fn_refs entry.
func referencesAny(n *flow.Node, removedID string, owned flow.StringSet) bool {
	if n.FnRefs.Has(removedID) {
		return true
	}
	for _, p := range n.Pins {
		for id := range p.ConnectedTo {
			if owned.Has(id) {
				return true
			}
		}
		for id := range p.DependsOn {
			if owned.Has(id) {
				return true
			}
		}
	}
	return false
}

func stripReferences(n *flow.Node, removedID string, owned flow.StringSet) {
	n.FnRefs.Remove(removedID)
	for _, p := range n.Pins {
		for _, id := range p.ConnectedTo.Values() {
			if owned.Has(id) {
				p.ConnectedTo.Remove(id)
			}
		}
		for _, id := range p.DependsOn.Values() {
			if owned.Has(id) {
				p.DependsOn.Remove(id)
			}
		}
	}
}

package commands

import (
	"context"
	"fmt"

	"github.com/espalierhq/espalier/pkg/flow"
)

// AddNode inserts a new node into the board.
type AddNode struct {
	Node *flow.Node `json:"node"`
}

func init() {
	register("add_node", func() Command { return &AddNode{} })
	register("remove_node", func() Command { return &RemoveNode{} })
	register("update_node", func() Command { return &UpdateNode{} })
	register("move_node", func() Command { return &MoveNode{} })
	register("connect_pins", func() Command { return &ConnectPins{} })
	register("disconnect_pins", func() Command { return &DisconnectPins{} })
	register("upsert_variable", func() Command { return &UpsertVariable{} })
	register("remove_variable", func() Command { return &RemoveVariable{} })
	register("upsert_comment", func() Command { return &UpsertComment{} })
	register("remove_comment", func() Command { return &RemoveComment{} })
	register("copy_paste", func() Command { return &CopyPaste{} })
}

// NewAddNode builds the command for a fully-declared node.
func NewAddNode(node *flow.Node) *AddNode {
	return &AddNode{Node: node}
}

func (c *AddNode) CommandType() string { return "add_node" }

func (c *AddNode) Execute(_ context.Context, b *flow.Board) error {
	if c.Node == nil {
		return fmt.Errorf("add_node: no node given")
	}
	if _, ok := b.Nodes[c.Node.ID]; ok {
		return fmt.Errorf("add_node: node %s already exists", c.Node.ID)
	}
	b.Nodes[c.Node.ID] = c.Node.Clone()
	b.Touch()
	return nil
}

func (c *AddNode) Undo(_ context.Context, b *flow.Board) error {
	delete(b.Nodes, c.Node.ID)
	b.Touch()
	return nil
}

// UpdateNode replaces a node wholesale, keeping the previous version
// for undo.
type UpdateNode struct {
	Node *flow.Node `json:"node"`
	// Previous is captured by Execute; serialized so a transported
	// command can still be undone on the other side.
	Previous *flow.Node `json:"previous,omitempty"`
}

func NewUpdateNode(node *flow.Node) *UpdateNode {
	return &UpdateNode{Node: node}
}

func (c *UpdateNode) CommandType() string { return "update_node" }

func (c *UpdateNode) Execute(_ context.Context, b *flow.Board) error {
	if c.Node == nil {
		return fmt.Errorf("update_node: no node given")
	}
	old, ok := b.Nodes[c.Node.ID]
	if !ok {
		return fmt.Errorf("update_node: %w: %s", flow.ErrNodeNotFound, c.Node.ID)
	}
	c.Previous = old.Clone()
	b.Nodes[c.Node.ID] = c.Node.Clone()
	b.Touch()
	return nil
}

func (c *UpdateNode) Undo(_ context.Context, b *flow.Board) error {
	if c.Previous == nil {
		return fmt.Errorf("update_node: nothing to undo")
	}
	b.Nodes[c.Previous.ID] = c.Previous.Clone()
	b.Touch()
	return nil
}

// MoveNode updates a node's canvas position.
type MoveNode struct {
	NodeID string      `json:"node_id"`
	To     [3]float64  `json:"to"`
	From   *[3]float64 `json:"from,omitempty"`
}

func NewMoveNode(nodeID string, to [3]float64) *MoveNode {
	return &MoveNode{NodeID: nodeID, To: to}
}

func (c *MoveNode) CommandType() string { return "move_node" }

func (c *MoveNode) Execute(_ context.Context, b *flow.Board) error {
	n, err := b.NodeByID(c.NodeID)
	if err != nil {
		return fmt.Errorf("move_node: %w", err)
	}
	c.From = n.Coordinates
	to := c.To
	n.Coordinates = &to
	b.Touch()
	return nil
}

func (c *MoveNode) Undo(_ context.Context, b *flow.Board) error {
	n, err := b.NodeByID(c.NodeID)
	if err != nil {
		return fmt.Errorf("move_node: %w", err)
	}
	n.Coordinates = c.From
	b.Touch()
	return nil
}

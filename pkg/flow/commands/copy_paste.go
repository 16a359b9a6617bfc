package commands

import (
	"context"
	"fmt"

	"github.com/espalierhq/espalier/pkg/flow"
)

// CopyPaste clones a selection of nodes and comments onto the board at
// an offset. Edges between two pasted nodes are remapped onto the new
// pin IDs; edges reaching outside the selection are dropped. The fresh
// IDs are generated once at construction so Execute stays deterministic
// across undo and redo.
type CopyPaste struct {
	Nodes    []*flow.Node    `json:"nodes"`
	Comments []*flow.Comment `json:"comments,omitempty"`
	Offset   [3]float64      `json:"offset"`
	// NodeIDs and PinIDs map original IDs onto the pasted copies.
	NodeIDs map[string]string `json:"node_ids"`
	PinIDs  map[string]string `json:"pin_ids"`
	// CommentIDs maps original comment IDs onto the pasted copies.
	CommentIDs map[string]string `json:"comment_ids,omitempty"`
}

func NewCopyPaste(nodes []*flow.Node, comments []*flow.Comment, offset [3]float64) *CopyPaste {
	c := &CopyPaste{
		Nodes:      nodes,
		Comments:   comments,
		Offset:     offset,
		NodeIDs:    make(map[string]string, len(nodes)),
		PinIDs:     make(map[string]string),
		CommentIDs: make(map[string]string, len(comments)),
	}
	for _, n := range nodes {
		c.NodeIDs[n.ID] = flow.NewID()
		for pinID := range n.Pins {
			c.PinIDs[pinID] = flow.NewID()
		}
	}
	for _, cm := range comments {
		c.CommentIDs[cm.ID] = flow.NewID()
	}
	return c
}

func (c *CopyPaste) CommandType() string { return "copy_paste" }

func (c *CopyPaste) Execute(_ context.Context, b *flow.Board) error {
	if len(c.Nodes) == 0 && len(c.Comments) == 0 {
		return fmt.Errorf("copy_paste: empty selection")
	}
	for _, src := range c.Nodes {
		pasted := src.Clone()
		pasted.ID = c.NodeIDs[src.ID]
		pasted.Error = ""
		if pasted.Coordinates != nil {
			coords := *pasted.Coordinates
			coords[0] += c.Offset[0]
			coords[1] += c.Offset[1]
			coords[2] += c.Offset[2]
			pasted.Coordinates = &coords
		}
		// fn_refs within the selection follow the copy; external ones drop.
		refs := flow.NewStringSet()
		for ref := range pasted.FnRefs {
			if mapped, ok := c.NodeIDs[ref]; ok {
				refs.Add(mapped)
			}
		}
		pasted.FnRefs = refs

		pins := make(map[string]*flow.Pin, len(pasted.Pins))
		for oldID, p := range pasted.Pins {
			p.ID = c.PinIDs[oldID]
			p.ConnectedTo = remapEdges(p.ConnectedTo, c.PinIDs)
			p.DependsOn = remapEdges(p.DependsOn, c.PinIDs)
			pins[p.ID] = p
		}
		pasted.Pins = pins
		b.Nodes[pasted.ID] = pasted
	}
	for _, src := range c.Comments {
		pasted := src.Clone()
		pasted.ID = c.CommentIDs[src.ID]
		pasted.Coordinates[0] += c.Offset[0]
		pasted.Coordinates[1] += c.Offset[1]
		pasted.Coordinates[2] += c.Offset[2]
		b.Comments[pasted.ID] = pasted
	}
	b.Touch()
	return nil
}

func (c *CopyPaste) Undo(_ context.Context, b *flow.Board) error {
	for _, id := range c.NodeIDs {
		delete(b.Nodes, id)
	}
	for _, id := range c.CommentIDs {
		delete(b.Comments, id)
	}
	b.Touch()
	return nil
}

func remapEdges(edges flow.StringSet, pinIDs map[string]string) flow.StringSet {
	out := flow.NewStringSet()
	for id := range edges {
		if mapped, ok := pinIDs[id]; ok {
			out.Add(mapped)
		}
	}
	return out
}

package commands

import (
	"context"
	"fmt"

	"github.com/espalierhq/espalier/pkg/flow"
)

// UpsertVariable inserts or replaces a board variable.
type UpsertVariable struct {
	Variable *flow.Variable `json:"variable"`
	Previous *flow.Variable `json:"previous,omitempty"`
}

func NewUpsertVariable(v *flow.Variable) *UpsertVariable {
	return &UpsertVariable{Variable: v}
}

func (c *UpsertVariable) CommandType() string { return "upsert_variable" }

func (c *UpsertVariable) Execute(_ context.Context, b *flow.Board) error {
	if c.Variable == nil {
		return fmt.Errorf("upsert_variable: no variable given")
	}
	if old, ok := b.Variables[c.Variable.ID]; ok {
		c.Previous = old.Clone()
	} else {
		c.Previous = nil
	}
	b.Variables[c.Variable.ID] = c.Variable.Clone()
	b.Touch()
	return nil
}

func (c *UpsertVariable) Undo(_ context.Context, b *flow.Board) error {
	if c.Previous != nil {
		b.Variables[c.Previous.ID] = c.Previous.Clone()
	} else {
		delete(b.Variables, c.Variable.ID)
	}
	b.Touch()
	return nil
}

// RemoveVariable deletes a board variable.
type RemoveVariable struct {
	Variable *flow.Variable `json:"variable"`
}

func NewRemoveVariable(v *flow.Variable) *RemoveVariable {
	return &RemoveVariable{Variable: v}
}

func (c *RemoveVariable) CommandType() string { return "remove_variable" }

func (c *RemoveVariable) Execute(_ context.Context, b *flow.Board) error {
	if c.Variable == nil {
		return fmt.Errorf("remove_variable: no variable given")
	}
	stored, ok := b.Variables[c.Variable.ID]
	if !ok {
		return fmt.Errorf("remove_variable: %w: %s", flow.ErrVariableNotFound, c.Variable.ID)
	}
	c.Variable = stored.Clone()
	delete(b.Variables, stored.ID)
	b.Touch()
	return nil
}

func (c *RemoveVariable) Undo(_ context.Context, b *flow.Board) error {
	b.Variables[c.Variable.ID] = c.Variable.Clone()
	b.Touch()
	return nil
}

// UpsertComment inserts or replaces a board comment.
type UpsertComment struct {
	Comment  *flow.Comment `json:"comment"`
	Previous *flow.Comment `json:"previous,omitempty"`
}

func NewUpsertComment(c *flow.Comment) *UpsertComment {
	return &UpsertComment{Comment: c}
}

func (c *UpsertComment) CommandType() string { return "upsert_comment" }

func (c *UpsertComment) Execute(_ context.Context, b *flow.Board) error {
	if c.Comment == nil {
		return fmt.Errorf("upsert_comment: no comment given")
	}
	if old, ok := b.Comments[c.Comment.ID]; ok {
		c.Previous = old.Clone()
	} else {
		c.Previous = nil
	}
	b.Comments[c.Comment.ID] = c.Comment.Clone()
	b.Touch()
	return nil
}

func (c *UpsertComment) Undo(_ context.Context, b *flow.Board) error {
	if c.Previous != nil {
		b.Comments[c.Previous.ID] = c.Previous.Clone()
	} else {
		delete(b.Comments, c.Comment.ID)
	}
	b.Touch()
	return nil
}

// RemoveComment deletes a board comment.
type RemoveComment struct {
	Comment *flow.Comment `json:"comment"`
}

func NewRemoveComment(c *flow.Comment) *RemoveComment {
	return &RemoveComment{Comment: c}
}

func (c *RemoveComment) CommandType() string { return "remove_comment" }

func (c *RemoveComment) Execute(_ context.Context, b *flow.Board) error {
	if c.Comment == nil {
		return fmt.Errorf("remove_comment: no comment given")
	}
	stored, ok := b.Comments[c.Comment.ID]
	if !ok {
		return fmt.Errorf("remove_comment: %w: %s", flow.ErrCommentNotFound, c.Comment.ID)
	}
	c.Comment = stored.Clone()
	delete(b.Comments, stored.ID)
	b.Touch()
	return nil
}

func (c *RemoveComment) Undo(_ context.Context, b *flow.Board) error {
	b.Comments[c.Comment.ID] = c.Comment.Clone()
	b.Touch()
	return nil
}

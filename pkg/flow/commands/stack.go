package commands

import (
	"context"
	"fmt"
	"sync"

	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/espalierhq/espalier/pkg/flow/cleanup"
)

// Stack is a linear undo/redo history over one board. Every Do, Undo
// and Redo re-runs the cleanup pipeline, so the board always leaves the
// stack with its invariants restored.
type Stack struct {
	mu   sync.Mutex
	done []Command
	redo []Command
}

// NewStack returns an empty history.
func NewStack() *Stack {
	return &Stack{}
}

// Do executes the command against the board. On success the command is
// appended to the undo history and the redo history is cleared.
func (s *Stack) Do(ctx context.Context, b *flow.Board, cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := cmd.Execute(ctx, b); err != nil {
		return err
	}
	cleanup.Apply(b)
	s.done = append(s.done, cmd)
	s.redo = s.redo[:0]
	return nil
}

// Undo reverses the most recent command.
func (s *Stack) Undo(ctx context.Context, b *flow.Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.done) == 0 {
		return fmt.Errorf("nothing to undo")
	}
	cmd := s.done[len(s.done)-1]
	if err := cmd.Undo(ctx, b); err != nil {
		return err
	}
	cleanup.Apply(b)
	s.done = s.done[:len(s.done)-1]
	s.redo = append(s.redo, cmd)
	return nil
}

// Redo re-executes the most recently undone command.
func (s *Stack) Redo(ctx context.Context, b *flow.Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.redo) == 0 {
		return fmt.Errorf("nothing to redo")
	}
	cmd := s.redo[len(s.redo)-1]
	if err := cmd.Execute(ctx, b); err != nil {
		return err
	}
	cleanup.Apply(b)
	s.redo = s.redo[:len(s.redo)-1]
	s.done = append(s.done, cmd)
	return nil
}

// CanUndo reports whether the undo history is non-empty.
func (s *Stack) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.done) > 0
}

// CanRedo reports whether the redo history is non-empty.
func (s *Stack) CanRedo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo) > 0
}

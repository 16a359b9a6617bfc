// Package memory provides in-memory adapters: a board store, a run
// store, a key-value store and an object store. All are safe for
// concurrent use and isolate callers from stored state through deep
// copies.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/espalierhq/espalier/pkg/flow/execution"
	"github.com/espalierhq/espalier/pkg/ports"
)

// BoardStore implements ports.BoardStore in memory.
type BoardStore struct {
	mu   sync.RWMutex
	data map[string]*flow.Board
}

// NewBoardStore creates an empty in-memory board store.
func NewBoardStore() *BoardStore {
	return &BoardStore{data: make(map[string]*flow.Board)}
}

// Save stores a deep copy of the board.
func (s *BoardStore) Save(_ context.Context, b *flow.Board) error {
	copied := b.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[b.ID] = copied
	return nil
}

// Load returns a deep copy so callers cannot mutate stored state.
func (s *BoardStore) Load(_ context.Context, id string) (*flow.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[id]
	if !ok {
		return nil, ports.ErrBoardNotFound
	}
	return b.Clone(), nil
}

// Delete removes the board.
func (s *BoardStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns the stored board IDs in sorted order.
func (s *BoardStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// RunStore implements ports.RunStore in memory.
type RunStore struct {
	mu   sync.RWMutex
	data map[string]*execution.Run
}

// NewRunStore creates an empty in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{data: make(map[string]*execution.Run)}
}

// Save stores a copy of the run record.
func (s *RunStore) Save(_ context.Context, run *execution.Run) error {
	copied := *run
	copied.Traces = append([]execution.Trace(nil), run.Traces...)
	copied.VisitedNodes = append([]string(nil), run.VisitedNodes...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[run.ID] = &copied
	return nil
}

// Load retrieves a copy of the run record.
func (s *RunStore) Load(_ context.Context, id string) (*execution.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.data[id]
	if !ok {
		return nil, ports.ErrRunNotFound
	}
	copied := *run
	copied.Traces = append([]execution.Trace(nil), run.Traces...)
	copied.VisitedNodes = append([]string(nil), run.VisitedNodes...)
	return &copied, nil
}

// Delete removes the run.
func (s *RunStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns run IDs for a board, newest first.
func (s *RunStore) List(_ context.Context, boardID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type entry struct {
		id    string
		start int64
	}
	var entries []entry
	for id, run := range s.data {
		if run.BoardID == boardID {
			entries = append(entries, entry{id: id, start: run.Start})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].start != entries[j].start {
			return entries[i].start > entries[j].start
		}
		return entries[i].id < entries[j].id
	})
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}

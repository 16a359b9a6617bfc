// Package file stores boards as JSON documents in a directory, one
// file per board ID. It is the default persistence for the CLI.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/espalierhq/espalier/pkg/ports"
)

const boardExt = ".board.json"

// BoardStore implements ports.BoardStore over a directory.
type BoardStore struct {
	dir string
}

// NewBoardStore creates the directory if needed and returns the store.
func NewBoardStore(dir string) (*BoardStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create board directory: %w", err)
	}
	return &BoardStore{dir: dir}, nil
}

func (s *BoardStore) path(id string) string {
	return filepath.Join(s.dir, id+boardExt)
}

// Save writes the board's canonical JSON form to disk.
func (s *BoardStore) Save(_ context.Context, b *flow.Board) error {
	data, err := b.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal board: %w", err)
	}
	if err := os.WriteFile(s.path(b.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write board file: %w", err)
	}
	return nil
}

// Load reads and normalizes a board from disk.
func (s *BoardStore) Load(_ context.Context, id string) (*flow.Board, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ports.ErrBoardNotFound
		}
		return nil, fmt.Errorf("failed to read board file: %w", err)
	}
	return flow.UnmarshalBoard(data)
}

// Delete removes the board file. A missing file is not an error.
func (s *BoardStore) Delete(_ context.Context, id string) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove board file: %w", err)
	}
	return nil
}

// List returns the board IDs found in the directory, sorted.
func (s *BoardStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read board directory: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, boardExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, boardExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// LoadPath reads a board from an arbitrary file path, outside the
// store's directory convention. The CLI uses it for ad-hoc runs.
func LoadPath(path string) (*flow.Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read board file: %w", err)
	}
	return flow.UnmarshalBoard(data)
}

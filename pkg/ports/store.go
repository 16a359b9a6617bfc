package ports

import (
	"context"
	"errors"

	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/espalierhq/espalier/pkg/flow/execution"
)

// ErrBoardNotFound is returned when a board ID cannot be resolved.
var ErrBoardNotFound = errors.New("board not found")

// ErrRunNotFound is returned when a run ID cannot be resolved.
var ErrRunNotFound = errors.New("run not found")

// BoardLoader resolves a board by ID. Loaded boards still need the
// cleanup pipeline before use; the engine runs it on every load.
type BoardLoader interface {
	// Load retrieves the board, or ErrBoardNotFound.
	Load(ctx context.Context, id string) (*flow.Board, error)
}

// BoardStore is a loader that can also write boards back.
type BoardStore interface {
	BoardLoader

	// Save persists the board under its own ID.
	Save(ctx context.Context, b *flow.Board) error

	// Delete removes the board. Deleting an absent board is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the stored board IDs.
	List(ctx context.Context) ([]string, error)
}

// RunStore persists finished and in-flight run records.
type RunStore interface {
	// Save persists the run under its own ID.
	Save(ctx context.Context, run *execution.Run) error

	// Load retrieves a run, or ErrRunNotFound.
	Load(ctx context.Context, id string) (*execution.Run, error)

	// Delete removes the run. Deleting an absent run is not an error.
	Delete(ctx context.Context, id string) error

	// List returns run IDs for a board, newest first.
	List(ctx context.Context, boardID string) ([]string, error)
}

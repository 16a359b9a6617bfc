package espalier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/espalierhq/espalier/pkg/adapters/memory"
	"github.com/espalierhq/espalier/pkg/catalog"
	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/espalierhq/espalier/pkg/flow/cleanup"
	"github.com/espalierhq/espalier/pkg/flow/commands"
	"github.com/espalierhq/espalier/pkg/flow/execution"
	"github.com/espalierhq/espalier/pkg/ports"
)

// Engine is the high-level entry point for the library. It owns the
// node registry, the persistence adapters and one undo/redo stack per
// board, and re-runs the cleanup pipeline wherever the protocol
// requires it.
type Engine struct {
	registry *catalog.Registry
	boards   ports.BoardStore
	runs     ports.RunStore
	kv       execution.KeyValueStore
	store    execution.ObjectStore
	tokens   execution.TokenProvider
	hooks    execution.Hooks
	logger   *slog.Logger

	// onCommand observes executed command types, e.g. for metrics.
	onCommand func(commandType string)

	mu     sync.Mutex
	stacks map[string]*commands.Stack
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRegistry injects a custom node registry, replacing the built-in
// catalog.
func WithRegistry(registry *catalog.Registry) Option {
	return func(e *Engine) { e.registry = registry }
}

// WithBoardStore injects board persistence, replacing the in-memory
// default.
func WithBoardStore(store ports.BoardStore) Option {
	return func(e *Engine) { e.boards = store }
}

// WithRunStore injects run persistence, replacing the in-memory default.
func WithRunStore(store ports.RunStore) Option {
	return func(e *Engine) { e.runs = store }
}

// WithKeyValueStore injects durable node state shared across runs.
func WithKeyValueStore(kv execution.KeyValueStore) Option {
	return func(e *Engine) { e.kv = kv }
}

// WithObjectStore injects the storage handle nodes reach through their
// execution contexts.
func WithObjectStore(store execution.ObjectStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithTokenProvider injects the OAuth credential source for nodes.
func WithTokenProvider(tokens execution.TokenProvider) Option {
	return func(e *Engine) { e.tokens = tokens }
}

// WithHooks registers run lifecycle observers.
func WithHooks(hooks execution.Hooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithCommandObserver registers a callback invoked with the type of
// every successfully executed command.
func WithCommandObserver(fn func(commandType string)) Option {
	return func(e *Engine) { e.onCommand = fn }
}

// New initializes an Engine. Without options it runs fully in memory
// with the built-in node catalog.
func New(opts ...Option) *Engine {
	e := &Engine{
		stacks: make(map[string]*commands.Stack),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = catalog.Default()
	}
	if e.boards == nil {
		e.boards = memory.NewBoardStore()
	}
	if e.runs == nil {
		e.runs = memory.NewRunStore()
	}
	if e.kv == nil {
		e.kv = memory.NewKeyValueStore()
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Registry returns the node registry for catalog extension.
func (e *Engine) Registry() *catalog.Registry {
	return e.registry
}

// CreateBoard authors a new empty board and persists it.
func (e *Engine) CreateBoard(ctx context.Context, name string) (*flow.Board, error) {
	b := flow.NewBoard(name)
	cleanup.Apply(b)
	if err := e.boards.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to save new board: %w", err)
	}
	e.logger.Info("board created", "board_id", b.ID, "name", name)
	return b, nil
}

// Board loads a board and repairs its invariants.
func (e *Engine) Board(ctx context.Context, id string) (*flow.Board, error) {
	b, err := e.boards.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	cleanup.Apply(b)
	return b, nil
}

// SaveBoard persists a board.
func (e *Engine) SaveBoard(ctx context.Context, b *flow.Board) error {
	return e.boards.Save(ctx, b)
}

// ExecuteCommand runs one undoable mutation against the board and
// persists the result. The command lands on the board's undo stack.
func (e *Engine) ExecuteCommand(ctx context.Context, boardID string, cmd commands.Command) (*flow.Board, error) {
	b, err := e.Board(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := e.stack(boardID).Do(ctx, b, cmd); err != nil {
		return nil, err
	}
	if upd, ok := cmd.(*commands.UpdateNode); ok && upd.Node != nil {
		e.notifyNodeUpdated(b, upd.Node.ID)
	}
	if err := e.boards.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to save board after command: %w", err)
	}
	if e.onCommand != nil {
		e.onCommand(cmd.CommandType())
	}
	e.logger.Debug("command executed", "board_id", boardID, "type", cmd.CommandType())
	return b, nil
}

// notifyNodeUpdated lets an edited node's logic reshape its pins, then
// settles the board again so new pins get indices and broken edges are
// pruned.
func (e *Engine) notifyNodeUpdated(b *flow.Board, nodeID string) {
	node, ok := b.Nodes[nodeID]
	if !ok {
		return
	}
	logic, err := e.registry.Instantiate(node.Name)
	if err != nil {
		return
	}
	if updater, ok := logic.(execution.Updater); ok {
		updater.OnUpdate(node, b)
		cleanup.Apply(b)
	}
}

// Undo reverses the board's most recent command.
func (e *Engine) Undo(ctx context.Context, boardID string) (*flow.Board, error) {
	return e.replay(ctx, boardID, (*commands.Stack).Undo)
}

// Redo re-executes the board's most recently undone command.
func (e *Engine) Redo(ctx context.Context, boardID string) (*flow.Board, error) {
	return e.replay(ctx, boardID, (*commands.Stack).Redo)
}

func (e *Engine) replay(ctx context.Context, boardID string, step func(*commands.Stack, context.Context, *flow.Board) error) (*flow.Board, error) {
	b, err := e.Board(ctx, boardID)
	if err != nil {
		return nil, err
	}
	if err := step(e.stack(boardID), ctx, b); err != nil {
		return nil, err
	}
	if err := e.boards.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to save board after history step: %w", err)
	}
	return b, nil
}

// Run triggers one top-level execution of the board. An empty
// eventNodeID starts from the board's start nodes. The finished run
// record is persisted before returning.
func (e *Engine) Run(ctx context.Context, boardID, eventNodeID string, payload map[string]any, opts ...execution.RunOption) (*execution.Run, error) {
	b, err := e.Board(ctx, boardID)
	if err != nil {
		return nil, err
	}

	runOpts := []execution.RunOption{
		execution.WithLogger(e.logger),
		execution.WithKeyValueStore(e.kv),
		execution.WithHooks(e.hooks),
	}
	if e.store != nil {
		runOpts = append(runOpts, execution.WithObjectStore(e.store))
	}
	if e.tokens != nil {
		runOpts = append(runOpts, execution.WithTokenProvider(e.tokens))
	}
	if payload != nil {
		runOpts = append(runOpts, execution.WithPayload(payload))
	}
	runOpts = append(runOpts, opts...)

	internal, err := execution.NewInternalRun(b, e.registry, runOpts...)
	if err != nil {
		return nil, err
	}
	run, execErr := internal.Execute(ctx, eventNodeID)
	if saveErr := e.runs.Save(ctx, run); saveErr != nil {
		e.logger.Error("failed to persist run", "error", saveErr, "run_id", run.ID)
	}
	return run, execErr
}

// RunRecord loads a persisted run.
func (e *Engine) RunRecord(ctx context.Context, id string) (*execution.Run, error) {
	return e.runs.Load(ctx, id)
}

// Runs lists the board's persisted run IDs, newest first.
func (e *Engine) Runs(ctx context.Context, boardID string) ([]string, error) {
	return e.runs.List(ctx, boardID)
}

func (e *Engine) stack(boardID string) *commands.Stack {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.stacks[boardID]
	if !ok {
		s = commands.NewStack()
		e.stacks[boardID] = s
	}
	return s
}

package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/espalierhq/espalier/pkg/flow"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many nodes of one round run at once.
const DefaultConcurrency = 16

// InternalRun is the run-time form of a whole board: every node and pin
// wired into an in-memory graph, plus the shared services nodes reach
// through their contexts. Construction is two-phase: all internal pins
// are created first, then edge references are resolved, so wiring order
// never depends on map iteration.
type InternalRun struct {
	board *flow.Board
	run   *Run
	nodes map[string]*InternalNode
	pins  map[string]*InternalPin

	logger *slog.Logger
	cache  *Cache
	kv     KeyValueStore
	store  ObjectStore
	tokens TokenProvider
	stream StreamFn
	hooks  Hooks
	sink   *traceSink
	level  flow.LogLevel
	limit  int

	varMu sync.Mutex
	vars  map[string]any

	evalMu     sync.Mutex
	evaluating map[string]bool

	visitMu sync.Mutex
	visited []string
	highest flow.LogLevel
}

// RunOption configures an InternalRun.
type RunOption func(*InternalRun)

// WithLogger sets the structured logger for the run.
func WithLogger(logger *slog.Logger) RunOption {
	return func(r *InternalRun) { r.logger = logger }
}

// WithKeyValueStore attaches durable state shared across runs.
func WithKeyValueStore(kv KeyValueStore) RunOption {
	return func(r *InternalRun) { r.kv = kv }
}

// WithObjectStore attaches the storage handle nodes may use.
func WithObjectStore(store ObjectStore) RunOption {
	return func(r *InternalRun) { r.store = store }
}

// WithTokenProvider attaches the OAuth credential source.
func WithTokenProvider(tokens TokenProvider) RunOption {
	return func(r *InternalRun) { r.tokens = tokens }
}

// WithStream sets the callback receiving node progress events.
func WithStream(stream StreamFn) RunOption {
	return func(r *InternalRun) { r.stream = stream }
}

// WithHooks registers run lifecycle observers.
func WithHooks(hooks Hooks) RunOption {
	return func(r *InternalRun) { r.hooks = hooks }
}

// WithLogLevel overrides the board's log level for this run.
func WithLogLevel(level flow.LogLevel) RunOption {
	return func(r *InternalRun) { r.level = level }
}

// WithConcurrency bounds parallel node executions per round.
func WithConcurrency(limit int) RunOption {
	return func(r *InternalRun) {
		if limit > 0 {
			r.limit = limit
		}
	}
}

// WithPayload attaches the trigger payload: exposed board variables are
// overridden by matching keys, and the marshaled size is recorded on
// the run.
func WithPayload(payload map[string]any) RunOption {
	return func(r *InternalRun) {
		for name, value := range payload {
			if v, ok := r.boardVariableByName(name); ok && v.Exposed {
				r.vars[name] = value
			}
		}
		if data, err := json.Marshal(payload); err == nil {
			r.run.PayloadSize = int64(len(data))
		}
	}
}

// NewInternalRun wires a board into an executable graph. Every node
// type must resolve through the registry; an unknown type fails
// construction rather than the run.
func NewInternalRun(board *flow.Board, registry LogicRegistry, opts ...RunOption) (*InternalRun, error) {
	r := &InternalRun{
		board:      board,
		nodes:      make(map[string]*InternalNode, len(board.Nodes)),
		pins:       make(map[string]*InternalPin),
		logger:     slog.New(slog.DiscardHandler),
		cache:      NewCache(),
		sink:       newTraceSink(),
		level:      board.LogLevel,
		limit:      DefaultConcurrency,
		vars:       make(map[string]any, len(board.Variables)),
		evaluating: make(map[string]bool),
	}

	// Phase 1: create every internal pin before any wiring.
	for _, def := range board.Nodes {
		logic, err := registry.Instantiate(def.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to wire node %s: %w", def.ID, err)
		}
		node := &InternalNode{
			def:   def,
			logic: logic,
			pins:  make(map[string]*InternalPin, len(def.Pins)),
		}
		for _, pinDef := range def.Pins {
			pin := &InternalPin{def: pinDef, node: node}
			node.pins[pinDef.ID] = pin
			r.pins[pinDef.ID] = pin
		}
		r.nodes[def.ID] = node
	}
	for _, layer := range board.Layers {
		for _, pinDef := range layer.Pins {
			// Relay pin: no owning node, traversal walks through it.
			r.pins[pinDef.ID] = &InternalPin{def: pinDef}
		}
	}

	// Phase 2: resolve edge references. Dangling IDs are skipped; the
	// cleanup pipeline owns their removal.
	for _, pin := range r.pins {
		for _, id := range pin.def.DependsOn.Values() {
			if other, ok := r.pins[id]; ok {
				pin.dependsOn = append(pin.dependsOn, other)
			}
		}
		for _, id := range pin.def.ConnectedTo.Values() {
			if other, ok := r.pins[id]; ok {
				pin.connectedTo = append(pin.connectedTo, other)
			}
		}
	}

	for _, v := range board.Variables {
		r.vars[v.Name] = v.DefaultValue
	}

	r.run = NewRun(board.ID, r.level)
	for _, opt := range opts {
		opt(r)
	}
	r.run.LogLevel = r.level
	return r, nil
}

// Node returns the internal node for a board node ID.
func (r *InternalRun) Node(id string) (*InternalNode, bool) {
	n, ok := r.nodes[id]
	return n, ok
}

// Run returns the live run record.
func (r *InternalRun) Run() *Run { return r.run }

// Execute walks the board from its start nodes (or the one named event
// node) until no activated execution pin leads anywhere new. Nodes
// sharing a round run concurrently and the round joins before the next
// begins. A round whose node stack is identical to the previous one
// means the graph stalled; the run fails rather than spins. A root node
// that cannot resolve its own inputs fails the run, and that error is
// returned alongside the failed record.
func (r *InternalRun) Execute(ctx context.Context, eventNodeID string) (*Run, error) {
	stack, err := r.initialStack(eventNodeID)
	if err != nil {
		r.finalize(RunFailed)
		return r.run, err
	}
	if r.hooks.OnRunStart != nil {
		r.hooks.OnRunStart(r.run)
	}
	r.logger.Info("run started", "run_id", r.run.ID, "board_id", r.board.ID, "nodes", len(stack))

	status := RunSuccess
	var execErr error
	var prevHash uint64
	for len(stack) > 0 {
		if ctx.Err() != nil {
			status = RunStopped
			break
		}
		hash := stackHash(stack)
		if hash == prevHash {
			r.logger.Error("run stalled, node stack did not change", "run_id", r.run.ID)
			status = RunFailed
			break
		}
		prevHash = hash

		next, err := r.executeRound(ctx, stack)
		if err != nil {
			if ctx.Err() != nil {
				status = RunStopped
			} else {
				status = RunFailed
				execErr = err
			}
			break
		}
		stack = next
	}

	r.finalize(status)
	r.logger.Info("run finished", "run_id", r.run.ID, "status", r.run.Status, "traces", len(r.run.Traces))
	if r.hooks.OnRunEnd != nil {
		r.hooks.OnRunEnd(r.run)
	}
	return r.run, execErr
}

// executeRound triggers every node of the current stack concurrently
// and joins, returning the deduplicated successors of the nodes that
// finished successfully. Node failures stay in their own traces; only
// root-level input resolution failures abort the run.
func (r *InternalRun) executeRound(ctx context.Context, stack []*InternalNode) ([]*InternalNode, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)

	var mu sync.Mutex
	var next []*InternalNode
	seen := flow.NewStringSet()

	for _, node := range stack {
		node := node
		g.Go(func() error {
			ec := r.newRootContext(node)
			err := node.Trigger(gctx, ec)
			r.pushRoot(ec)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				// A root context that cannot resolve its own inputs
				// takes the run down with it.
				if errors.Is(err, ErrInputResolution) {
					return err
				}
				// Any other failure dies with its branch; siblings
				// continue.
				return nil
			}
			mu.Lock()
			for _, successor := range node.Successors() {
				if !seen.Has(successor.ID()) {
					seen.Add(successor.ID())
					next = append(next, successor)
				}
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(next, func(i, j int) bool { return next[i].ID() < next[j].ID() })
	return next, nil
}

func (r *InternalRun) initialStack(eventNodeID string) ([]*InternalNode, error) {
	if eventNodeID != "" {
		node, ok := r.nodes[eventNodeID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", flow.ErrNodeNotFound, eventNodeID)
		}
		return []*InternalNode{node}, nil
	}
	var stack []*InternalNode
	for _, def := range r.board.StartNodes(false) {
		stack = append(stack, r.nodes[def.ID])
	}
	if len(stack) == 0 {
		return nil, fmt.Errorf("board %s has no start nodes", r.board.ID)
	}
	sort.Slice(stack, func(i, j int) bool { return stack[i].ID() < stack[j].ID() })
	return stack, nil
}

func (r *InternalRun) newRootContext(node *InternalNode) *ExecutionContext {
	return &ExecutionContext{
		run:    r,
		node:   node,
		sink:   r.sink,
		logger: r.logger.With("node", node.def.Name),
		trace: Trace{
			ID:     flow.NewID(),
			NodeID: node.ID(),
			State:  StatePending,
		},
	}
}

func (r *InternalRun) pushRoot(ec *ExecutionContext) {
	ec.mu.Lock()
	trace := ec.trace
	ec.mu.Unlock()
	r.sink.push(trace)
	r.visit(ec.node.ID())
	if r.hooks.OnNodeFinish != nil {
		r.hooks.OnNodeFinish(r.run, trace)
	}
}

// triggerPure runs a pure node on demand because a consumer pulled one
// of its outputs. The guard map catches pure dependency cycles, which
// would otherwise recurse forever.
func (r *InternalRun) triggerPure(ctx context.Context, parent *ExecutionContext, node *InternalNode) error {
	r.evalMu.Lock()
	if r.evaluating[node.ID()] {
		r.evalMu.Unlock()
		return fmt.Errorf("dependency cycle through pure node %s", node.def.Name)
	}
	r.evaluating[node.ID()] = true
	r.evalMu.Unlock()
	defer func() {
		r.evalMu.Lock()
		delete(r.evaluating, node.ID())
		r.evalMu.Unlock()
	}()

	sub := parent.CreateSubContext(node)
	err := node.Trigger(ctx, sub)
	parent.PushSubContext(sub)
	if err != nil {
		return fmt.Errorf("failed to evaluate %s: %w", node.def.Name, err)
	}
	return nil
}

func (r *InternalRun) variable(name string) (any, bool) {
	r.varMu.Lock()
	defer r.varMu.Unlock()
	v, ok := r.vars[name]
	return v, ok
}

func (r *InternalRun) setVariable(name string, value any) {
	r.varMu.Lock()
	defer r.varMu.Unlock()
	r.vars[name] = value
}

func (r *InternalRun) boardVariableByName(name string) (*flow.Variable, bool) {
	for _, v := range r.board.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

func (r *InternalRun) visit(nodeID string) {
	r.visitMu.Lock()
	defer r.visitMu.Unlock()
	r.visited = append(r.visited, nodeID)
}

func (r *InternalRun) raiseLevel(level flow.LogLevel) {
	r.visitMu.Lock()
	defer r.visitMu.Unlock()
	if level > r.highest {
		r.highest = level
	}
}

func (r *InternalRun) finalize(status RunStatus) {
	r.run.End = time.Now().UnixMicro()
	r.run.Status = status
	traces := r.sink.drain()
	sort.Slice(traces, func(i, j int) bool {
		if traces[i].Start != traces[j].Start {
			return traces[i].Start < traces[j].Start
		}
		return traces[i].ID < traces[j].ID
	})
	r.run.Traces = traces
	r.visitMu.Lock()
	r.run.VisitedNodes = r.visited
	r.run.HighestLogLevel = r.highest
	r.visitMu.Unlock()
}

func stackHash(stack []*InternalNode) uint64 {
	ids := make([]string, len(stack))
	for i, n := range stack {
		ids[i] = n.ID()
	}
	sort.Strings(ids)
	h := fnv.New64a()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return h.Sum64()
}

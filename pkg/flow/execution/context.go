package execution

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/sync/errgroup"
)

// ExecutionContext is the per-invocation environment a node logic runs
// in. It resolves data-pin values on demand, fires execution pins,
// spawns sub-contexts for downstream nodes, and records the invocation
// trace.
type ExecutionContext struct {
	run    *InternalRun
	node   *InternalNode
	sink   *traceSink
	logger *slog.Logger

	mu    sync.Mutex
	trace Trace
}

// Node returns the node this context executes.
func (ec *ExecutionContext) Node() *InternalNode { return ec.node }

// Logger returns the structured logger scoped to this node.
func (ec *ExecutionContext) Logger() *slog.Logger { return ec.logger }

// Cache returns the per-run memoization cache.
func (ec *ExecutionContext) Cache() *Cache { return ec.run.cache }

// State returns the durable key-value store shared across runs, used by
// nodes with persisted toggles.
func (ec *ExecutionContext) State() KeyValueStore { return ec.run.kv }

// Store returns the object-store handle, or an error when the run was
// built without one.
func (ec *ExecutionContext) Store() (ObjectStore, error) {
	if ec.run.store == nil {
		return nil, fmt.Errorf("no object store configured for this run")
	}
	return ec.run.store, nil
}

// OAuthToken resolves a credential for the given provider.
func (ec *ExecutionContext) OAuthToken(ctx context.Context, provider string) (Token, error) {
	if ec.run.tokens == nil {
		return Token{}, fmt.Errorf("no token provider configured for this run")
	}
	return ec.run.tokens.Token(ctx, provider)
}

// Stream emits a progress event to the run's stream callback, if any.
func (ec *ExecutionContext) Stream(event any) {
	if ec.run.stream != nil {
		ec.run.stream(event)
	}
}

// EvaluatePin resolves a data input pin's value: producer pins are
// consulted first (running pure producer nodes on demand, memoized per
// run), then the pin's own value, then its default. A pin with nothing
// to offer yields nil.
func (ec *ExecutionContext) EvaluatePin(ctx context.Context, name string) (any, error) {
	pin := ec.node.PinByName(name)
	if pin == nil || pin.def.PinType != flow.PinInput {
		return nil, fmt.Errorf("%w: no input pin %q on node %s", flow.ErrPinNotFound, name, ec.node.def.Name)
	}
	if pin.def.IsExecution() {
		return nil, fmt.Errorf("cannot evaluate execution pin %q; use ExecInActive", name)
	}

	producers := pin.Producers()
	for _, producer := range producers {
		if _, ok := producer.Value(); ok {
			continue
		}
		owner := producer.node
		if owner == nil || !owner.def.IsPure() {
			continue
		}
		if err := ec.run.triggerPure(ctx, ec, owner); err != nil {
			return nil, err
		}
	}
	for _, producer := range producers {
		if v, ok := producer.Value(); ok {
			return v, nil
		}
	}
	for _, producer := range producers {
		if producer.def.DefaultValue != nil {
			return producer.def.DefaultValue, nil
		}
	}
	if v, ok := pin.Value(); ok {
		return v, nil
	}
	return pin.def.DefaultValue, nil
}

// EvaluatePinInto decodes the pin's value into out, tolerating the
// loose typing of JSON payloads (float64 into int fields and so on).
func (ec *ExecutionContext) EvaluatePinInto(ctx context.Context, name string, out any) error {
	raw, err := ec.EvaluatePin(ctx, name)
	if err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build decoder for pin %q: %w", name, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return fmt.Errorf("failed to decode pin %q: %w", name, err)
	}
	return nil
}

// EvaluatePin resolves and decodes a typed pin value in one step.
func EvaluatePin[T any](ctx context.Context, ec *ExecutionContext, name string) (T, error) {
	var out T
	raw, err := ec.EvaluatePin(ctx, name)
	if err != nil {
		return out, err
	}
	if raw == nil {
		return out, nil
	}
	if v, ok := raw.(T); ok {
		return v, nil
	}
	if err := decodeWeak(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode pin %q: %w", name, err)
	}
	return out, nil
}

func decodeWeak(raw, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// SetPinValue writes a value onto every output pin with the given name.
func (ec *ExecutionContext) SetPinValue(name string, value any) error {
	pins := ec.node.PinsByName(name)
	var wrote bool
	for _, p := range pins {
		if p.def.PinType != flow.PinOutput {
			continue
		}
		p.SetValue(value)
		wrote = true
	}
	if !wrote {
		return fmt.Errorf("%w: no output pin %q on node %s", flow.ErrPinNotFound, name, ec.node.def.Name)
	}
	return nil
}

// ActivateExecPin fires an output execution pin, marking every node it
// feeds as a successor of this invocation.
func (ec *ExecutionContext) ActivateExecPin(name string) error {
	return ec.setExecPin(name, true)
}

// DeactivateExecPin clears an output execution pin. Logic must call
// this for every pin it may later activate before evaluating inputs.
func (ec *ExecutionContext) DeactivateExecPin(name string) error {
	return ec.setExecPin(name, false)
}

func (ec *ExecutionContext) setExecPin(name string, active bool) error {
	pin := ec.node.PinByName(name)
	if pin == nil {
		return fmt.Errorf("%w: no pin %q on node %s", flow.ErrPinNotFound, name, ec.node.def.Name)
	}
	if pin.def.PinType != flow.PinOutput || !pin.def.IsExecution() {
		return fmt.Errorf("pin %q on node %s is not an output execution pin", name, ec.node.def.Name)
	}
	pin.SetValue(active)
	return nil
}

// ExecOutActive reports whether a named output execution pin is fired.
func (ec *ExecutionContext) ExecOutActive(name string) bool {
	pin := ec.node.PinByName(name)
	return pin != nil && pin.def.PinType == flow.PinOutput && pin.Active()
}

// ExecInActive reports whether a named input execution pin received an
// activation from any of its producers.
func (ec *ExecutionContext) ExecInActive(name string) bool {
	pin := ec.node.PinByName(name)
	if pin == nil || pin.def.PinType != flow.PinInput || !pin.def.IsExecution() {
		return false
	}
	for _, producer := range pin.Producers() {
		if producer.Active() {
			return true
		}
	}
	return false
}

// Variable reads a board variable's current run value.
func (ec *ExecutionContext) Variable(name string) (any, bool) {
	return ec.run.variable(name)
}

// SetVariable writes a board variable's run value.
func (ec *ExecutionContext) SetVariable(name string, value any) {
	ec.run.setVariable(name, value)
}

// CreateSubContext spawns a child context for a node reachable from an
// activated execution pin. The child shares the run and trace sink.
func (ec *ExecutionContext) CreateSubContext(node *InternalNode) *ExecutionContext {
	return &ExecutionContext{
		run:    ec.run,
		node:   node,
		sink:   ec.sink,
		logger: ec.run.logger.With("node", node.def.Name),
		trace: Trace{
			ID:     flow.NewID(),
			NodeID: node.ID(),
			State:  StatePending,
		},
	}
}

// PushSubContext attaches a finished child invocation to the run trace.
func (ec *ExecutionContext) PushSubContext(child *ExecutionContext) {
	child.mu.Lock()
	trace := child.trace
	child.mu.Unlock()
	ec.sink.push(trace)
	ec.run.visit(child.node.ID())
	if ec.run.hooks.OnNodeFinish != nil {
		ec.run.hooks.OnNodeFinish(ec.run.run, trace)
	}
}

// TriggerConnected drives the whole sub-graph reachable from one named
// output execution pin and waits for every branch to finish. Nodes
// sharing a level run concurrently and join before the next level
// starts, and successors are deduplicated, so the join node of a
// diamond inside the sub-graph runs once, after all its feeders. A node
// failure is recorded in its own sub-context and stops only its branch.
func (ec *ExecutionContext) TriggerConnected(ctx context.Context, pinName string) error {
	pin := ec.node.PinByName(pinName)
	if pin == nil || pin.def.PinType != flow.PinOutput || !pin.def.IsExecution() {
		return fmt.Errorf("pin %q on node %s is not an output execution pin", pinName, ec.node.def.Name)
	}
	return ec.runBranches(ctx, ec.node.SuccessorsOf(pinName))
}

// runBranches walks the sub-graph the same way the top-level loop walks
// rounds, including the stalled-stack guard: a level identical to the
// previous one fails the driving node instead of spinning.
func (ec *ExecutionContext) runBranches(ctx context.Context, targets []*InternalNode) error {
	stack := targets
	var prevHash uint64
	for len(stack) > 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		hash := stackHash(stack)
		if hash == prevHash {
			return fmt.Errorf("branch below %s stalled, node stack did not change", ec.node.def.Name)
		}
		prevHash = hash

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(ec.run.limit)
		var mu sync.Mutex
		var next []*InternalNode
		seen := flow.NewStringSet()
		for _, target := range stack {
			target := target
			g.Go(func() error {
				sub := ec.CreateSubContext(target)
				err := target.Trigger(gctx, sub)
				ec.PushSubContext(sub)
				if err != nil {
					// Branch failures are isolated; only cancellation
					// propagates to siblings.
					return gctx.Err()
				}
				mu.Lock()
				for _, successor := range target.Successors() {
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
			return err
		}
		sort.Slice(next, func(i, j int) bool { return next[i].ID() < next[j].ID() })
		stack = next
	}
	return ctx.Err()
}

// Log records a message on this invocation's trace when its level
// clears the run's threshold, and mirrors it to the structured logger.
func (ec *ExecutionContext) Log(level flow.LogLevel, message string) {
	ec.run.raiseLevel(level)
	if level < ec.run.level {
		return
	}
	now := time.Now().UnixMicro()
	ec.mu.Lock()
	ec.trace.Logs = append(ec.trace.Logs, LogMessage{
		Message: message,
		Level:   level,
		Start:   now,
		End:     now,
	})
	ec.mu.Unlock()
	ec.logger.Log(context.Background(), level.Slog(), message)
}

func (ec *ExecutionContext) begin() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.trace.Start = time.Now().UnixMicro()
	ec.trace.State = StateRunning
}

func (ec *ExecutionContext) finish(state NodeState, err error) {
	if err != nil {
		ec.Log(flow.LevelError, err.Error())
	}
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.trace.End = time.Now().UnixMicro()
	ec.trace.State = state
}

// MarkInterrupted synthesizes an interrupted outcome for a sub-context
// whose branch lost a timeout race.
func (ec *ExecutionContext) MarkInterrupted(reason string) {
	ec.Log(flow.LevelWarn, reason)
	ec.mu.Lock()
	defer ec.mu.Unlock()
	now := time.Now().UnixMicro()
	if ec.trace.Start == 0 {
		ec.trace.Start = now
	}
	ec.trace.End = now
	ec.trace.State = StateInterrupted
}

// traceSink collects finished traces. Isolated sinks let a control node
// race a branch and discard its traces when the race is lost.
type traceSink struct {
	mu     sync.Mutex
	traces []Trace
	closed bool
}

func newTraceSink() *traceSink { return &traceSink{} }

func (s *traceSink) push(t Trace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.traces = append(s.traces, t)
}

func (s *traceSink) drain() []Trace {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.traces
	s.traces = nil
	return out
}

// close makes the sink drop all further pushes. Used after a timeout
// race so the discarded branch cannot leak traces into the run.
func (s *traceSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Isolate returns a copy of this context writing traces into a private
// sink, plus a merge function that flushes the collected traces into
// the parent and a discard function that drops them.
func (ec *ExecutionContext) Isolate() (*ExecutionContext, func(), func()) {
	sink := newTraceSink()
	child := &ExecutionContext{
		run:    ec.run,
		node:   ec.node,
		sink:   sink,
		logger: ec.logger,
		trace:  ec.trace,
	}
	merge := func() {
		for _, t := range sink.drain() {
			ec.sink.push(t)
		}
	}
	discard := func() { sink.close() }
	return child, merge, discard
}

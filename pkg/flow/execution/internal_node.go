package execution

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/espalierhq/espalier/pkg/flow"
)

// ErrInputResolution marks a node failure that happened before its
// logic ran, while pulling pure input dependencies. The run loop aborts
// the whole run when a root-level node fails this way; below a
// sub-context boundary it stays an ordinary branch failure.
var ErrInputResolution = errors.New("failed to resolve inputs")

// Pin names a node may declare to absorb its own failures: when the
// error pin exists, a failed run activates it instead of failing the
// branch, and the message pin receives the error text.
const (
	AutoHandleErrorPin       = "auto_handle_error"
	AutoHandleErrorStringPin = "auto_handle_error_string"
)

// InternalNode is the run-time form of a node: its board definition,
// the logic instance resolved from the registry, and its wired pins.
type InternalNode struct {
	def   *flow.Node
	logic NodeLogic
	pins  map[string]*InternalPin
}

// Definition returns the board node.
func (n *InternalNode) Definition() *flow.Node { return n.def }

// ID returns the node's board ID.
func (n *InternalNode) ID() string { return n.def.ID }

// PinByName returns the node's first pin with the given name, or nil.
func (n *InternalNode) PinByName(name string) *InternalPin {
	def := n.def.PinByName(name)
	if def == nil {
		return nil
	}
	return n.pins[def.ID]
}

// PinsByName returns every pin with the given name, ordered by index.
func (n *InternalNode) PinsByName(name string) []*InternalPin {
	defs := n.def.PinsByName(name)
	out := make([]*InternalPin, 0, len(defs))
	for _, d := range defs {
		out = append(out, n.pins[d.ID])
	}
	return out
}

// Successors returns the distinct nodes connected to this node's
// currently activated output execution pins, in ID order.
func (n *InternalNode) Successors() []*InternalNode {
	seen := flow.NewStringSet()
	var out []*InternalNode
	for _, p := range n.pins {
		if p.def.PinType != flow.PinOutput || !p.def.IsExecution() || !p.Active() {
			continue
		}
		for _, consumer := range p.Consumers() {
			target := consumer.node
			if target == nil || seen.Has(target.ID()) {
				continue
			}
			seen.Add(target.ID())
			out = append(out, target)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// SuccessorsOf returns the distinct nodes connected to one named output
// execution pin regardless of its activation state. Control nodes use
// this to drive their body branch themselves.
func (n *InternalNode) SuccessorsOf(pinName string) []*InternalNode {
	seen := flow.NewStringSet()
	var out []*InternalNode
	for _, p := range n.PinsByName(pinName) {
		if p.def.PinType != flow.PinOutput || !p.def.IsExecution() {
			continue
		}
		for _, consumer := range p.Consumers() {
			target := consumer.node
			if target == nil || seen.Has(target.ID()) {
				continue
			}
			seen.Add(target.ID())
			out = append(out, target)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Trigger evaluates the node's missing pure dependencies, runs its
// logic and finalizes the context trace. A logic error is absorbed when
// the node declares an auto-handle-error pin; otherwise it is recorded
// on the trace and returned. Sibling branches of the same fan-out are
// unaffected either way.
func (n *InternalNode) Trigger(ctx context.Context, ec *ExecutionContext) error {
	ec.begin()
	if err := n.triggerMissingDependencies(ctx, ec); err != nil {
		ec.finish(StateError, err)
		return fmt.Errorf("%w of %s: %w", ErrInputResolution, n.def.Name, err)
	}
	if err := n.logic.Run(ctx, ec); err != nil {
		if n.absorbError(ec, err) {
			ec.finish(StateSuccess, nil)
			return nil
		}
		ec.finish(StateError, err)
		return err
	}
	ec.finish(StateSuccess, nil)
	return nil
}

// triggerMissingDependencies runs pure producer nodes whose outputs
// this node consumes but which have not produced a value yet. Producers
// are resolved post-order so a pure chain evaluates leaf-first; the
// run-level guard turns a dependency cycle into an error.
func (n *InternalNode) triggerMissingDependencies(ctx context.Context, ec *ExecutionContext) error {
	for _, p := range n.pins {
		if p.def.PinType != flow.PinInput || p.def.IsExecution() {
			continue
		}
		for _, producer := range p.Producers() {
			if _, ok := producer.Value(); ok {
				continue
			}
			owner := producer.node
			if owner == nil || !owner.def.IsPure() {
				continue
			}
			if err := ec.run.triggerPure(ctx, ec, owner); err != nil {
				return err
			}
		}
	}
	return nil
}

// absorbError reroutes a logic failure onto the node's error pin when
// one is declared.
func (n *InternalNode) absorbError(ec *ExecutionContext, err error) bool {
	errPin := n.PinByName(AutoHandleErrorPin)
	if errPin == nil || errPin.def.PinType != flow.PinOutput || !errPin.def.IsExecution() {
		return false
	}
	if msgPin := n.PinByName(AutoHandleErrorStringPin); msgPin != nil {
		msgPin.SetValue(err.Error())
	}
	errPin.SetValue(true)
	ec.Log(flow.LevelError, err.Error())
	return true
}

package execution

import (
	"sync"

	"github.com/espalierhq/espalier/pkg/flow"
)

// InternalPin is the run-time form of a pin: immutable metadata from
// the board plus a mutable value slot. Edge references are wired once,
// after every pin of the run exists, and never change afterwards; only
// the value is written during execution.
//
// Layer boundary pins become relay pins with no owning node. Traversal
// walks straight through them in both directions.
type InternalPin struct {
	def  *flow.Pin
	node *InternalNode

	dependsOn   []*InternalPin
	connectedTo []*InternalPin

	mu    sync.Mutex
	value any
	set   bool
}

// Definition returns the immutable board pin.
func (p *InternalPin) Definition() *flow.Pin { return p.def }

// Node returns the owning node, or nil for a relay pin.
func (p *InternalPin) Node() *InternalNode { return p.node }

// Value returns the current value and whether one has been set.
func (p *InternalPin) Value() (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.set
}

// SetValue writes the pin value.
func (p *InternalPin) SetValue(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = v
	p.set = true
}

// Reset clears the pin value.
func (p *InternalPin) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = nil
	p.set = false
}

// Active reports whether an execution pin is currently fired.
func (p *InternalPin) Active() bool {
	v, ok := p.Value()
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// Producers returns the real producing pins feeding this pin, walking
// through relay pins.
func (p *InternalPin) Producers() []*InternalPin {
	return walk(p, flow.NewStringSet(), func(pin *InternalPin) []*InternalPin { return pin.dependsOn })
}

// Consumers returns the real consuming pins this pin feeds, walking
// through relay pins.
func (p *InternalPin) Consumers() []*InternalPin {
	return walk(p, flow.NewStringSet(), func(pin *InternalPin) []*InternalPin { return pin.connectedTo })
}

func walk(p *InternalPin, seen flow.StringSet, next func(*InternalPin) []*InternalPin) []*InternalPin {
	var out []*InternalPin
	for _, neighbor := range next(p) {
		if seen.Has(neighbor.def.ID) {
			continue
		}
		seen.Add(neighbor.def.ID)
		if neighbor.node == nil {
			out = append(out, walk(neighbor, seen, next)...)
			continue
		}
		out = append(out, neighbor)
	}
	return out
}

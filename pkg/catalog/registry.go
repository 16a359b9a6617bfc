// Package catalog holds the built-in node types and the registry that
// resolves a node type name to its logic at run time. The engine core
// never switches on node kinds; everything goes through the registry.
package catalog

import (
	"fmt"
	"sort"
	"sync"

	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/espalierhq/espalier/pkg/flow/execution"
)

// Factory builds a fresh logic instance for one node type.
type Factory func() execution.NodeLogic

// Registry maps node type names to factories. It satisfies
// execution.LogicRegistry and is populated once at startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Default returns a registry with every built-in node type registered.
func Default() *Registry {
	r := NewRegistry()
	builtins := []Factory{
		func() execution.NodeLogic { return &StartNode{} },
		func() execution.NodeLogic { return &BranchNode{} },
		func() execution.NodeLogic { return &SequenceNode{} },
		func() execution.NodeLogic { return &LogNode{} },
		func() execution.NodeLogic { return &DelayNode{} },
		func() execution.NodeLogic { return &GetVariableNode{} },
		func() execution.NodeLogic { return &SetVariableNode{} },
		func() execution.NodeLogic { return &GateNode{} },
		func() execution.NodeLogic { return &TimeoutNode{} },
		func() execution.NodeLogic { return &RetryNode{} },
	}
	for _, f := range builtins {
		// Built-in names are distinct; a clash is a programming error.
		if err := r.Register(f); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a node type, keyed by its definition name. Registering
// the same name twice is an error.
func (r *Registry) Register(factory Factory) error {
	name := factory().Definition().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("node type already registered: %s", name)
	}
	r.factories[name] = factory
	return nil
}

// Instantiate returns a fresh logic instance for the node type.
func (r *Registry) Instantiate(name string) (execution.NodeLogic, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", execution.ErrUnknownNodeType, name)
	}
	return factory(), nil
}

// NewNode places a fresh node of the given type, with newly generated
// pin IDs, ready to be added to a board.
func (r *Registry) NewNode(name string) (*flow.Node, error) {
	logic, err := r.Instantiate(name)
	if err != nil {
		return nil, err
	}
	def := logic.Definition()
	return &def, nil
}

// Names lists the registered node types in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

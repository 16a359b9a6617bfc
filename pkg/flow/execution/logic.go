package execution

import (
	"context"
	"errors"

	"github.com/espalierhq/espalier/pkg/flow"
)

// NodeLogic is the capability contract every catalog node implements.
// Definition declares the node's pins and metadata; Run executes its
// logic against the per-invocation context. Run implementations must
// deactivate every execution pin they may later activate before
// evaluating inputs, so stale activations from a previous invocation
// never leak into the current one.
type NodeLogic interface {
	Definition() flow.Node
	Run(ctx context.Context, ec *ExecutionContext) error
}

// Updater is implemented by node logics that reshape their pins in
// reaction to board edits, for example a selector whose choice changes
// which output pins exist.
type Updater interface {
	OnUpdate(node *flow.Node, b *flow.Board)
}

// LogicRegistry resolves a node type name to a fresh logic instance.
// The catalog package provides the standard implementation.
type LogicRegistry interface {
	Instantiate(name string) (NodeLogic, error)
}

// ErrUnknownNodeType is returned when a board references a node type
// the registry does not know.
var ErrUnknownNodeType = errors.New("unknown node type")

// KeyValueStore is durable state that outlives a single run, used by
// nodes with persisted toggles such as gates. Implementations live in
// the adapters packages.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (any, bool, error)
	Set(ctx context.Context, key string, value any) error
}

// ObjectStore is the storage handle nodes reach through the context:
// get/put/list by path, owned by an external backend.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// Token is a credential handed to nodes that call external providers.
type Token struct {
	AccessToken string `json:"access_token"`
	Expiry      int64  `json:"expiry"`
}

// TokenProvider resolves OAuth tokens by provider name. Expired tokens
// are the provider's problem; the context only passes them through.
type TokenProvider interface {
	Token(ctx context.Context, provider string) (Token, error)
}

// StreamFn receives progress and streaming events emitted by nodes for
// live UI updates.
type StreamFn func(event any)

// Hooks observe the run lifecycle. All fields are optional.
type Hooks struct {
	OnRunStart   func(run *Run)
	OnNodeFinish func(run *Run, trace Trace)
	OnRunEnd     func(run *Run)
}

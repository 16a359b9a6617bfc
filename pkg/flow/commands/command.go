// Package commands implements the undoable mutation layer. Every board
// edit is a value object with Execute and Undo, serializable to a JSON
// envelope so the editor protocol can transport and replay it. Any
// change to a command's shape is a breaking protocol change.
package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/espalierhq/espalier/pkg/flow"
)

// Command is one undoable board mutation. Execute must leave the board
// unchanged when it returns an error. Undo must restore the board to a
// state serialization-equal to the pre-Execute state. Commands must be
// re-executable after their own Undo, since redo re-runs Execute on
// the same value object.
type Command interface {
	CommandType() string
	Execute(ctx context.Context, b *flow.Board) error
	Undo(ctx context.Context, b *flow.Board) error
}

// Envelope is the wire form of a command.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

var factories = map[string]func() Command{}

func register(commandType string, factory func() Command) {
	factories[commandType] = factory
}

// Encode wraps a command into its JSON envelope.
func Encode(c Command) ([]byte, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command payload: %w", err)
	}
	return json.Marshal(Envelope{Type: c.CommandType(), Payload: payload})
}

// Decode parses a JSON envelope back into a typed command.
func Decode(data []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse command envelope: %w", err)
	}
	factory, ok := factories[env.Type]
	if !ok {
		return nil, fmt.Errorf("unknown command type: %s", env.Type)
	}
	cmd := factory()
	if err := json.Unmarshal(env.Payload, cmd); err != nil {
		return nil, fmt.Errorf("failed to parse %s payload: %w", env.Type, err)
	}
	return cmd, nil
}

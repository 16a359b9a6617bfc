package commands

import (
	"context"
	"fmt"

	"github.com/espalierhq/espalier/pkg/flow"
)

// ConnectPins authors an edge between a producing pin and a consuming
// pin. Both sides of the ConnectedTo/DependsOn pair are written in one
// step; a freshly-made edit must never rely on the cleanup pipeline to
// complete it.
type ConnectPins struct {
	FromPin string `json:"from_pin"`
	ToPin   string `json:"to_pin"`
	// Existed records whether the edge was already present, so Undo
	// does not remove an edge this command did not create.
	Existed bool `json:"existed,omitempty"`
}

func NewConnectPins(fromPin, toPin string) *ConnectPins {
	return &ConnectPins{FromPin: fromPin, ToPin: toPin}
}

func (c *ConnectPins) CommandType() string { return "connect_pins" }

func (c *ConnectPins) Execute(_ context.Context, b *flow.Board) error {
	from, to, err := resolvePair(b, c.FromPin, c.ToPin)
	if err != nil {
		return fmt.Errorf("connect_pins: %w", err)
	}
	if from.DataType != to.DataType && from.DataType != flow.TypeGeneric && to.DataType != flow.TypeGeneric {
		return fmt.Errorf("connect_pins: type mismatch: %s -> %s", from.DataType, to.DataType)
	}
	c.Existed = from.ConnectedTo.Has(to.ID)
	flow.Connect(from, to)
	b.Touch()
	return nil
}

func (c *ConnectPins) Undo(_ context.Context, b *flow.Board) error {
	if c.Existed {
		return nil
	}
	from, to, err := resolvePair(b, c.FromPin, c.ToPin)
	if err != nil {
		return fmt.Errorf("connect_pins: %w", err)
	}
	flow.Disconnect(from, to)
	b.Touch()
	return nil
}

// DisconnectPins removes an edge; Undo restores it.
type DisconnectPins struct {
	FromPin string `json:"from_pin"`
	ToPin   string `json:"to_pin"`
	Existed bool   `json:"existed,omitempty"`
}

func NewDisconnectPins(fromPin, toPin string) *DisconnectPins {
	return &DisconnectPins{FromPin: fromPin, ToPin: toPin}
}

func (c *DisconnectPins) CommandType() string { return "disconnect_pins" }

func (c *DisconnectPins) Execute(_ context.Context, b *flow.Board) error {
	from, to, err := resolvePair(b, c.FromPin, c.ToPin)
	if err != nil {
		return fmt.Errorf("disconnect_pins: %w", err)
	}
	c.Existed = from.ConnectedTo.Has(to.ID)
	flow.Disconnect(from, to)
	b.Touch()
	return nil
}

func (c *DisconnectPins) Undo(_ context.Context, b *flow.Board) error {
	if !c.Existed {
		return nil
	}
	from, to, err := resolvePair(b, c.FromPin, c.ToPin)
	if err != nil {
		return fmt.Errorf("disconnect_pins: %w", err)
	}
	flow.Connect(from, to)
	b.Touch()
	return nil
}

func resolvePair(b *flow.Board, fromID, toID string) (*flow.Pin, *flow.Pin, error) {
	lookup := b.PinLookup()
	from, ok := lookup[fromID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", flow.ErrPinNotFound, fromID)
	}
	to, ok := lookup[toID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", flow.ErrPinNotFound, toID)
	}
	return from.Pin, to.Pin, nil
}

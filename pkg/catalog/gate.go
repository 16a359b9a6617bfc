package catalog

import (
	"context"

	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/espalierhq/espalier/pkg/flow/execution"
)

// GateNode forwards its Enter trigger only while open. Open, Close and
// Toggle mutate the persisted gate state without forwarding execution
// themselves. The state survives across runs through the durable
// key-value store; without one it lives in the run cache.
type GateNode struct{}

func (GateNode) Definition() flow.Node {
	n := flow.NewNode("gate", "Gate", "Forwards execution only while open", "Control")
	n.AddInputExecPin("enter", "Enter", "Forwarded to Exit while the gate is open")
	n.AddInputExecPin("open", "Open", "Opens the gate")
	n.AddInputExecPin("close", "Close", "Closes the gate")
	n.AddInputExecPin("toggle", "Toggle", "Flips the gate state")
	startClosed := n.AddInputPin("start_closed", "Start Closed", "Initial gate state", flow.TypeBoolean)
	startClosed.DefaultValue = false
	n.AddOutputExecPin("exit", "Exit", "Fired when Enter passes an open gate")
	n.AddOutputPin("is_open", "Is Open", "Current gate state", flow.TypeBoolean)
	return *n
}

func (g GateNode) Run(ctx context.Context, ec *execution.ExecutionContext) error {
	if err := ec.DeactivateExecPin("exit"); err != nil {
		return err
	}
	open, err := g.loadState(ctx, ec)
	if err != nil {
		return err
	}

	switch {
	case ec.ExecInActive("open"):
		open = true
	case ec.ExecInActive("close"):
		open = false
	case ec.ExecInActive("toggle"):
		open = !open
	}
	if err := g.saveState(ctx, ec, open); err != nil {
		return err
	}

	if ec.ExecInActive("enter") && open {
		if err := ec.ActivateExecPin("exit"); err != nil {
			return err
		}
	}
	return ec.SetPinValue("is_open", open)
}

func (GateNode) stateKey(ec *execution.ExecutionContext) string {
	return "gate:" + ec.Node().ID()
}

func (g GateNode) loadState(ctx context.Context, ec *execution.ExecutionContext) (bool, error) {
	key := g.stateKey(ec)
	if kv := ec.State(); kv != nil {
		raw, ok, err := kv.Get(ctx, key)
		if err != nil {
			return false, err
		}
		if ok {
			open, _ := raw.(bool)
			return open, nil
		}
	} else if raw, ok := ec.Cache().Get(key); ok {
		open, _ := raw.(bool)
		return open, nil
	}
	startClosed, err := execution.EvaluatePin[bool](ctx, ec, "start_closed")
	if err != nil {
		return false, err
	}
	return !startClosed, nil
}

func (g GateNode) saveState(ctx context.Context, ec *execution.ExecutionContext, open bool) error {
	key := g.stateKey(ec)
	if kv := ec.State(); kv != nil {
		return kv.Set(ctx, key, open)
	}
	ec.Cache().Set(key, open)
	return nil
}

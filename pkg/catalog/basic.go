package catalog

import (
	"context"
	"time"

	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/espalierhq/espalier/pkg/flow/execution"
)

// StartNode is the entry point of a board. The run loop picks up every
// placed start node and triggers it first.
type StartNode struct{}

func (StartNode) Definition() flow.Node {
	n := flow.NewNode("start", "Start", "Entry point of the flow", "Events")
	n.Start = true
	n.AddOutputExecPin("exec_out", "Out", "Fired when the run begins")
	return *n
}

func (StartNode) Run(_ context.Context, ec *execution.ExecutionContext) error {
	return ec.ActivateExecPin("exec_out")
}

// BranchNode routes execution onto one of two pins based on a boolean
// condition.
type BranchNode struct{}

func (BranchNode) Definition() flow.Node {
	n := flow.NewNode("branch", "Branch", "Routes execution based on a condition", "Control")
	n.AddInputExecPin("exec_in", "In", "")
	pin := n.AddInputPin("condition", "Condition", "Which path to take", flow.TypeBoolean)
	pin.DefaultValue = false
	n.AddOutputExecPin("exec_true", "True", "Taken when the condition holds")
	n.AddOutputExecPin("exec_false", "False", "Taken otherwise")
	return *n
}

func (BranchNode) Run(ctx context.Context, ec *execution.ExecutionContext) error {
	if err := ec.DeactivateExecPin("exec_true"); err != nil {
		return err
	}
	if err := ec.DeactivateExecPin("exec_false"); err != nil {
		return err
	}
	condition, err := execution.EvaluatePin[bool](ctx, ec, "condition")
	if err != nil {
		return err
	}
	if condition {
		return ec.ActivateExecPin("exec_true")
	}
	return ec.ActivateExecPin("exec_false")
}

// SequenceNode drives its step pins strictly one after another, each
// step's whole sub-graph finishing before the next starts.
type SequenceNode struct{}

var sequenceSteps = []string{"step_1", "step_2", "step_3"}

func (SequenceNode) Definition() flow.Node {
	n := flow.NewNode("sequence", "Sequence", "Runs steps strictly in order", "Control")
	n.AddInputExecPin("exec_in", "In", "")
	for i, step := range sequenceSteps {
		pin := n.AddOutputExecPin(step, "Step", "")
		pin.Index = i + 1
	}
	return *n
}

func (SequenceNode) Run(ctx context.Context, ec *execution.ExecutionContext) error {
	for _, step := range sequenceSteps {
		if err := ec.TriggerConnected(ctx, step); err != nil {
			return err
		}
	}
	return nil
}

// LogNode writes a message into the run trace.
type LogNode struct{}

func (LogNode) Definition() flow.Node {
	n := flow.NewNode("log_message", "Log", "Logs a message into the run trace", "Utility")
	n.AddInputExecPin("exec_in", "In", "")
	n.AddInputPin("message", "Message", "Text to log", flow.TypeString)
	levelPin := n.AddInputPin("level", "Level", "Severity", flow.TypeString)
	levelPin.DefaultValue = "info"
	levelPin.Options = &flow.PinOptions{ValidValues: []string{"debug", "info", "warn", "error"}}
	n.AddOutputExecPin("exec_out", "Out", "")
	return *n
}

func (LogNode) Run(ctx context.Context, ec *execution.ExecutionContext) error {
	if err := ec.DeactivateExecPin("exec_out"); err != nil {
		return err
	}
	message, err := execution.EvaluatePin[string](ctx, ec, "message")
	if err != nil {
		return err
	}
	level, err := execution.EvaluatePin[string](ctx, ec, "level")
	if err != nil {
		return err
	}
	ec.Log(flow.ParseLogLevel(level), message)
	return ec.ActivateExecPin("exec_out")
}

// DelayNode suspends its branch for a duration, returning early when
// the run is cancelled.
type DelayNode struct{}

func (DelayNode) Definition() flow.Node {
	n := flow.NewNode("delay", "Delay", "Waits before continuing", "Control")
	n.AddInputExecPin("exec_in", "In", "")
	pin := n.AddInputPin("duration_ms", "Duration (ms)", "How long to wait", flow.TypeInteger)
	pin.DefaultValue = 1000
	n.AddOutputExecPin("exec_out", "Out", "")
	return *n
}

func (DelayNode) Run(ctx context.Context, ec *execution.ExecutionContext) error {
	if err := ec.DeactivateExecPin("exec_out"); err != nil {
		return err
	}
	ms, err := execution.EvaluatePin[int64](ctx, ec, "duration_ms")
	if err != nil {
		return err
	}
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	return ec.ActivateExecPin("exec_out")
}

// GetVariableNode reads a board variable. It is pure: consumers pull it
// on demand instead of the run loop triggering it.
type GetVariableNode struct{}

func (GetVariableNode) Definition() flow.Node {
	n := flow.NewNode("variable_get", "Get Variable", "Reads a board variable", "Variables")
	n.AddInputPin("name", "Name", "Variable name", flow.TypeString)
	n.AddOutputPin("value", "Value", "Current value", flow.TypeGeneric)
	return *n
}

func (GetVariableNode) Run(ctx context.Context, ec *execution.ExecutionContext) error {
	name, err := execution.EvaluatePin[string](ctx, ec, "name")
	if err != nil {
		return err
	}
	value, _ := ec.Variable(name)
	return ec.SetPinValue("value", value)
}

// OnUpdate retypes the value pin to match the referenced variable, so
// the editor validates connections against the variable's real type.
func (GetVariableNode) OnUpdate(node *flow.Node, b *flow.Board) {
	retypeValuePin(node, b)
}

// SetVariableNode writes a board variable for the rest of the run.
type SetVariableNode struct{}

func (SetVariableNode) Definition() flow.Node {
	n := flow.NewNode("variable_set", "Set Variable", "Writes a board variable", "Variables")
	n.AddInputExecPin("exec_in", "In", "")
	n.AddInputPin("name", "Name", "Variable name", flow.TypeString)
	n.AddInputPin("value", "Value", "New value", flow.TypeGeneric)
	n.AddOutputExecPin("exec_out", "Out", "")
	return *n
}

func (SetVariableNode) Run(ctx context.Context, ec *execution.ExecutionContext) error {
	if err := ec.DeactivateExecPin("exec_out"); err != nil {
		return err
	}
	name, err := execution.EvaluatePin[string](ctx, ec, "name")
	if err != nil {
		return err
	}
	value, err := ec.EvaluatePin(ctx, "value")
	if err != nil {
		return err
	}
	ec.SetVariable(name, value)
	return ec.ActivateExecPin("exec_out")
}

func (SetVariableNode) OnUpdate(node *flow.Node, b *flow.Board) {
	retypeValuePin(node, b)
}

// retypeValuePin looks up the board variable named by the node's name
// pin default and copies its type onto the value pin. Unknown or empty
// names leave the pin generic.
func retypeValuePin(node *flow.Node, b *flow.Board) {
	namePin := node.PinByName("name")
	valuePin := node.PinByName("value")
	if namePin == nil || valuePin == nil {
		return
	}
	name, _ := namePin.DefaultValue.(string)
	if name == "" {
		return
	}
	for _, v := range b.Variables {
		if v.Name == name {
			valuePin.DataType = v.DataType
			valuePin.ValueKind = v.ValueKind
			return
		}
	}
}

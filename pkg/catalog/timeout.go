package catalog

import (
	"context"
	"time"

	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/espalierhq/espalier/pkg/flow/execution"
)

// TimeoutNode races the sub-graph behind its Body pin against a
// deadline. When the deadline wins, the losing branch's traces are
// discarded and replaced with synthesized interrupted sub-contexts, and
// the Timed Out pin fires instead of Completed. The losing branch is
// abandoned cooperatively, never killed.
type TimeoutNode struct{}

func (TimeoutNode) Definition() flow.Node {
	n := flow.NewNode("timeout", "Timeout", "Aborts the body when a deadline elapses", "Control")
	n.AddInputExecPin("exec_in", "In", "")
	ms := n.AddInputPin("timeout_ms", "Timeout (ms)", "Deadline for the body", flow.TypeInteger)
	ms.DefaultValue = 1000
	n.AddOutputExecPin("exec_body", "Body", "The branch raced against the deadline")
	n.AddOutputExecPin("exec_completed", "Completed", "Body finished in time")
	n.AddOutputExecPin("exec_timed_out", "Timed Out", "Deadline elapsed first")
	return *n
}

func (TimeoutNode) Run(ctx context.Context, ec *execution.ExecutionContext) error {
	for _, pin := range []string{"exec_body", "exec_completed", "exec_timed_out"} {
		if err := ec.DeactivateExecPin(pin); err != nil {
			return err
		}
	}
	ms, err := execution.EvaluatePin[int64](ctx, ec, "timeout_ms")
	if err != nil {
		return err
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
	defer cancel()

	body, merge, discard := ec.Isolate()
	done := make(chan error, 1)
	go func() {
		done <- body.TriggerConnected(deadlineCtx, "exec_body")
	}()

	var timedOut bool
	select {
	case err := <-done:
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		timedOut = deadlineCtx.Err() != nil && ctx.Err() == nil
	case <-deadlineCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		timedOut = true
	}

	if !timedOut {
		merge()
		return ec.ActivateExecPin("exec_completed")
	}

	discard()
	for _, target := range ec.Node().SuccessorsOf("exec_body") {
		sub := ec.CreateSubContext(target)
		sub.MarkInterrupted("interrupted: deadline elapsed before completion")
		ec.PushSubContext(sub)
	}
	return ec.ActivateExecPin("exec_timed_out")
}

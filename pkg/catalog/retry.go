package catalog

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/espalierhq/espalier/pkg/flow/execution"
)

// RetryNode repeats its body sequentially until the body stops asking
// for another attempt or the attempt budget is exhausted. The delay
// between attempts follows a constant, linear or exponential policy
// seeded from the initial delay.
type RetryNode struct{}

func (RetryNode) Definition() flow.Node {
	n := flow.NewNode("retry", "Retry", "Repeats the body with backoff between attempts", "Control")
	n.AddInputExecPin("exec_in", "In", "")
	max := n.AddInputPin("max_retries", "Max Attempts", "Attempt budget", flow.TypeInteger)
	max.DefaultValue = 3
	strategy := n.AddInputPin("strategy", "Backoff", "Delay growth between attempts", flow.TypeString)
	strategy.DefaultValue = "constant"
	strategy.Options = &flow.PinOptions{ValidValues: []string{"constant", "linear", "exponential"}}
	delay := n.AddInputPin("initial_delay_ms", "Initial Delay (ms)", "Delay before the second attempt", flow.TypeInteger)
	delay.DefaultValue = 100
	retry := n.AddInputPin("should_retry", "Should Retry", "Set by the body to request another attempt", flow.TypeBoolean)
	retry.DefaultValue = false
	n.AddOutputExecPin("exec_body", "Body", "The branch run once per attempt")
	n.AddOutputExecPin("exec_success", "Success", "Body stopped asking for retries")
	n.AddOutputExecPin("exec_exhausted", "Exhausted", "Attempt budget spent")
	n.AddOutputPin("total_attempts", "Total Attempts", "How many attempts ran", flow.TypeInteger)
	return *n
}

func (RetryNode) Run(ctx context.Context, ec *execution.ExecutionContext) error {
	for _, pin := range []string{"exec_body", "exec_success", "exec_exhausted"} {
		if err := ec.DeactivateExecPin(pin); err != nil {
			return err
		}
	}
	maxAttempts, err := execution.EvaluatePin[int](ctx, ec, "max_retries")
	if err != nil {
		return err
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	strategy, err := execution.EvaluatePin[string](ctx, ec, "strategy")
	if err != nil {
		return err
	}
	delayMs, err := execution.EvaluatePin[int64](ctx, ec, "initial_delay_ms")
	if err != nil {
		return err
	}
	policy := backoffPolicy(strategy, time.Duration(delayMs)*time.Millisecond)

	attempts := 0
	for attempts < maxAttempts {
		attempts++
		body, merge, _ := ec.Isolate()
		err := body.TriggerConnected(ctx, "exec_body")
		merge()
		if err != nil {
			_ = ec.SetPinValue("total_attempts", attempts)
			return err
		}

		shouldRetry, err := execution.EvaluatePin[bool](ctx, ec, "should_retry")
		if err != nil {
			return err
		}
		if !shouldRetry {
			if err := ec.SetPinValue("total_attempts", attempts); err != nil {
				return err
			}
			return ec.ActivateExecPin("exec_success")
		}
		if attempts == maxAttempts {
			break
		}

		timer := time.NewTimer(policy.NextBackOff())
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	if err := ec.SetPinValue("total_attempts", attempts); err != nil {
		return err
	}
	return ec.ActivateExecPin("exec_exhausted")
}

func backoffPolicy(strategy string, initial time.Duration) backoff.BackOff {
	switch strategy {
	case "exponential":
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = initial
		policy.RandomizationFactor = 0
		policy.Multiplier = 2
		policy.MaxInterval = time.Minute
		policy.MaxElapsedTime = 0
		policy.Reset()
		return policy
	case "linear":
		return &linearBackOff{step: initial}
	default:
		return backoff.NewConstantBackOff(initial)
	}
}

// linearBackOff grows the delay by a fixed step per attempt.
type linearBackOff struct {
	step    time.Duration
	current time.Duration
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.current += l.step
	return l.current
}

func (l *linearBackOff) Reset() {
	l.current = 0
}

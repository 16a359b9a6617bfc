// Package observability exposes engine metrics through Prometheus.
// The Collector plugs into the run lifecycle via execution.Hooks, so
// the engine core stays unaware of the metrics backend.
package observability

import (
	"time"

	"github.com/espalierhq/espalier/pkg/flow/execution"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector registers and feeds the engine's Prometheus metrics.
type Collector struct {
	runsStarted  prometheus.Counter
	runsFinished *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	commands     *prometheus.CounterVec
}

// NewCollector creates the metric set and registers it with the given
// registerer (use prometheus.DefaultRegisterer for the process
// default).
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "espalier",
			Name:      "runs_started_total",
			Help:      "Top-level executions triggered.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "espalier",
			Name:      "runs_finished_total",
			Help:      "Finished executions by final status.",
		}, []string{"status"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "espalier",
			Name:      "node_duration_seconds",
			Help:      "Node invocation duration by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"state"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "espalier",
			Name:      "commands_total",
			Help:      "Board commands executed by type.",
		}, []string{"type"}),
	}
	reg.MustRegister(c.runsStarted, c.runsFinished, c.nodeDuration, c.commands)
	return c
}

// Hooks returns lifecycle hooks feeding the collector.
func (c *Collector) Hooks() execution.Hooks {
	return execution.Hooks{
		OnRunStart: func(*execution.Run) {
			c.runsStarted.Inc()
		},
		OnNodeFinish: func(_ *execution.Run, trace execution.Trace) {
			duration := time.Duration(trace.End-trace.Start) * time.Microsecond
			c.nodeDuration.WithLabelValues(string(trace.State)).Observe(duration.Seconds())
		},
		OnRunEnd: func(run *execution.Run) {
			c.runsFinished.WithLabelValues(string(run.Status)).Inc()
		},
	}
}

// ObserveCommand counts one executed board command.
func (c *Collector) ObserveCommand(commandType string) {
	c.commands.WithLabelValues(commandType).Inc()
}

package observability_test

import (
	"testing"

	"github.com/espalierhq/espalier/pkg/flow/execution"
	"github.com/espalierhq/espalier/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCountsRunLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := observability.NewCollector(reg)
	hooks := collector.Hooks()
	require.NotNil(t, hooks.OnRunStart)
	require.NotNil(t, hooks.OnNodeFinish)
	require.NotNil(t, hooks.OnRunEnd)

	run := &execution.Run{ID: "r1", Status: execution.RunSuccess}
	hooks.OnRunStart(run)
	hooks.OnNodeFinish(run, execution.Trace{State: execution.StateSuccess, Start: 0, End: 1500})
	hooks.OnRunEnd(run)
	collector.ObserveCommand("add_node")
	collector.ObserveCommand("add_node")

	families, err := reg.Gather()
	require.NoError(t, err)

	byName := make(map[string]bool, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = true
	}
	assert.True(t, byName["espalier_runs_started_total"])
	assert.True(t, byName["espalier_runs_finished_total"])
	assert.True(t, byName["espalier_node_duration_seconds"])
	assert.True(t, byName["espalier_commands_total"])

	count, err := testutil.GatherAndCount(reg, "espalier_runs_finished_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

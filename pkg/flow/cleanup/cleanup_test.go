package cleanup_test

import (
	"testing"

	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/espalierhq/espalier/pkg/flow/cleanup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placedNode(name string, x, y float64) *flow.Node {
	n := flow.NewNode(name, name, "", "test")
	coords := [3]float64{x, y, 0}
	n.Coordinates = &coords
	return n
}

func TestApplyEnforcesEdgeSymmetry(t *testing.T) {
	b := flow.NewBoard("symmetry")

	producer := placedNode("producer", 0, 0)
	out := producer.AddOutputPin("value", "Value", "", flow.TypeString)
	b.Nodes[producer.ID] = producer

	consumer := placedNode("consumer", 300, 0)
	in := consumer.AddInputPin("input", "Input", "", flow.TypeString)
	b.Nodes[consumer.ID] = consumer

	// A healthy edge, a half-written edge and a dangling edge.
	flow.Connect(out, in)
	out.ConnectedTo.Add("no-such-pin")
	half := consumer.AddInputPin("other", "Other", "", flow.TypeString)
	half.DependsOn.Add(out.ID) // out never lists half back

	cleanup.Apply(b)

	assert.True(t, out.ConnectedTo.Has(in.ID))
	assert.True(t, in.DependsOn.Has(out.ID))
	assert.False(t, out.ConnectedTo.Has("no-such-pin"))
	assert.False(t, half.DependsOn.Has(out.ID))

	// Every surviving edge resolves and is mirrored.
	lookup := b.PinLookup()
	for _, ref := range lookup {
		for _, target := range ref.Pin.ConnectedTo.Values() {
			counterpart, ok := lookup[target]
			require.True(t, ok)
			assert.True(t, counterpart.Pin.DependsOn.Has(ref.Pin.ID))
		}
		for _, source := range ref.Pin.DependsOn.Values() {
			counterpart, ok := lookup[source]
			require.True(t, ok)
			assert.True(t, counterpart.Pin.ConnectedTo.Has(ref.Pin.ID))
		}
	}
}

func TestApplyPrunesDanglingRefs(t *testing.T) {
	b := flow.NewBoard("refs")

	n := placedNode("caller", 0, 0)
	n.FnRefs.Add("gone")
	b.Nodes[n.ID] = n

	l := flow.NewLayer("group", flow.LayerCollapsed)
	coords := [3]float64{0, 0, 0}
	l.Coordinates = &coords
	l.Nodes.Add(n.ID)
	l.Nodes.Add("also-gone")
	l.Comments.Add("missing-comment")
	b.Layers[l.ID] = l

	cleanup.Apply(b)

	assert.False(t, n.FnRefs.Has("gone"))
	assert.True(t, l.Nodes.Has(n.ID))
	assert.False(t, l.Nodes.Has("also-gone"))
	assert.False(t, l.Comments.Has("missing-comment"))
}

func TestApplyAssignsMissingCoordinates(t *testing.T) {
	b := flow.NewBoard("coords")

	placed := placedNode("placed", 100, 400)
	b.Nodes[placed.ID] = placed

	floating := flow.NewNode("floating", "Floating", "", "test")
	b.Nodes[floating.ID] = floating

	cleanup.Apply(b)

	require.NotNil(t, floating.Coordinates)
	// Auto-placement lands below the lowest placed element.
	assert.Greater(t, floating.Coordinates[1], placed.Coordinates[1])
	assert.Equal(t, [3]float64{100, 400, 0}, *placed.Coordinates)
}

func TestApplyRemovesOrphanBoundaryPins(t *testing.T) {
	b := flow.NewBoard("bridges")

	inner := placedNode("inner", 0, 0)
	innerOut := inner.AddOutputPin("value", "Value", "", flow.TypeString)
	b.Nodes[inner.ID] = inner

	outer := placedNode("outer", 600, 0)
	outerIn := outer.AddInputPin("input", "Input", "", flow.TypeString)
	b.Nodes[outer.ID] = outer

	l := flow.NewLayer("group", flow.LayerCollapsed)
	coords := [3]float64{300, 0, 0}
	l.Coordinates = &coords
	l.Nodes.Add(inner.ID)
	inner.Layer = l.ID
	b.Layers[l.ID] = l

	// A live bridge relaying inner -> boundary -> outer.
	bridge := l.AddPin(flow.NewPin("value", "Value", "", flow.PinOutput, flow.TypeString))
	flow.Connect(innerOut, bridge)
	flow.Connect(bridge, outerIn)

	// An orphan touching only the outside world.
	orphan := l.AddPin(flow.NewPin("stale", "Stale", "", flow.PinInput, flow.TypeString))
	flow.Connect(orphan, outerIn)

	cleanup.Apply(b)

	_, live := l.Pins[bridge.ID]
	assert.True(t, live)
	_, gone := l.Pins[orphan.ID]
	assert.False(t, gone)
	// The orphan's edges were stripped from the survivors too.
	assert.False(t, outerIn.DependsOn.Has(orphan.ID))
}

func TestApplyRenumbersPinIndices(t *testing.T) {
	b := flow.NewBoard("indices")

	n := placedNode("op", 0, 0)
	in := n.AddInputExecPin("exec_in", "In", "")
	in.Index = 40
	data := n.AddInputPin("value", "Value", "", flow.TypeString)
	data.Index = 90
	out := n.AddOutputExecPin("exec_out", "Out", "")
	out.Index = 7
	b.Nodes[n.ID] = n

	cleanup.Apply(b)

	assert.Equal(t, 1, in.Index)
	assert.Equal(t, 2, data.Index)
	assert.Equal(t, 3, out.Index)
}

// Running cleanup twice must be byte-for-byte idempotent: the second
// pass finds nothing left to repair.
func TestApplyIsIdempotent(t *testing.T) {
	b := flow.NewBoard("idempotent")

	producer := flow.NewNode("producer", "Producer", "", "test")
	out := producer.AddOutputPin("value", "Value", "", flow.TypeString)
	b.Nodes[producer.ID] = producer

	consumer := flow.NewNode("consumer", "Consumer", "", "test")
	in := consumer.AddInputPin("input", "Input", "", flow.TypeString)
	consumer.FnRefs.Add("nowhere")
	b.Nodes[consumer.ID] = consumer

	flow.Connect(out, in)
	out.ConnectedTo.Add("dangling")

	cleanup.Apply(b)
	first, err := b.Marshal()
	require.NoError(t, err)

	cleanup.Apply(b)
	second, err := b.Marshal()
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestPassOrderIsFixed(t *testing.T) {
	var names []string
	for _, pass := range cleanup.Passes() {
		names = append(names, pass.Name())
	}
	assert.Equal(t, []string{
		"fix_initial_coordinates",
		"fix_refs",
		"fix_pins",
		"bridge_layers",
		"pin_indices",
	}, names)
}

package flow_test

import (
	"testing"

	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectWritesBothSides(t *testing.T) {
	a := flow.NewPin("out", "Out", "", flow.PinOutput, flow.TypeString)
	b := flow.NewPin("in", "In", "", flow.PinInput, flow.TypeString)

	flow.Connect(a, b)
	assert.True(t, a.ConnectedTo.Has(b.ID))
	assert.True(t, b.DependsOn.Has(a.ID))

	flow.Disconnect(a, b)
	assert.False(t, a.ConnectedTo.Has(b.ID))
	assert.False(t, b.DependsOn.Has(a.ID))
}

func TestPinLookupCoversNodesAndLayers(t *testing.T) {
	b := flow.NewBoard("lookup")

	n := flow.NewNode("op", "Op", "", "test")
	nodePin := n.AddOutputPin("value", "Value", "", flow.TypeString)
	b.Nodes[n.ID] = n

	l := flow.NewLayer("group", flow.LayerCollapsed)
	layerPin := l.AddPin(flow.NewPin("bridge", "Bridge", "", flow.PinInput, flow.TypeString))
	b.Layers[l.ID] = l

	lookup := b.PinLookup()
	require.Len(t, lookup, 2)

	ref, ok := lookup[nodePin.ID]
	require.True(t, ok)
	assert.Same(t, n, ref.Node)
	assert.Nil(t, ref.Layer)

	ref, ok = lookup[layerPin.ID]
	require.True(t, ok)
	assert.Same(t, l, ref.Layer)
	assert.Nil(t, ref.Node)
}

func TestNodeByIDNotFound(t *testing.T) {
	b := flow.NewBoard("empty")

	_, err := b.NodeByID("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, flow.ErrNodeNotFound)
}

func TestStartNodes(t *testing.T) {
	b := flow.NewBoard("starts")

	start := flow.NewNode("start", "Start", "", "events")
	start.Start = true
	b.Nodes[start.ID] = start

	callback := flow.NewNode("on_event", "On Event", "", "events")
	callback.EventCallback = true
	b.Nodes[callback.ID] = callback

	plain := flow.NewNode("op", "Op", "", "test")
	b.Nodes[plain.ID] = plain

	assert.Len(t, b.StartNodes(false), 1)
	assert.Len(t, b.StartNodes(true), 2)
}

func TestBumpVersion(t *testing.T) {
	b := flow.NewBoard("versions")
	b.Version = [3]int64{1, 2, 3}

	assert.Equal(t, [3]int64{1, 2, 4}, b.BumpVersion(flow.BumpPatch))
	assert.Equal(t, [3]int64{1, 3, 0}, b.BumpVersion(flow.BumpMinor))
	assert.Equal(t, [3]int64{2, 0, 0}, b.BumpVersion(flow.BumpMajor))
}

func TestRefFallsBackToKey(t *testing.T) {
	b := flow.NewBoard("refs")
	b.Refs = map[string]string{"schema:user": `{"type":"object"}`}

	assert.Equal(t, `{"type":"object"}`, b.Ref("schema:user"))
	assert.Equal(t, "inline-schema", b.Ref("inline-schema"))
}

func TestBoardCloneIsDeep(t *testing.T) {
	b := flow.NewBoard("original")
	n := flow.NewNode("op", "Op", "", "test")
	pin := n.AddOutputPin("value", "Value", "", flow.TypeString)
	b.Nodes[n.ID] = n
	v := flow.NewVariable("greeting", flow.TypeString, "hello")
	b.Variables[v.ID] = v

	c := b.Clone()
	c.Nodes[n.ID].Pins[pin.ID].ConnectedTo.Add("other")
	c.Variables[v.ID].DefaultValue = "changed"

	assert.False(t, b.Nodes[n.ID].Pins[pin.ID].ConnectedTo.Has("other"))
	assert.Equal(t, "hello", b.Variables[v.ID].DefaultValue)
}

func TestUnmarshalBoardNormalizes(t *testing.T) {
	// Hand-edited documents may drop the collection fields entirely.
	b, err := flow.UnmarshalBoard([]byte(`{"id":"b1","name":"sparse"}`))
	require.NoError(t, err)

	assert.NotNil(t, b.Nodes)
	assert.NotNil(t, b.Layers)
	assert.NotNil(t, b.Variables)
	assert.NotNil(t, b.Comments)
}

func TestMarshalRoundTrip(t *testing.T) {
	b := flow.NewBoard("round-trip")
	n := flow.NewNode("op", "Op", "", "test")
	out := n.AddOutputPin("value", "Value", "", flow.TypeString)
	in := n.AddInputPin("input", "Input", "", flow.TypeString)
	flow.Connect(out, in)
	b.Nodes[n.ID] = n

	data, err := b.Marshal()
	require.NoError(t, err)

	decoded, err := flow.UnmarshalBoard(data)
	require.NoError(t, err)

	again, err := decoded.Marshal()
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

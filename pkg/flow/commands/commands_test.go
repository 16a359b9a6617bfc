package commands_test

import (
	"context"
	"testing"

	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/espalierhq/espalier/pkg/flow/cleanup"
	"github.com/espalierhq/espalier/pkg/flow/commands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// snapshot marshals the board with the modification timestamp zeroed, so
// two states can be compared for serialization equality.
func snapshot(t *testing.T, b *flow.Board) string {
	t.Helper()
	c := b.Clone()
	c.UpdatedAt = 0
	data, err := c.Marshal()
	require.NoError(t, err)
	return string(data)
}

// wiredBoard builds a producer -> consumer pair with one data edge.
func wiredBoard(t *testing.T) (*flow.Board, *flow.Node, *flow.Node, *flow.Pin, *flow.Pin) {
	t.Helper()
	b := flow.NewBoard("test")

	producer := flow.NewNode("producer", "Producer", "", "test")
	out := producer.AddOutputPin("value", "Value", "", flow.TypeString)
	b.Nodes[producer.ID] = producer

	consumer := flow.NewNode("consumer", "Consumer", "", "test")
	in := consumer.AddInputPin("input", "Input", "", flow.TypeString)
	b.Nodes[consumer.ID] = consumer

	flow.Connect(out, in)
	cleanup.Apply(b)
	return b, producer, consumer, out, in
}

func TestRemoveNodeStripsNeighborEdges(t *testing.T) {
	ctx := context.Background()
	b, producer, consumer, out, in := wiredBoard(t)

	before := snapshot(t, b)

	cmd := commands.NewRemoveNode(producer)
	require.NoError(t, cmd.Execute(ctx, b))
	cleanup.Apply(b)

	_, gone := b.Nodes[producer.ID]
	assert.False(t, gone)
	// The surviving consumer no longer depends on the removed pin.
	assert.False(t, in.DependsOn.Has(out.ID))
	_, stillThere := b.Nodes[consumer.ID]
	assert.True(t, stillThere)

	require.NoError(t, cmd.Undo(ctx, b))
	cleanup.Apply(b)
	assert.Equal(t, before, snapshot(t, b))
}

func TestRemoveNodeMissingFails(t *testing.T) {
	b := flow.NewBoard("empty")
	phantom := flow.NewNode("ghost", "Ghost", "", "test")

	before := snapshot(t, b)
	err := commands.NewRemoveNode(phantom).Execute(context.Background(), b)
	require.Error(t, err)
	assert.ErrorIs(t, err, flow.ErrNodeNotFound)
	// A failed command leaves the board untouched.
	assert.Equal(t, before, snapshot(t, b))
}

func TestAddNodeRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := flow.NewBoard("test")
	cleanup.Apply(b)
	before := snapshot(t, b)

	n := flow.NewNode("op", "Op", "", "test")
	n.AddInputExecPin("exec_in", "In", "")

	cmd := commands.NewAddNode(n)
	require.NoError(t, cmd.Execute(ctx, b))
	_, ok := b.Nodes[n.ID]
	assert.True(t, ok)

	require.NoError(t, cmd.Undo(ctx, b))
	cleanup.Apply(b)
	assert.Equal(t, before, snapshot(t, b))
}

func TestAddNodeDuplicateFails(t *testing.T) {
	ctx := context.Background()
	b := flow.NewBoard("test")
	n := flow.NewNode("op", "Op", "", "test")
	require.NoError(t, commands.NewAddNode(n).Execute(ctx, b))

	err := commands.NewAddNode(n).Execute(ctx, b)
	assert.Error(t, err)
}

func TestUpdateNodeRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, producer, _, _, _ := wiredBoard(t)
	before := snapshot(t, b)

	edited := producer.Clone()
	edited.FriendlyName = "Renamed"
	cmd := commands.NewUpdateNode(edited)
	require.NoError(t, cmd.Execute(ctx, b))
	assert.Equal(t, "Renamed", b.Nodes[producer.ID].FriendlyName)

	require.NoError(t, cmd.Undo(ctx, b))
	assert.Equal(t, before, snapshot(t, b))
}

func TestMoveNodeRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, producer, _, _, _ := wiredBoard(t)
	before := snapshot(t, b)

	cmd := commands.NewMoveNode(producer.ID, [3]float64{500, 500, 0})
	require.NoError(t, cmd.Execute(ctx, b))
	assert.Equal(t, [3]float64{500, 500, 0}, *b.Nodes[producer.ID].Coordinates)

	require.NoError(t, cmd.Undo(ctx, b))
	assert.Equal(t, before, snapshot(t, b))
}

func TestConnectPinsWritesBothSides(t *testing.T) {
	ctx := context.Background()
	b, producer, consumer, _, _ := wiredBoard(t)

	out2 := producer.AddOutputPin("extra", "Extra", "", flow.TypeString)
	in2 := consumer.AddInputPin("extra_in", "Extra In", "", flow.TypeString)
	cleanup.Apply(b)
	before := snapshot(t, b)

	cmd := commands.NewConnectPins(out2.ID, in2.ID)
	require.NoError(t, cmd.Execute(ctx, b))
	assert.True(t, out2.ConnectedTo.Has(in2.ID))
	assert.True(t, in2.DependsOn.Has(out2.ID))

	require.NoError(t, cmd.Undo(ctx, b))
	assert.Equal(t, before, snapshot(t, b))
}

func TestConnectPinsTypeMismatch(t *testing.T) {
	ctx := context.Background()
	b, producer, consumer, _, _ := wiredBoard(t)

	out := producer.AddOutputPin("count", "Count", "", flow.TypeInteger)
	in := consumer.AddInputPin("text", "Text", "", flow.TypeString)

	err := commands.NewConnectPins(out.ID, in.ID).Execute(ctx, b)
	assert.Error(t, err)
	assert.False(t, out.ConnectedTo.Has(in.ID))

	// Generic pins accept any data type.
	anyIn := consumer.AddInputPin("anything", "Anything", "", flow.TypeGeneric)
	require.NoError(t, commands.NewConnectPins(out.ID, anyIn.ID).Execute(ctx, b))
	assert.True(t, out.ConnectedTo.Has(anyIn.ID))
}

func TestConnectPinsExistingEdgeSurvivesUndo(t *testing.T) {
	ctx := context.Background()
	b, _, _, out, in := wiredBoard(t)

	cmd := commands.NewConnectPins(out.ID, in.ID)
	require.NoError(t, cmd.Execute(ctx, b))
	require.NoError(t, cmd.Undo(ctx, b))

	// The edge predates the command, so undo must not remove it.
	assert.True(t, out.ConnectedTo.Has(in.ID))
}

func TestDisconnectPinsRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, _, _, out, in := wiredBoard(t)
	before := snapshot(t, b)

	cmd := commands.NewDisconnectPins(out.ID, in.ID)
	require.NoError(t, cmd.Execute(ctx, b))
	assert.False(t, out.ConnectedTo.Has(in.ID))
	assert.False(t, in.DependsOn.Has(out.ID))

	require.NoError(t, cmd.Undo(ctx, b))
	assert.Equal(t, before, snapshot(t, b))
}

func TestVariableCommandsRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := flow.NewBoard("vars")
	cleanup.Apply(b)
	before := snapshot(t, b)

	v := flow.NewVariable("greeting", flow.TypeString, "hello")
	upsert := commands.NewUpsertVariable(v)
	require.NoError(t, upsert.Execute(ctx, b))
	assert.Equal(t, "hello", b.Variables[v.ID].DefaultValue)

	edited := v.Clone()
	edited.DefaultValue = "goodbye"
	second := commands.NewUpsertVariable(edited)
	require.NoError(t, second.Execute(ctx, b))
	assert.Equal(t, "goodbye", b.Variables[v.ID].DefaultValue)

	require.NoError(t, second.Undo(ctx, b))
	assert.Equal(t, "hello", b.Variables[v.ID].DefaultValue)

	remove := commands.NewRemoveVariable(v)
	require.NoError(t, remove.Execute(ctx, b))
	require.NoError(t, remove.Undo(ctx, b))
	assert.Equal(t, "hello", b.Variables[v.ID].DefaultValue)

	require.NoError(t, upsert.Undo(ctx, b))
	assert.Equal(t, before, snapshot(t, b))
}

func TestCommentCommandsRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := flow.NewBoard("comments")
	cleanup.Apply(b)
	before := snapshot(t, b)

	cm := flow.NewComment("reviewer", "remember this")
	cm.Coordinates = [3]float64{10, 10, 0}
	upsert := commands.NewUpsertComment(cm)
	require.NoError(t, upsert.Execute(ctx, b))

	remove := commands.NewRemoveComment(cm)
	require.NoError(t, remove.Execute(ctx, b))
	_, ok := b.Comments[cm.ID]
	assert.False(t, ok)

	require.NoError(t, remove.Undo(ctx, b))
	require.NoError(t, upsert.Undo(ctx, b))
	assert.Equal(t, before, snapshot(t, b))
}

func TestCopyPasteRemapsInternalEdges(t *testing.T) {
	ctx := context.Background()
	b, producer, consumer, out, in := wiredBoard(t)

	external := flow.NewNode("external", "External", "", "test")
	extIn := external.AddInputPin("input", "Input", "", flow.TypeString)
	b.Nodes[external.ID] = external
	flow.Connect(out, extIn)
	cleanup.Apply(b)

	cmd := commands.NewCopyPaste([]*flow.Node{producer, consumer}, nil, [3]float64{100, 100, 0})
	require.NoError(t, cmd.Execute(ctx, b))
	cleanup.Apply(b)

	require.Len(t, b.Nodes, 5)

	pastedProducer := b.Nodes[cmd.NodeIDs[producer.ID]]
	require.NotNil(t, pastedProducer)
	pastedOut := pastedProducer.Pins[cmd.PinIDs[out.ID]]
	require.NotNil(t, pastedOut)

	// The in-selection edge follows the copy; the external one drops.
	assert.True(t, pastedOut.ConnectedTo.Has(cmd.PinIDs[in.ID]))
	assert.False(t, pastedOut.ConnectedTo.Has(extIn.ID))

	require.NoError(t, cmd.Undo(ctx, b))
	require.Len(t, b.Nodes, 3)

	// Redo reuses the same fresh IDs, so the paste is deterministic.
	require.NoError(t, cmd.Execute(ctx, b))
	assert.NotNil(t, b.Nodes[cmd.NodeIDs[producer.ID]])
}

func TestEnvelopeEncodeDecode(t *testing.T) {
	n := flow.NewNode("op", "Op", "", "test")
	cmd := commands.NewAddNode(n)

	data, err := commands.Encode(cmd)
	require.NoError(t, err)

	decoded, err := commands.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "add_node", decoded.CommandType())

	added, ok := decoded.(*commands.AddNode)
	require.True(t, ok)
	assert.Equal(t, n.ID, added.Node.ID)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := commands.Decode([]byte(`{"type":"no_such_command","payload":{}}`))
	assert.Error(t, err)
}

func TestStackUndoRedo(t *testing.T) {
	ctx := context.Background()
	b := flow.NewBoard("history")
	cleanup.Apply(b)
	empty := snapshot(t, b)

	s := commands.NewStack()
	assert.False(t, s.CanUndo())
	assert.False(t, s.CanRedo())

	first := flow.NewNode("first", "First", "", "test")
	second := flow.NewNode("second", "Second", "", "test")
	require.NoError(t, s.Do(ctx, b, commands.NewAddNode(first)))
	require.NoError(t, s.Do(ctx, b, commands.NewAddNode(second)))
	afterBoth := snapshot(t, b)

	require.NoError(t, s.Undo(ctx, b))
	_, ok := b.Nodes[second.ID]
	assert.False(t, ok)
	assert.True(t, s.CanRedo())

	require.NoError(t, s.Redo(ctx, b))
	assert.Equal(t, afterBoth, snapshot(t, b))

	require.NoError(t, s.Undo(ctx, b))
	require.NoError(t, s.Undo(ctx, b))
	assert.Equal(t, empty, snapshot(t, b))
	assert.Error(t, s.Undo(ctx, b))

	// A new command clears the redo history.
	require.NoError(t, s.Redo(ctx, b))
	require.NoError(t, s.Do(ctx, b, commands.NewAddNode(second)))
	assert.Error(t, s.Redo(ctx, b))
}

func TestFailedDoLeavesHistoryUntouched(t *testing.T) {
	ctx := context.Background()
	b := flow.NewBoard("history")
	s := commands.NewStack()

	ghost := flow.NewNode("ghost", "Ghost", "", "test")
	require.Error(t, s.Do(ctx, b, commands.NewRemoveNode(ghost)))
	assert.False(t, s.CanUndo())
}

package file_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/espalierhq/espalier/pkg/adapters/file"
	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/espalierhq/espalier/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := file.NewBoardStore(t.TempDir())
	require.NoError(t, err)

	b := flow.NewBoard("persisted")
	n := flow.NewNode("op", "Op", "", "test")
	n.AddInputExecPin("exec_in", "In", "")
	b.Nodes[n.ID] = n
	require.NoError(t, store.Save(ctx, b))

	loaded, err := store.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", loaded.Name)
	require.Contains(t, loaded.Nodes, n.ID)
	assert.Len(t, loaded.Nodes[n.ID].Pins, 1)
}

func TestBoardStoreNotFound(t *testing.T) {
	store, err := file.NewBoardStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ports.ErrBoardNotFound)
}

func TestBoardStoreDeleteAndList(t *testing.T) {
	ctx := context.Background()
	store, err := file.NewBoardStore(t.TempDir())
	require.NoError(t, err)

	first := flow.NewBoard("first")
	second := flow.NewBoard("second")
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	require.NoError(t, store.Delete(ctx, first.ID))
	// Deleting twice is a no-op.
	require.NoError(t, store.Delete(ctx, first.ID))

	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, ids)
}

func TestLoadPath(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := file.NewBoardStore(dir)
	require.NoError(t, err)

	b := flow.NewBoard("ad-hoc")
	require.NoError(t, store.Save(ctx, b))

	loaded, err := file.LoadPath(filepath.Join(dir, b.ID+".board.json"))
	require.NoError(t, err)
	assert.Equal(t, b.ID, loaded.ID)

	_, err = file.LoadPath(filepath.Join(dir, "nope.board.json"))
	assert.Error(t, err)
}

package memory_test

import (
	"context"
	"testing"

	"github.com/espalierhq/espalier/pkg/adapters/memory"
	"github.com/espalierhq/espalier/pkg/flow"
	"github.com/espalierhq/espalier/pkg/flow/execution"
	"github.com/espalierhq/espalier/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBoardStore()

	b := flow.NewBoard("original")
	require.NoError(t, store.Save(ctx, b))

	// Mutating the saved board must not affect the stored copy.
	b.Name = "mutated"

	loaded, err := store.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", loaded.Name)

	// Mutating a loaded board must not affect later loads.
	loaded.Name = "also mutated"
	again, err := store.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Name)
}

func TestBoardStoreNotFound(t *testing.T) {
	_, err := memory.NewBoardStore().Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ports.ErrBoardNotFound)
}

func TestBoardStoreDeleteAndList(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBoardStore()

	first := flow.NewBoard("first")
	second := flow.NewBoard("second")
	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	require.NoError(t, store.Delete(ctx, first.ID))
	ids, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID}, ids)
}

func TestRunStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := memory.NewRunStore()

	older := execution.NewRun("board-1", flow.LevelInfo)
	older.Start = 100
	newer := execution.NewRun("board-1", flow.LevelInfo)
	newer.Start = 200
	other := execution.NewRun("board-2", flow.LevelInfo)
	require.NoError(t, store.Save(ctx, older))
	require.NoError(t, store.Save(ctx, newer))
	require.NoError(t, store.Save(ctx, other))

	ids, err := store.List(ctx, "board-1")
	require.NoError(t, err)
	assert.Equal(t, []string{newer.ID, older.ID}, ids)

	loaded, err := store.Load(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, older.Start, loaded.Start)

	require.NoError(t, store.Delete(ctx, older.ID))
	_, err = store.Load(ctx, older.ID)
	assert.ErrorIs(t, err, ports.ErrRunNotFound)
}

func TestKeyValueStore(t *testing.T) {
	ctx := context.Background()
	kv := memory.NewKeyValueStore()

	_, ok, err := kv.Get(ctx, "gate:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "gate:1", true))
	v, ok, err := kv.Get(ctx, "gate:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, true, v)
}

func TestObjectStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewObjectStore()

	_, err := store.Get(ctx, "missing")
	var notFound *memory.NotFoundError
	assert.ErrorAs(t, err, &notFound)

	require.NoError(t, store.Put(ctx, "runs/a", []byte("alpha")))
	require.NoError(t, store.Put(ctx, "runs/b", []byte("beta")))
	require.NoError(t, store.Put(ctx, "boards/c", []byte("gamma")))

	data, err := store.Get(ctx, "runs/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("alpha"), data)

	keys, err := store.List(ctx, "runs/")
	require.NoError(t, err)
	assert.Equal(t, []string{"runs/a", "runs/b"}, keys)

	require.NoError(t, store.Delete(ctx, "runs/a"))
	_, err = store.Get(ctx, "runs/a")
	assert.Error(t, err)
}

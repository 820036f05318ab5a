package checkpoint_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtvision/scoutgraph/pkg/flowgraph/checkpoint"
)

func TestSQLiteStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store1, err := checkpoint.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, store1.Setup(ctx))
	require.NoError(t, store1.Save(ctx, "session-1", "router", []byte("persistent")))
	require.NoError(t, store1.Close())

	// Reopening simulates a process restart
	store2, err := checkpoint.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store2.Close()
	require.NoError(t, store2.Setup(ctx))

	data, err := store2.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("persistent"), data)

	// Sequence continues after restart
	require.NoError(t, store2.Save(ctx, "session-1", "respond", []byte("next")))
	infos, err := store2.List(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, 2, infos[1].Sequence)
}

func TestSQLiteStore_InvalidPath(t *testing.T) {
	_, err := checkpoint.NewSQLiteStore("/nonexistent/path/db.sqlite")
	assert.Error(t, err)
}

func TestSQLiteStore_CloseIdempotent(t *testing.T) {
	store, err := checkpoint.NewSQLiteStore(":memory:")
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_ClosedOperations(t *testing.T) {
	ctx := context.Background()
	store, err := checkpoint.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Save(ctx, "s", "n", []byte("x")), checkpoint.ErrStoreClosed)
	_, err = store.Load(ctx, "s")
	assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
	_, err = store.List(ctx, "s")
	assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
	assert.ErrorIs(t, store.Setup(ctx), checkpoint.ErrStoreClosed)
}

func TestMemoryStore_ClosedOperations(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	require.NoError(t, store.Save(ctx, "s", "n", []byte("x")))
	assert.Equal(t, 1, store.Len())
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Save(ctx, "s", "n", []byte("x")), checkpoint.ErrStoreClosed)
	_, err := store.Load(ctx, "s")
	assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
}

package checkpoint_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtvision/scoutgraph/pkg/flowgraph/checkpoint"
)

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisStore_MaxHistory(t *testing.T) {
	ctx := context.Background()
	_, client := newMiniredisClient(t)
	store := checkpoint.NewRedisStore(client, checkpoint.WithMaxHistory(2))

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(ctx, "session-1", "node", []byte(v)))
	}

	infos, err := store.List(ctx, "session-1")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, 2, infos[0].Sequence)
	assert.Equal(t, 3, infos[1].Sequence)

	loaded, err := store.Load(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), loaded)
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredisClient(t)
	store := checkpoint.NewRedisStore(client, checkpoint.WithRedisTTL(time.Second))

	require.NoError(t, store.Save(ctx, "session-1", "node", []byte("x")))
	mr.FastForward(2 * time.Second)

	_, err := store.Load(ctx, "session-1")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

func TestRedisStore_Prefix(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredisClient(t)
	store := checkpoint.NewRedisStore(client, checkpoint.WithRedisPrefix("test:"))

	require.NoError(t, store.Save(ctx, "session-1", "node", []byte("x")))
	assert.True(t, mr.Exists("test:session-1"))
}

func TestRedisStore_SetupFailsWhenDown(t *testing.T) {
	mr, client := newMiniredisClient(t)
	mr.Close()

	store := checkpoint.NewRedisStore(client)
	assert.Error(t, store.Setup(context.Background()))
}

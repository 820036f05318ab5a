package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtvision/scoutgraph/pkg/flowgraph/checkpoint"
)

func TestManager_LockLifecycle(t *testing.T) {
	mgr := NewManager(checkpoint.NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		sid := fmt.Sprintf("session-%d", i)
		require.NoError(t, mgr.WithLock(ctx, sid, func(context.Context) error { return nil }))
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	assert.Empty(t, mgr.locks)
}

func TestManager_SerializesSameSession(t *testing.T) {
	mgr := NewManager(checkpoint.NewMemoryStore())
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.WithLock(ctx, "shared", func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					cur := atomic.LoadInt32(&maxInside)
					if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestManager_DifferentSessionsRunConcurrently(t *testing.T) {
	mgr := NewManager(checkpoint.NewMemoryStore())
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = mgr.WithLock(ctx, "a", func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan struct{})
	go func() {
		_ = mgr.WithLock(ctx, "b", func(context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("session b blocked behind session a")
	}
	close(release)
}

func TestManager_WaitStopsWhenContextEnds(t *testing.T) {
	mgr := NewManager(checkpoint.NewMemoryStore())

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = mgr.WithLock(context.Background(), "s", func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ran := false
	err := mgr.WithLock(ctx, "s", func(context.Context) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran)

	close(release)
	require.NoError(t, mgr.WithLock(context.Background(), "s", func(context.Context) error { return nil }))
	assert.Eventually(t, func() bool {
		mgr.mu.Lock()
		defer mgr.mu.Unlock()
		return len(mgr.locks) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestManager_ReturnsFnError(t *testing.T) {
	mgr := NewManager(checkpoint.NewMemoryStore())
	boom := errors.New("boom")
	err := mgr.WithLock(context.Background(), "s", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
}

// fakeLocker records lock calls and can fail on lock or unlock.
type fakeLocker struct {
	mu        sync.Mutex
	locked    []string
	ttls      []time.Duration
	unlocked  int
	lockErr   error
	unlockErr error
}

func (f *fakeLocker) Lock(_ context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	f.locked = append(f.locked, key)
	f.ttls = append(f.ttls, ttl)
	return func(context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unlocked++
		return f.unlockErr
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("held around fn", func(t *testing.T) {
		locker := &fakeLocker{}
		mgr := NewManager(checkpoint.NewMemoryStore(), WithLocker(locker), WithLockTTL(time.Minute))

		err := mgr.WithLock(ctx, "s", func(context.Context) error {
			assert.Equal(t, []string{"s"}, locker.locked)
			assert.Zero(t, locker.unlocked)
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, locker.unlocked)
		assert.Equal(t, []time.Duration{time.Minute}, locker.ttls)
	})

	t.Run("lock failure skips fn", func(t *testing.T) {
		locker := &fakeLocker{lockErr: errors.New("redis down")}
		mgr := NewManager(checkpoint.NewMemoryStore(), WithLocker(locker))

		called := false
		err := mgr.WithLock(ctx, "s", func(context.Context) error {
			called = true
			return nil
		})
		assert.ErrorContains(t, err, "acquire distributed lock: redis down")
		assert.False(t, called)
	})

	t.Run("unlock failure is logged", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := slog.New(slog.NewTextHandler(buf, nil))
		locker := &fakeLocker{unlockErr: errors.New("timeout")}
		mgr := NewManager(checkpoint.NewMemoryStore(), WithLocker(locker), WithLogger(logger))

		err := mgr.WithLock(ctx, "s", func(context.Context) error { return nil })
		require.NoError(t, err)
		assert.Contains(t, buf.String(), "failed to release distributed lock")
		assert.Contains(t, buf.String(), "session_id=s")
	})
}

func TestManager_HistoryAndDelete(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	mgr := NewManager(store)
	ctx := context.Background()

	for _, node := range []string{"router", "stats_lookup", "generate_response"} {
		data, err := checkpoint.New("s", node, 0, []byte(`{}`), "").Marshal()
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, "s", node, data))
	}

	infos, err := mgr.History(ctx, "s")
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "generate_response", infos[2].NodeID)

	cp, err := mgr.Snapshot(ctx, "s", 2)
	require.NoError(t, err)
	assert.Equal(t, "stats_lookup", cp.NodeID)

	_, err = mgr.Snapshot(ctx, "s", 9)
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)

	require.NoError(t, mgr.Delete(ctx, "s"))
	infos, err = mgr.History(ctx, "s")
	require.NoError(t, err)
	assert.Empty(t, infos)
	assert.Same(t, store, mgr.Store())
}

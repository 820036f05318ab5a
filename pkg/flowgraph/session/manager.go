package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/courtvision/scoutgraph/pkg/flowgraph/checkpoint"
)

// DefaultLockTTL bounds how long a distributed lock outlives a crashed holder.
const DefaultLockTTL = 2 * time.Minute

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker acquires locks shared between processes.
type DistributedLocker interface {
	// Lock blocks until the lock for key is held or ctx ends.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// lockEntry holds a one-slot semaphore and the reference count.
type lockEntry struct {
	sem  chan struct{}
	refs int
}

// Manager serializes access to sessions and exposes their checkpoint history.
// Unused locks are dropped by reference counting.
type Manager struct {
	store checkpoint.Store

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker  DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the distributed lock TTL. It must exceed the longest turn.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a Manager over a checkpoint store.
func NewManager(store checkpoint.Store, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must call release once it no longer waits on or holds sem.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// WithLock runs fn while holding the session's lock. It returns ctx's error
// if ctx ends while waiting for another turn to finish.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	defer m.release(sessionID)

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("wait for session %s: %w", sessionID, ctx.Err())
	}
	defer func() { <-entry.sem }()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("acquire distributed lock: %w", err)
		}
		defer func() {
			// Release even when the caller has gone away.
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("failed to release distributed lock, it will expire via TTL",
					"session_id", sessionID,
					"error", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// History lists a session's checkpoints, oldest first.
func (m *Manager) History(ctx context.Context, sessionID string) ([]checkpoint.Info, error) {
	return m.store.List(ctx, sessionID)
}

// Snapshot returns the raw checkpoint with the given sequence.
func (m *Manager) Snapshot(ctx context.Context, sessionID string, sequence int) (*checkpoint.Checkpoint, error) {
	data, err := m.store.LoadAt(ctx, sessionID, sequence)
	if err != nil {
		return nil, err
	}
	return checkpoint.Unmarshal(data)
}

// Delete removes a session's checkpoints, waiting for any running turn.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.DeleteSession(ctx, sessionID)
	})
}

// Store returns the underlying checkpoint store.
func (m *Manager) Store() checkpoint.Store {
	return m.store
}

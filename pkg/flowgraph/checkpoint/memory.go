package checkpoint

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory checkpoint store for tests and single-process
// development. Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]storedCheckpoint // sessionID -> checkpoints in sequence order
	closed bool
}

// storedCheckpoint holds checkpoint data with metadata for List().
type storedCheckpoint struct {
	nodeID    string
	data      []byte
	sequence  int
	timestamp time.Time
}

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string][]storedCheckpoint),
	}
}

// Setup implements Store.
func (m *MemoryStore) Setup(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrStoreClosed
	}
	return nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, sessionID, nodeID string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	// Copy data to avoid retaining caller's slice
	stored := make([]byte, len(data))
	copy(stored, data)

	history := m.data[sessionID]
	m.data[sessionID] = append(history, storedCheckpoint{
		nodeID:    nodeID,
		data:      stored,
		sequence:  len(history) + 1,
		timestamp: time.Now().UTC(),
	})
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, sessionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	history := m.data[sessionID]
	if len(history) == 0 {
		return nil, ErrNotFound
	}
	return cloneBytes(history[len(history)-1].data), nil
}

// LoadAt implements Store.
func (m *MemoryStore) LoadAt(_ context.Context, sessionID string, sequence int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	history := m.data[sessionID]
	if sequence < 1 || sequence > len(history) {
		return nil, ErrNotFound
	}
	return cloneBytes(history[sequence-1].data), nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, sessionID string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	history := m.data[sessionID]
	infos := make([]Info, 0, len(history))
	for _, cp := range history {
		infos = append(infos, Info{
			SessionID: sessionID,
			NodeID:    cp.nodeID,
			Sequence:  cp.sequence,
			Timestamp: cp.timestamp,
			Size:      int64(len(cp.data)),
		})
	}
	return infos, nil
}

// DeleteSession implements Store.
func (m *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.data, sessionID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the total number of checkpoints across all sessions.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, history := range m.data {
		count += len(history)
	}
	return count
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

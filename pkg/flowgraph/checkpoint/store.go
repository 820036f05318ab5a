// Package checkpoint provides persistent checkpoint storage for resumable sessions.
package checkpoint

import (
	"context"
	"errors"
	"time"
)

// Store persists checkpoints keyed by session.
// Every Save appends; Load returns the newest. Implementations must be safe
// for concurrent use. Ordering of writes within one session is the caller's
// responsibility.
type Store interface {
	// Setup prepares the backing storage. Idempotent.
	Setup(ctx context.Context) error

	// Save appends a checkpoint written after nodeID ran.
	Save(ctx context.Context, sessionID, nodeID string, data []byte) error

	// Load retrieves the newest checkpoint for a session.
	// Returns ErrNotFound if the session has none.
	Load(ctx context.Context, sessionID string) ([]byte, error)

	// LoadAt retrieves the checkpoint with the given sequence.
	// Returns ErrNotFound if it doesn't exist.
	LoadAt(ctx context.Context, sessionID string, sequence int) ([]byte, error)

	// List returns metadata for a session's checkpoints, ordered by sequence.
	// Returns empty slice (not error) if the session has no checkpoints.
	List(ctx context.Context, sessionID string) ([]Info, error)

	// DeleteSession removes all checkpoints for a session.
	// Returns nil if the session has no checkpoints.
	DeleteSession(ctx context.Context, sessionID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading full state.
type Info struct {
	SessionID string
	NodeID    string
	Sequence  int
	Timestamp time.Time
	Size      int64
}

// Sentinel errors for checkpoint operations.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)

// Package query runs named read-only queries against sessions.
//
// Queries never change session state and never take the session lock, so
// they can inspect a session while one of its turns is running.
//
//	r := query.NewRegistry()
//	r.MustRegister("messages", func(ctx context.Context, sessionID string) (any, error) {
//	    return loadMessages(ctx, sessionID)
//	})
//
//	msgs, err := r.Execute(ctx, "session-1", "messages")
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Handler answers a query for one session. Handlers must not modify state.
type Handler func(ctx context.Context, sessionID string) (any, error)

var (
	// ErrQueryNotFound is returned when no handler is registered for a name.
	ErrQueryNotFound = errors.New("query not found")

	// ErrSessionNotFound is returned by handlers when the session has no
	// checkpoints.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionIDRequired is returned for an empty session ID.
	ErrSessionIDRequired = errors.New("session ID is required")
)

// Registry maps query names to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for name.
func (r *Registry) Register(name string, handler Handler) error {
	if name == "" {
		return errors.New("query name is required")
	}
	if handler == nil {
		return errors.New("handler is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler for query %q already registered", name)
	}
	r.handlers[name] = handler
	return nil
}

// MustRegister registers a handler, panicking on error.
func (r *Registry) MustRegister(name string, handler Handler) {
	if err := r.Register(name, handler); err != nil {
		panic(err)
	}
}

// Get returns the handler for name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named query for sessionID.
func (r *Registry) Execute(ctx context.Context, sessionID, name string) (any, error) {
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}
	h, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQueryNotFound, name)
	}
	return h(ctx, sessionID)
}

// Result is the outcome of one query in a batch.
type Result struct {
	Query string `json:"query"`
	Value any    `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

// ExecuteAll runs every named query for sessionID. Failures are reported in
// the results rather than stopping the batch.
func (r *Registry) ExecuteAll(ctx context.Context, sessionID string, names ...string) []Result {
	results := make([]Result, 0, len(names))
	for _, name := range names {
		res := Result{Query: name}
		v, err := r.Execute(ctx, sessionID, name)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Value = v
		}
		results = append(results, res)
	}
	return results
}

package flowgraph

import (
	"context"
	"log/slog"
)

// Context provides execution context to nodes.
// It extends context.Context with flowgraph-specific services and metadata.
//
// The embedded context.Context is detached from the caller's cancellation:
// once a node starts it runs to completion (or to its next Suspend) even if
// the caller goes away. Deadlines the node needs must be set by the node.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with session, turn
	// and node fields. Never returns nil.
	Logger() *slog.Logger

	// SessionID returns the session the turn belongs to.
	SessionID() string

	// RunID returns the unique identifier for this turn.
	RunID() string

	// NodeID returns the current node being executed.
	NodeID() string

	// Resumption returns the resume data when this node invocation is
	// re-entering a pending interrupt, or nil for a normal invocation.
	Resumption() *Resumption
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger     *slog.Logger
	sessionID  string
	runID      string
	nodeID     string
	resumption *Resumption
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// SessionID returns the session identifier.
func (c *executionContext) SessionID() string {
	return c.sessionID
}

// RunID returns the turn identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// NodeID returns the current node identifier.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// Resumption returns the pending resume data, if any.
func (c *executionContext) Resumption() *Resumption {
	return c.resumption
}

// NewContext creates a Context for calling a node or router outside of the
// engine, typically from tests.
func NewContext(ctx context.Context, sessionID string, resume *Resumption) Context {
	return &executionContext{
		Context:    ctx,
		logger:     slog.Default(),
		sessionID:  sessionID,
		runID:      sessionID,
		resumption: resume,
	}
}

// forNode returns a new context for one node invocation.
func (c *executionContext) forNode(nodeID string, resume *Resumption) *executionContext {
	return &executionContext{
		Context:    c.Context,
		logger:     c.logger.With("node_id", nodeID),
		sessionID:  c.sessionID,
		runID:      c.runID,
		nodeID:     nodeID,
		resumption: resume,
	}
}

package flowgraph

import (
	"context"
	"log/slog"

	"github.com/courtvision/scoutgraph/pkg/flowgraph/checkpoint"
	"github.com/courtvision/scoutgraph/pkg/flowgraph/observability"
)

// DefaultMaxIterations bounds node transitions in a single turn.
const DefaultMaxIterations = 50

// Locker serializes turns for one session.
type Locker interface {
	WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error
}

// Event is emitted after every node and on every suspend.
type Event[U any] struct {
	// Node is the node that produced the event, or InterruptNode.
	Node string
	// Update is the node's merged update. Zero for interrupt events.
	Update U
	// Interrupt is set for suspend events.
	Interrupt *Interrupt
	// Err is the error the node failed with when Update came from the
	// graph's error handler.
	Err error
}

// EventHandler receives events as they happen. Returning an error abandons
// the turn after the current node; the checkpoint is already saved.
type EventHandler[U any] func(ctx context.Context, ev Event[U]) error

// runConfig holds configuration for one turn.
type runConfig struct {
	maxIterations          int
	checkpointStore        checkpoint.Store
	checkpointFailureFatal bool
	runID                  string
	sequence               int
	locker                 Locker
	emit                   func(ctx context.Context, node string, update any, intr *Interrupt, err error) error

	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		maxIterations:          DefaultMaxIterations,
		checkpointFailureFatal: true,
		logger:                 slog.Default(),
		metrics:                observability.NoopMetrics{},
		spans:                  observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxIterations sets the maximum number of node executions per turn.
// Default: 50
//
// If a turn exceeds this limit, Invoke or Resume returns a
// *MaxIterationsError.
func WithMaxIterations(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithCheckpointing enables checkpointing to the given store. A checkpoint
// is saved after every node and at every suspend. Without a store, every
// Invoke starts from the zero state and Resume is unavailable.
func WithCheckpointing(store checkpoint.Store) RunOption {
	return func(c *runConfig) {
		c.checkpointStore = store
	}
}

// WithCheckpointFailureFatal controls whether a failed checkpoint save stops
// the turn. Default: true.
func WithCheckpointFailureFatal(fatal bool) RunOption {
	return func(c *runConfig) {
		c.checkpointFailureFatal = fatal
	}
}

// WithRunID sets the turn identifier used in logs, spans and checkpoints.
// Auto-generated if not set.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		c.runID = id
	}
}

// WithSessionLock serializes turns for a session through l.
func WithSessionLock(l Locker) RunOption {
	return func(c *runConfig) {
		c.locker = l
	}
}

// WithEventHandler streams node completions and suspends to fn.
func WithEventHandler[U any](fn func(ctx context.Context, ev Event[U]) error) RunOption {
	return func(c *runConfig) {
		if fn == nil {
			c.emit = nil
			return
		}
		c.emit = func(ctx context.Context, node string, update any, intr *Interrupt, err error) error {
			ev := Event[U]{Node: node, Interrupt: intr, Err: err}
			if u, ok := update.(U); ok {
				ev.Update = u
			}
			return fn(ctx, ev)
		}
	}
}

// WithObservabilityLogger sets the logger for turn and node events.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables OpenTelemetry metrics recording.
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables OpenTelemetry spans for turns and nodes.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

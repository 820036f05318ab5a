package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/courtvision/scoutgraph/pkg/flowgraph"
	"github.com/courtvision/scoutgraph/pkg/flowgraph/checkpoint"
	"github.com/courtvision/scoutgraph/pkg/flowgraph/query"
	"github.com/courtvision/scoutgraph/pkg/flowgraph/session"
)

// Service errors.
var (
	ErrSessionRequired       = errors.New("agent: session_id is required")
	ErrInterruptTypeRequired = errors.New("agent: interrupt_type is required to resume")
)

// Stream event names besides node ids.
const (
	EventError      = "error"
	EventErrorDebug = "error_debug"
)

// Session queries.
const (
	QueryState    = "state"
	QueryPending  = "pending"
	QueryHistory  = "history"
	QueryMessages = "messages"
)

// Turn is one request for a session: a new message, or the answer to the
// pending interrupt when IsResume is set.
type Turn struct {
	SessionID     string
	Input         any
	IsResume      bool
	InterruptType string
}

// Event is one line of the response stream.
type Event struct {
	Node   string `json:"node"`
	Output any    `json:"output"`
}

// EmitFunc receives stream events. An error abandons the turn after the
// current node.
type EmitFunc func(ctx context.Context, ev Event) error

// Service runs turns against the compiled graph, one at a time per session.
type Service struct {
	graph    *flowgraph.CompiledGraph[State, Update]
	sessions *session.Manager
	opts     []flowgraph.RunOption
	queries  *query.Registry
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithRunOptions adds engine options to every turn.
func WithRunOptions(opts ...flowgraph.RunOption) ServiceOption {
	return func(s *Service) {
		s.opts = append(s.opts, opts...)
	}
}

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a Service. Checkpoints go to the manager's store and
// turns are serialized through the manager's session locks.
func NewService(graph *flowgraph.CompiledGraph[State, Update], sessions *session.Manager, opts ...ServiceOption) *Service {
	s := &Service{
		graph:    graph,
		sessions: sessions,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.queries = s.registerQueries()
	return s
}

func (s *Service) runOptions(extra ...flowgraph.RunOption) []flowgraph.RunOption {
	opts := slices.Clone(s.opts)
	opts = append(opts,
		flowgraph.WithCheckpointing(s.sessions.Store()),
		flowgraph.WithSessionLock(s.sessions))
	return append(opts, extra...)
}

// Run executes one turn, sending node updates and interrupts to emit as
// they happen.
func (s *Service) Run(ctx context.Context, t Turn, emit EmitFunc) (*flowgraph.Result[State], error) {
	if t.SessionID == "" {
		return nil, ErrSessionRequired
	}

	handler := flowgraph.WithEventHandler(func(ctx context.Context, ev flowgraph.Event[Update]) error {
		if emit == nil {
			return nil
		}
		if ev.Interrupt != nil {
			return emit(ctx, Event{Node: flowgraph.InterruptNode, Output: ev.Interrupt.Payload})
		}
		return emit(ctx, Event{Node: ev.Node, Output: ev.Update})
	})
	opts := s.runOptions(handler)

	if t.IsResume {
		if t.InterruptType == "" {
			return nil, ErrInterruptTypeRequired
		}
		s.logger.Debug("resuming turn", "session_id", t.SessionID, "interrupt", t.InterruptType)
		return s.graph.Resume(ctx, t.SessionID, t.InterruptType, t.Input, opts...)
	}

	s.logger.Debug("starting turn", "session_id", t.SessionID)
	return s.graph.Invoke(ctx, t.SessionID, Input(inputText(t.Input)), opts...)
}

func inputText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// State returns the session's latest state.
func (s *Service) State(ctx context.Context, sessionID string) (State, bool, error) {
	return s.graph.State(ctx, sessionID, s.runOptions()...)
}

// Pending returns the interrupt the session waits on, or nil.
func (s *Service) Pending(ctx context.Context, sessionID string) (*flowgraph.Interrupt, error) {
	return s.graph.Pending(ctx, sessionID, s.runOptions()...)
}

// History lists the session's checkpoints, oldest first.
func (s *Service) History(ctx context.Context, sessionID string) ([]checkpoint.Info, error) {
	return s.sessions.History(ctx, sessionID)
}

// Delete removes the session's checkpoints once no turn is running.
func (s *Service) Delete(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// Query runs a named read-only session query.
func (s *Service) Query(ctx context.Context, sessionID, name string) (any, error) {
	return s.queries.Execute(ctx, sessionID, name)
}

// Queries lists the available session query names.
func (s *Service) Queries() []string {
	return s.queries.List()
}

func (s *Service) registerQueries() *query.Registry {
	r := query.NewRegistry()
	loadState := func(ctx context.Context, sessionID string) (State, error) {
		st, ok, err := s.State(ctx, sessionID)
		if err != nil {
			return State{}, err
		}
		if !ok {
			return State{}, fmt.Errorf("%w: %s", query.ErrSessionNotFound, sessionID)
		}
		return st, nil
	}

	r.MustRegister(QueryState, func(ctx context.Context, sessionID string) (any, error) {
		return loadState(ctx, sessionID)
	})
	r.MustRegister(QueryMessages, func(ctx context.Context, sessionID string) (any, error) {
		st, err := loadState(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return st.Messages, nil
	})
	r.MustRegister(QueryPending, func(ctx context.Context, sessionID string) (any, error) {
		if _, err := loadState(ctx, sessionID); err != nil {
			return nil, err
		}
		return s.Pending(ctx, sessionID)
	})
	r.MustRegister(QueryHistory, func(ctx context.Context, sessionID string) (any, error) {
		infos, err := s.History(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if len(infos) == 0 {
			return nil, fmt.Errorf("%w: %s", query.ErrSessionNotFound, sessionID)
		}
		return infos, nil
	})
	return r
}

package flowgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/courtvision/scoutgraph/pkg/flowgraph/checkpoint"
	"github.com/courtvision/scoutgraph/pkg/flowgraph/observability"
)

// Result is the outcome of one turn.
type Result[S any] struct {
	// State is the state after the last merged update.
	State S
	// Interrupt is set when the turn ended on a suspend.
	Interrupt *Interrupt
	// RunID identifies the turn.
	RunID string
	// NodesExecuted counts node invocations in the turn.
	NodesExecuted int
}

// Interrupted reports whether the turn is waiting on caller input.
func (r *Result[S]) Interrupted() bool {
	return r != nil && r.Interrupt != nil
}

// turnStart is what Invoke and Resume hand to the shared turn loop.
type turnStart[S any] struct {
	mode     string
	state    S
	node     string
	resume   *Resumption
	sequence int
}

// Invoke runs a fresh turn for a session.
//
// The latest checkpoint for the session is loaded (or the zero state used),
// input is merged into it with the graph's reducer, and execution enters at
// the entry node. A pending interrupt left by an earlier turn is discarded.
//
// Execution flow:
//  1. Check for cancellation
//  2. Execute the current node
//  3. Merge its update and checkpoint
//  4. Determine the next node (via simple or conditional edge)
//  5. Repeat until END is reached, a node suspends, or an error occurs
//
// Example:
//
//	res, err := compiled.Invoke(ctx, "session-1", Update{Messages: msgs},
//	    flowgraph.WithCheckpointing(store))
//	if res.Interrupted() {
//	    // show res.Interrupt.Payload, later call Resume
//	}
func (cg *CompiledGraph[S, U]) Invoke(ctx context.Context, sessionID string, input U, opts ...RunOption) (*Result[S], error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}

	cfg := newRunConfig(opts)

	var res *Result[S]
	err := cfg.withLock(ctx, sessionID, func(ctx context.Context) error {
		state, cp, err := cg.loadLatest(ctx, &cfg, sessionID)
		if err != nil {
			return err
		}

		seq := 0
		if cp != nil {
			seq = cp.Sequence
			if cp.Pending != nil {
				cfg.logger.Info("discarding pending interrupt for fresh turn",
					"session_id", sessionID,
					"interrupt", cp.Pending.Kind)
			}
		}

		start := turnStart[S]{
			mode:     "invoke",
			state:    cg.reducer(state, input),
			node:     cg.entryPoint,
			sequence: seq,
		}
		res, err = cg.runTurn(ctx, &cfg, sessionID, start)
		return err
	})
	return res, err
}

func newRunConfig(opts []RunOption) runConfig {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.runID == "" {
		cfg.runID = uuid.New().String()
	}
	return cfg
}

func (c *runConfig) withLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	if c.locker == nil {
		return fn(ctx)
	}
	return c.locker.WithLock(ctx, sessionID, fn)
}

// loadLatest returns the state from the session's latest checkpoint, or the
// zero state when there is no store or no checkpoint yet.
func (cg *CompiledGraph[S, U]) loadLatest(ctx context.Context, cfg *runConfig, sessionID string) (S, *checkpoint.Checkpoint, error) {
	var state S
	if cfg.checkpointStore == nil {
		return state, nil, nil
	}

	data, err := cfg.checkpointStore.Load(ctx, sessionID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return state, nil, nil
	}
	if err != nil {
		return state, nil, fmt.Errorf("load checkpoint: %w", err)
	}

	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return state, nil, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}
	if cp.Version != checkpoint.Version {
		return state, nil, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return state, nil, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}
	return state, cp, nil
}

// runTurn wraps the node loop with turn-level logging, spans and metrics.
func (cg *CompiledGraph[S, U]) runTurn(ctx context.Context, cfg *runConfig, sessionID string, start turnStart[S]) (res *Result[S], runErr error) {
	startTime := time.Now()
	cfg.sequence = start.sequence
	logger := cfg.logger.With("session_id", sessionID, "run_id", cfg.runID)
	cfg.logger = logger

	observability.LogRunStart(logger, cfg.runID)

	execCtx := ctx
	if cfg.tracingEnabled {
		var span trace.Span
		execCtx, span = cfg.spans.StartRunSpan(ctx, "flowgraph."+start.mode, cfg.runID)
		defer func() {
			cfg.spans.EndSpanWithError(span, runErr)
		}()
	}

	base := &executionContext{
		Context:   context.WithoutCancel(execCtx),
		logger:    logger,
		sessionID: sessionID,
		runID:     cfg.runID,
	}

	res, runErr = cg.loop(execCtx, base, cfg, start)

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())

	outcome := "completed"
	switch {
	case runErr != nil:
		outcome = "failed"
		observability.LogRunError(logger, cfg.runID, runErr, durationMs, lastNodeOf(runErr))
	case res.Interrupted():
		outcome = "interrupted"
		observability.LogRunInterrupted(logger, cfg.runID, res.Interrupt.NodeID, res.Interrupt.Kind)
	default:
		observability.LogRunComplete(logger, cfg.runID, durationMs, res.NodesExecuted)
	}
	cfg.metrics.RecordTurn(ctx, start.mode, outcome, duration)
	return res, runErr
}

func lastNodeOf(err error) string {
	var nodeErr *NodeError
	var maxErr *MaxIterationsError
	var cancelErr *CancellationError
	var panicErr *PanicError
	switch {
	case errors.As(err, &nodeErr):
		return nodeErr.NodeID
	case errors.As(err, &panicErr):
		return panicErr.NodeID
	case errors.As(err, &maxErr):
		return maxErr.LastNodeID
	case errors.As(err, &cancelErr):
		return cancelErr.NodeID
	}
	return ""
}

// loop executes nodes until END, a suspend, or an error.
// callerCtx carries the caller's cancellation and span; base is the detached
// context nodes run under.
func (cg *CompiledGraph[S, U]) loop(callerCtx context.Context, base *executionContext, cfg *runConfig, start turnStart[S]) (*Result[S], error) {
	state := start.state
	current := start.node
	resume := start.resume
	prevNode := ""
	res := &Result[S]{RunID: cfg.runID}

	for iterations := 1; current != END; iterations++ {
		res.State = state
		if iterations > cfg.maxIterations {
			return res, &MaxIterationsError{
				Max:        cfg.maxIterations,
				LastNodeID: current,
				State:      state,
			}
		}

		if err := callerCtx.Err(); err != nil {
			return res, &CancellationError{NodeID: current, State: state, Cause: err}
		}

		observability.LogNodeStart(cfg.logger, current)

		nodeSpanCtx := callerCtx
		var nodeSpan trace.Span
		if cfg.tracingEnabled {
			nodeSpanCtx, nodeSpan = cfg.spans.StartNodeSpan(callerCtx, current)
		}

		nodeStart := time.Now()
		nodeCtx := base.forNode(current, resume)
		if cfg.tracingEnabled {
			nodeCtx.Context = context.WithoutCancel(nodeSpanCtx)
		}
		update, nodeErr := cg.executeNode(nodeCtx, current, state)
		resume = nil
		nodeDuration := time.Since(nodeStart)
		res.NodesExecuted++

		var se *suspendError
		if errors.As(nodeErr, &se) {
			cfg.spans.EndSpanWithError(nodeSpan, nil)
			cfg.metrics.RecordNodeExecution(nodeSpanCtx, current, nodeDuration, nil)
			return cg.suspend(callerCtx, base, cfg, res, state, current, prevNode, se)
		}

		cfg.metrics.RecordNodeExecution(nodeSpanCtx, current, nodeDuration, nodeErr)
		cfg.spans.EndSpanWithError(nodeSpan, nodeErr)

		var next string
		if nodeErr != nil {
			observability.LogNodeError(cfg.logger, current, nodeErr)
			if cg.onError == nil || current == cg.fallbackNode {
				return res, nodeErr
			}
			update = cg.onError(current, nodeErr)
			next = cg.fallbackNode
			observability.LogNodeRecovered(cfg.logger, current, next)
		} else {
			observability.LogNodeComplete(cfg.logger, current, float64(nodeDuration.Milliseconds()))
		}

		state = cg.reducer(state, update)
		res.State = state

		if nodeErr == nil {
			var err error
			next, err = cg.nextNode(nodeCtx, state, current)
			if err != nil {
				return res, err
			}
		}

		if err := cg.saveCheckpoint(base, cfg, current, prevNode, state, next, nil); err != nil {
			return res, err
		}

		if cfg.emit != nil {
			if err := cfg.emit(callerCtx, current, update, nil, nodeErr); err != nil {
				return res, &CancellationError{NodeID: next, State: state, Cause: err}
			}
		}

		prevNode = current
		current = next
	}

	res.State = state
	return res, nil
}

// suspend checkpoints a pending interrupt and ends the turn.
func (cg *CompiledGraph[S, U]) suspend(callerCtx context.Context, base *executionContext, cfg *runConfig, res *Result[S], state S, nodeID, prevNode string, se *suspendError) (*Result[S], error) {
	pending, err := pendingFrom(nodeID, se)
	if err != nil {
		return res, &NodeError{NodeID: nodeID, Op: "suspend", Err: err}
	}

	// The interrupt is only meaningful if it survives, so a failed save is
	// always fatal here.
	cfg.checkpointFailureFatal = true
	if err := cg.saveCheckpoint(base, cfg, nodeID, prevNode, state, nodeID, pending); err != nil {
		return res, err
	}

	res.Interrupt = interruptFrom(pending)
	cfg.metrics.RecordInterrupt(callerCtx, nodeID, pending.Kind)
	cfg.spans.AddSpanEvent(callerCtx, "interrupt",
		attribute.String("node.id", nodeID),
		attribute.String("interrupt.kind", pending.Kind))
	observability.LogInterrupt(cfg.logger, nodeID, pending.Kind)

	if cfg.emit != nil {
		if err := cfg.emit(callerCtx, InterruptNode, nil, res.Interrupt, nil); err != nil {
			return res, &CancellationError{NodeID: nodeID, State: state, Cause: err}
		}
	}
	return res, nil
}

// saveCheckpoint persists the state after a node, or at a suspend when
// pending is non-nil.
func (cg *CompiledGraph[S, U]) saveCheckpoint(ctx *executionContext, cfg *runConfig, nodeID, prevNodeID string, state S, nextNode string, pending *checkpoint.Pending) error {
	if cfg.checkpointStore == nil {
		return nil
	}

	fail := func(op string, err error) error {
		if cfg.checkpointFailureFatal {
			return &CheckpointError{NodeID: nodeID, Op: op, Err: err}
		}
		observability.LogCheckpointError(cfg.logger, nodeID, op, err)
		return nil
	}

	stateBytes, err := json.Marshal(state)
	if err != nil {
		return fail("serialize", err)
	}

	cfg.sequence++
	cp := checkpoint.New(ctx.sessionID, nodeID, cfg.sequence, stateBytes, nextNode).
		WithRunID(cfg.runID).
		WithPrevNode(prevNodeID).
		WithPending(pending)

	data, err := cp.Marshal()
	if err != nil {
		return fail("marshal", err)
	}

	if err := cfg.checkpointStore.Save(ctx, ctx.sessionID, nodeID, data); err != nil {
		return fail("save", err)
	}

	sizeBytes := len(data)
	observability.LogCheckpoint(cfg.logger, nodeID, sizeBytes)
	cfg.metrics.RecordCheckpoint(ctx, nodeID, int64(sizeBytes))
	return nil
}

// executeNode executes a single node with panic recovery.
// Suspend requests are returned unwrapped; other errors become *NodeError.
func (cg *CompiledGraph[S, U]) executeNode(ctx *executionContext, nodeID string, state S) (update U, err error) {
	fn, exists := cg.getNode(nodeID)
	if !exists {
		return update, &NodeError{
			NodeID: nodeID,
			Op:     "lookup",
			Err:    fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			var zero U
			update = zero
			err = &PanicError{
				NodeID: nodeID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	update, err = fn(ctx, state)
	if err != nil {
		if IsSuspend(err) {
			return update, err
		}
		return update, &NodeError{
			NodeID: nodeID,
			Op:     "execute",
			Err:    err,
		}
	}
	return update, nil
}

// nextNode determines the next node to execute.
// Checks conditional edges first, then simple edges.
func (cg *CompiledGraph[S, U]) nextNode(ctx Context, state S, current string) (string, error) {
	if router, exists := cg.getRouter(current); exists {
		next := router(ctx, state)

		if next == "" {
			return "", &RouterError{
				FromNode: current,
				Returned: next,
				Err:      ErrInvalidRouterResult,
			}
		}

		if next != END {
			if _, exists := cg.getNode(next); !exists {
				return "", &RouterError{
					FromNode: current,
					Returned: next,
					Err:      ErrRouterTargetNotFound,
				}
			}
		}

		return next, nil
	}

	edges := cg.getEdges(current)
	if len(edges) == 0 {
		return "", &NodeError{
			NodeID: current,
			Op:     "routing",
			Err:    fmt.Errorf("no outgoing edge from node %s", current),
		}
	}
	return edges[0], nil
}

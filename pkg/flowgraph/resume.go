package flowgraph

import (
	"context"
	"fmt"
)

// Resume answers the interrupt a session is suspended on.
//
// kind must equal the pending interrupt's kind. The suspended node is
// re-entered (not the entry node) with Context.Resumption() carrying value
// and the step data the node saved when it suspended. From there the turn
// continues like any other: the node may complete, suspend again, or fail.
//
// Returns ErrNoPendingInterrupt when nothing is waiting, which is also what a
// duplicate delivery of an already-consumed answer gets, and an
// *InterruptMismatchError when kind answers a different question.
//
// Example:
//
//	res, err := compiled.Resume(ctx, "session-1", "pick_player", 1,
//	    flowgraph.WithCheckpointing(store))
func (cg *CompiledGraph[S, U]) Resume(ctx context.Context, sessionID, kind string, value any, opts ...RunOption) (*Result[S], error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if sessionID == "" {
		return nil, ErrSessionIDRequired
	}

	cfg := newRunConfig(opts)
	if cfg.checkpointStore == nil {
		return nil, ErrNoCheckpointStore
	}

	var res *Result[S]
	err := cfg.withLock(ctx, sessionID, func(ctx context.Context) error {
		state, cp, err := cg.loadLatest(ctx, &cfg, sessionID)
		if err != nil {
			return err
		}
		if cp == nil {
			return fmt.Errorf("%w: %s", ErrNoCheckpoints, sessionID)
		}
		if cp.Pending == nil {
			return ErrNoPendingInterrupt
		}
		if cp.Pending.Kind != kind {
			return &InterruptMismatchError{Pending: cp.Pending.Kind, Got: kind}
		}
		if !cg.HasNode(cp.Pending.NodeID) {
			return fmt.Errorf("%w: %s", ErrInvalidResumeNode, cp.Pending.NodeID)
		}

		start := turnStart[S]{
			mode:  "resume",
			state: state,
			node:  cp.Pending.NodeID,
			resume: &Resumption{
				Kind:  kind,
				Value: value,
				step:  cp.Pending.Step,
			},
			sequence: cp.Sequence,
		}
		res, err = cg.runTurn(ctx, &cfg, sessionID, start)
		return err
	})
	return res, err
}

// Pending returns the interrupt a session is waiting on, or nil.
func (cg *CompiledGraph[S, U]) Pending(ctx context.Context, sessionID string, opts ...RunOption) (*Interrupt, error) {
	cfg := newRunConfig(opts)
	_, cp, err := cg.loadLatest(ctx, &cfg, sessionID)
	if err != nil || cp == nil || cp.Pending == nil {
		return nil, err
	}
	return interruptFrom(cp.Pending), nil
}

// State returns the session's latest checkpointed state and whether one
// exists.
func (cg *CompiledGraph[S, U]) State(ctx context.Context, sessionID string, opts ...RunOption) (S, bool, error) {
	cfg := newRunConfig(opts)
	state, cp, err := cg.loadLatest(ctx, &cfg, sessionID)
	return state, cp != nil, err
}

package flowgraph

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/courtvision/scoutgraph/pkg/flowgraph/checkpoint"
)

// InterruptNode is the node name used for events that carry a suspend
// request rather than a node update.
const InterruptNode = "__interrupt__"

// Interrupt describes a suspended turn waiting for caller input.
type Interrupt struct {
	// Kind names the question being asked; Resume must echo it.
	Kind string `json:"kind"`
	// NodeID is the node that suspended.
	NodeID string `json:"node_id"`
	// Payload is what the caller is shown.
	Payload json.RawMessage `json:"payload"`
}

// Resumption is handed to a node that re-enters a pending interrupt.
type Resumption struct {
	// Kind is the interrupt kind being answered.
	Kind string
	// Value is the caller-supplied answer, untouched.
	Value any

	step json.RawMessage
}

// Step decodes the node-private data saved by the Suspend call being
// answered into v.
func (r *Resumption) Step(v any) error {
	if r == nil || len(r.step) == 0 {
		return ErrNoStepData
	}
	if err := json.Unmarshal(r.step, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}
	return nil
}

// suspendError is the error a node returns to request suspension.
type suspendError struct {
	kind    string
	payload any
	step    any
}

func (e *suspendError) Error() string {
	return "suspend: " + e.kind
}

// Suspend returns an error that asks the engine to pause the turn.
//
// payload is serialized and handed to the caller. step is serialized into
// the checkpoint and returned to the node through Context.Resumption().Step
// when the turn is resumed, so work done before the suspend (searches,
// selections) is not repeated. A node may suspend several times per
// invocation by recording in step how far it got.
//
// Example:
//
//	if r := ctx.Resumption(); r == nil {
//	    return Update{}, flowgraph.Suspend("pick_one", options, progress{Options: options})
//	}
func Suspend(kind string, payload, step any) error {
	return &suspendError{kind: kind, payload: payload, step: step}
}

// IsSuspend reports whether err is a suspend request.
func IsSuspend(err error) bool {
	var se *suspendError
	return errors.As(err, &se)
}

// pendingFrom serializes a suspend request into its checkpoint form.
func pendingFrom(nodeID string, se *suspendError) (*checkpoint.Pending, error) {
	payload, err := json.Marshal(se.payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrSerializeState, err)
	}
	var step json.RawMessage
	if se.step != nil {
		step, err = json.Marshal(se.step)
		if err != nil {
			return nil, fmt.Errorf("%w: step: %v", ErrSerializeState, err)
		}
	}
	return &checkpoint.Pending{
		Kind:    se.kind,
		NodeID:  nodeID,
		Payload: payload,
		Step:    step,
	}, nil
}

func interruptFrom(p *checkpoint.Pending) *Interrupt {
	return &Interrupt{Kind: p.Kind, NodeID: p.NodeID, Payload: p.Payload}
}

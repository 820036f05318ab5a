package flowgraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph building and compilation.
var (
	// ErrNoEntryPoint indicates SetEntry() was not called before Compile().
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrEntryNotFound indicates the entry point references a non-existent node.
	ErrEntryNotFound = errors.New("entry point node not found")

	// ErrNodeNotFound indicates an edge references a non-existent node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoPathToEnd indicates no path exists from the entry point to END.
	ErrNoPathToEnd = errors.New("no path to END from entry")

	// ErrMultipleEdges indicates a node has more than one simple edge.
	ErrMultipleEdges = errors.New("node has multiple simple edges")

	// ErrNoReducer indicates SetReducer() was not called before Compile().
	ErrNoReducer = errors.New("reducer not set")

	// ErrFallbackNotFound indicates OnNodeError() named a non-existent node.
	ErrFallbackNotFound = errors.New("fallback node not found")
)

// Sentinel errors for execution.
var (
	// ErrMaxIterations indicates the execution loop exceeded the configured limit.
	ErrMaxIterations = errors.New("exceeded maximum iterations")

	// ErrSessionIDRequired indicates Invoke() or Resume() got an empty session ID.
	ErrSessionIDRequired = errors.New("session ID required")

	// ErrNilContext indicates Invoke() or Resume() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrInvalidRouterResult indicates a router function returned an empty string.
	ErrInvalidRouterResult = errors.New("router returned empty string")

	// ErrRouterTargetNotFound indicates a router function returned an unknown node ID.
	ErrRouterTargetNotFound = errors.New("router returned unknown node")
)

// Sentinel errors for checkpointing and resume.
var (
	// ErrNoCheckpointStore indicates Resume() was called without WithCheckpointing.
	ErrNoCheckpointStore = errors.New("checkpoint store required")

	// ErrSerializeState indicates state serialization failed.
	ErrSerializeState = errors.New("failed to serialize state")

	// ErrDeserializeState indicates state deserialization failed.
	ErrDeserializeState = errors.New("failed to deserialize state")

	// ErrNoCheckpoints indicates no checkpoints exist for the session.
	ErrNoCheckpoints = errors.New("no checkpoints found for session")

	// ErrInvalidResumeNode indicates the resume node doesn't exist in the graph.
	ErrInvalidResumeNode = errors.New("invalid resume node")

	// ErrCheckpointVersionMismatch indicates the checkpoint version is incompatible.
	ErrCheckpointVersionMismatch = errors.New("checkpoint version mismatch")
)

// Sentinel errors for the interrupt protocol.
var (
	// ErrNoPendingInterrupt indicates Resume() found nothing waiting for input.
	// A duplicate delivery of an already-consumed resume value gets this error.
	ErrNoPendingInterrupt = errors.New("no pending interrupt")

	// ErrInterruptMismatch indicates Resume() answered a different interrupt
	// than the one pending.
	ErrInterruptMismatch = errors.New("interrupt type mismatch")

	// ErrNoStepData indicates a node asked for step data that was never saved.
	ErrNoStepData = errors.New("no step data for resumption")
)

// InterruptMismatchError reports which interrupt was pending when Resume()
// answered another.
type InterruptMismatchError struct {
	// Pending is the kind the session is waiting on.
	Pending string
	// Got is the kind the caller answered.
	Got string
}

// Error implements the error interface.
func (e *InterruptMismatchError) Error() string {
	return fmt.Sprintf("pending interrupt is %q, resume answered %q", e.Pending, e.Got)
}

// Unwrap returns ErrInterruptMismatch for errors.Is support.
func (e *InterruptMismatchError) Unwrap() error {
	return ErrInterruptMismatch
}

// CheckpointError wraps errors from checkpoint operations.
type CheckpointError struct {
	// NodeID is the node where checkpointing failed.
	NodeID string
	// Op is the operation that failed ("save", "serialize", "marshal").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s at node %s: %v", e.Op, e.NodeID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// NodeError wraps an error with node context.
// It provides information about which node failed and what operation was attempted.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed (e.g., "execute").
	Op string
	// Err is the underlying error from the node.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from node execution.
// It includes the stack trace for debugging.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// PanicCause turns a recovered panic value into an error so the taxonomy can
// inspect it.
func (e *PanicError) PanicCause() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return fmt.Errorf("%v", e.Value)
}

// CancellationError captures the state when a turn was abandoned, either
// because the caller's context ended or because the event handler failed.
// Every node that completed before it has been checkpointed.
type CancellationError struct {
	// NodeID is the node that was about to execute.
	NodeID string
	// State is the state at cancellation (can type-assert to the actual type).
	State any
	// Cause is the underlying cause (context.Canceled, context.DeadlineExceeded,
	// or the event handler's error).
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before node %s: %v", e.NodeID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// RouterError wraps errors from conditional edge routing.
// It provides context about which router failed and what it returned.
type RouterError struct {
	// FromNode is the node with the conditional edge.
	FromNode string
	// Returned is the value the router returned.
	Returned string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RouterError) Error() string {
	return fmt.Sprintf("router from %s returned %q: %v", e.FromNode, e.Returned, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RouterError) Unwrap() error {
	return e.Err
}

// MaxIterationsError provides context when the loop limit is exceeded.
// It includes the state at termination for inspection.
type MaxIterationsError struct {
	// Max is the configured iteration limit.
	Max int
	// LastNodeID is the node that would have executed next.
	LastNodeID string
	// State is the state at termination (can type-assert to the actual type).
	State any
}

// Error implements the error interface.
func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("exceeded maximum iterations (%d) at node %s", e.Max, e.LastNodeID)
}

// Unwrap returns ErrMaxIterations for errors.Is support.
func (e *MaxIterationsError) Unwrap() error {
	return ErrMaxIterations
}

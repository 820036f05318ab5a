package flowgraph

// END is the terminal node identifier.
// Use this as an edge target to indicate the turn should terminate.
const END = "__end__"

// NodeFunc is the signature for all node functions.
// Nodes receive the execution context and a snapshot of the current state,
// and return a partial update. The engine merges the update into the state
// with the graph's Reducer; nodes never write state directly.
//
// A node that needs input from the caller returns Suspend(...) as its error.
//
// Example:
//
//	func classify(ctx flowgraph.Context, s Conversation) (Update, error) {
//	    intent := pickIntent(s.Messages)
//	    return Update{Intent: &intent}, nil
//	}
type NodeFunc[S, U any] func(ctx Context, state S) (U, error)

// RouterFunc determines the next node based on state.
// It is used for conditional edges where the next node depends on runtime state.
//
// The router should return a valid node ID or flowgraph.END.
// Returning an empty string or an unknown node ID will cause a runtime error.
//
// Example:
//
//	func router(ctx flowgraph.Context, s State) string {
//	    if s.Done {
//	        return flowgraph.END
//	    }
//	    return "process"
//	}
type RouterFunc[S any] func(ctx Context, state S) string

// Reducer merges a node's partial update into the state.
// It is declared once per graph and owns every field's merge policy.
type Reducer[S, U any] func(state S, update U) S

// ErrorHandler converts an error that escaped a node (including a recovered
// panic) into an update. The update is merged and execution continues at the
// graph's fallback node.
type ErrorHandler[U any] func(nodeID string, err error) U

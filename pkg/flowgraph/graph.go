package flowgraph

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is a mutable builder for creating execution graphs.
// Use NewGraph to create a new graph, then chain AddNode, AddEdge,
// SetReducer and SetEntry calls to define the workflow.
//
// Graph is NOT thread-safe during building. Use a single goroutine
// to construct the graph, then call Compile() to create an immutable
// CompiledGraph that can be safely shared.
//
// Example:
//
//	graph := flowgraph.NewGraph[Conversation, Update]().
//	    AddNode("router", route).
//	    AddNode("respond", respond).
//	    AddEdge("router", "respond").
//	    AddEdge("respond", flowgraph.END).
//	    SetReducer(Merge).
//	    SetEntry("router")
//
//	compiled, err := graph.Compile()
type Graph[S, U any] struct {
	mu               sync.RWMutex
	nodes            map[string]NodeFunc[S, U]
	edges            map[string][]string
	conditionalEdges map[string]RouterFunc[S]
	entryPoint       string
	reducer          Reducer[S, U]
	fallbackNode     string
	onError          ErrorHandler[U]
}

// NewGraph creates a new graph builder for state type S and update type U.
func NewGraph[S, U any]() *Graph[S, U] {
	return &Graph[S, U]{
		nodes:            make(map[string]NodeFunc[S, U]),
		edges:            make(map[string][]string),
		conditionalEdges: make(map[string]RouterFunc[S]),
	}
}

// AddNode adds a named node to the graph.
// Returns the graph for method chaining.
//
// Panics if:
//   - id is empty
//   - id is the reserved word "END" or "__end__" (case-insensitive)
//   - id is the reserved interrupt event name
//   - id contains whitespace (space, tab, newline)
//   - fn is nil
//   - id already exists in the graph
func (g *Graph[S, U]) AddNode(id string, fn NodeFunc[S, U]) *Graph[S, U] {
	if id == "" {
		panic("flowgraph: node ID cannot be empty")
	}

	idLower := strings.ToLower(id)
	if idLower == "end" || idLower == "__end__" {
		panic("flowgraph: node ID cannot be reserved word 'END'")
	}
	if id == InterruptNode {
		panic("flowgraph: node ID cannot be reserved word '" + InterruptNode + "'")
	}

	if strings.ContainsAny(id, " \t\n\r") {
		panic("flowgraph: node ID cannot contain whitespace")
	}

	if fn == nil {
		panic("flowgraph: node function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		panic(fmt.Sprintf("flowgraph: duplicate node ID: %s", id))
	}

	g.nodes[id] = fn
	return g
}

// AddEdge adds an unconditional edge from one node to another.
// The target can be a node ID or flowgraph.END.
// Returns the graph for method chaining.
//
// Edge validation happens at Compile() time, not here.
// This allows edges to be added in any order.
func (g *Graph[S, U]) AddEdge(from, to string) *Graph[S, U] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdge adds a conditional edge where a RouterFunc
// determines the next node at runtime based on state.
// Returns the graph for method chaining.
//
// A node can have either simple edges or a conditional edge, not both.
// If both are present, the conditional edge takes precedence.
func (g *Graph[S, U]) AddConditionalEdge(from string, router RouterFunc[S]) *Graph[S, U] {
	if router == nil {
		panic("flowgraph: router function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.conditionalEdges[from] = router
	return g
}

// SetEntry designates the node every fresh turn starts at.
// Returns the graph for method chaining.
//
// Entry point validation happens at Compile() time.
func (g *Graph[S, U]) SetEntry(id string) *Graph[S, U] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}

// SetReducer sets the function that merges node updates into state.
// Required; Compile fails without one.
func (g *Graph[S, U]) SetReducer(fn Reducer[S, U]) *Graph[S, U] {
	if fn == nil {
		panic("flowgraph: reducer cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.reducer = fn
	return g
}

// OnNodeError installs a last-resort handler for node failures.
// When any node other than fallback returns an error or panics, fn turns the
// error into an update, the update is merged and checkpointed, and execution
// jumps to fallback. Failures inside fallback itself are returned to the caller.
func (g *Graph[S, U]) OnNodeError(fallback string, fn ErrorHandler[U]) *Graph[S, U] {
	if fn == nil {
		panic("flowgraph: error handler cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.fallbackNode = fallback
	g.onError = fn
	return g
}

package flowgraph

import "sort"

// CompiledGraph is an immutable, executable graph.
// It is created by calling Compile() on a Graph builder.
//
// CompiledGraph is thread-safe and can be used concurrently for multiple
// sessions. Turns for the same session are serialized by the Locker passed
// with WithSessionLock.
//
// Use the introspection methods (NodeIDs, Successors, etc.) to examine
// the graph structure for debugging or visualization.
type CompiledGraph[S, U any] struct {
	nodes            map[string]NodeFunc[S, U]
	edges            map[string][]string
	conditionalEdges map[string]RouterFunc[S]
	entryPoint       string
	reducer          Reducer[S, U]
	fallbackNode     string
	onError          ErrorHandler[U]

	// Pre-computed for efficient lookup
	predecessors  map[string][]string
	isConditional map[string]bool
}

// EntryPoint returns the entry node ID.
func (cg *CompiledGraph[S, U]) EntryPoint() string {
	return cg.entryPoint
}

// FallbackNode returns the node that failed nodes are redirected to,
// or "" when no error handler is installed.
func (cg *CompiledGraph[S, U]) FallbackNode() string {
	return cg.fallbackNode
}

// NodeIDs returns all node identifiers in the graph, sorted.
func (cg *CompiledGraph[S, U]) NodeIDs() []string {
	ids := make([]string, 0, len(cg.nodes))
	for id := range cg.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasNode checks if a node exists in the graph.
func (cg *CompiledGraph[S, U]) HasNode(id string) bool {
	_, exists := cg.nodes[id]
	return exists
}

// Successors returns the node IDs that can be reached from the given node
// via simple (non-conditional) edges.
// Returns nil for END or unknown nodes.
func (cg *CompiledGraph[S, U]) Successors(id string) []string {
	if id == END {
		return nil
	}
	return cg.edges[id]
}

// Predecessors returns the node IDs that have simple edges to the given node.
func (cg *CompiledGraph[S, U]) Predecessors(id string) []string {
	return cg.predecessors[id]
}

// IsConditional returns true if the node has a conditional edge.
func (cg *CompiledGraph[S, U]) IsConditional(id string) bool {
	return cg.isConditional[id]
}

func (cg *CompiledGraph[S, U]) getNode(id string) (NodeFunc[S, U], bool) {
	fn, exists := cg.nodes[id]
	return fn, exists
}

func (cg *CompiledGraph[S, U]) getRouter(id string) (RouterFunc[S], bool) {
	router, exists := cg.conditionalEdges[id]
	return router, exists
}

func (cg *CompiledGraph[S, U]) getEdges(id string) []string {
	return cg.edges[id]
}

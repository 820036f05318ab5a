package flowgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddNode_Panics(t *testing.T) {
	tests := []struct {
		name string
		id   string
		fn   NodeFunc[Tally, Delta]
	}{
		{name: "empty id", id: "", fn: visit("x")},
		{name: "END", id: "END", fn: visit("x")},
		{name: "end lowercase", id: "end", fn: visit("x")},
		{name: "__end__", id: "__end__", fn: visit("x")},
		{name: "interrupt name", id: InterruptNode, fn: visit("x")},
		{name: "whitespace", id: "stats lookup", fn: visit("x")},
		{name: "nil func", id: "router", fn: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, func() {
				newTallyGraph().AddNode(tt.id, tt.fn)
			})
		})
	}

	t.Run("duplicate id", func(t *testing.T) {
		g := newTallyGraph().AddNode("router", visit("router"))
		assert.PanicsWithValue(t, "flowgraph: duplicate node ID: router", func() {
			g.AddNode("router", visit("router"))
		})
	})
}

func TestGraphBuilder_NilArguments(t *testing.T) {
	assert.Panics(t, func() { newTallyGraph().AddConditionalEdge("a", nil) })
	assert.Panics(t, func() { NewGraph[Tally, Delta]().SetReducer(nil) })
	assert.Panics(t, func() { newTallyGraph().OnNodeError("a", nil) })
}

func TestCompiledGraph_Introspection(t *testing.T) {
	g := newTallyGraph().
		AddNode("router", visit("router")).
		AddNode("stats_lookup", visit("stats_lookup")).
		AddNode("generate_response", visit("generate_response")).
		AddConditionalEdge("router", func(_ Context, _ Tally) string { return "stats_lookup" }).
		AddEdge("stats_lookup", "generate_response").
		AddEdge("generate_response", END).
		OnNodeError("generate_response", func(_ string, err error) Delta { return Delta{Err: err.Error()} }).
		SetEntry("router")

	cg, err := g.Compile()
	require.NoError(t, err)

	assert.Equal(t, "router", cg.EntryPoint())
	assert.Equal(t, "generate_response", cg.FallbackNode())
	assert.Equal(t, []string{"generate_response", "router", "stats_lookup"}, cg.NodeIDs())
	assert.True(t, cg.HasNode("scout") == false)
	assert.True(t, cg.IsConditional("router"))
	assert.False(t, cg.IsConditional("stats_lookup"))
	assert.Equal(t, []string{"generate_response"}, cg.Successors("stats_lookup"))
	assert.Nil(t, cg.Successors(END))
	assert.Equal(t, []string{"stats_lookup"}, cg.Predecessors("generate_response"))
}

func TestCompiledGraph_IsolatedFromBuilder(t *testing.T) {
	g := linear("a", "b")
	cg, err := g.Compile()
	require.NoError(t, err)

	g.AddNode("c", visit("c"))
	g.AddEdge("b", "c")

	assert.False(t, cg.HasNode("c"))
	assert.Equal(t, []string{END}, cg.Successors("b"))
}

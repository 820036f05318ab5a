package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtvision/scoutgraph/internal/agent"
)

func TestWriteMermaid(t *testing.T) {
	cg, err := agent.New(agent.Config{}).Graph()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeMermaid(&buf, cg, agent.Branches()))

	assert.Equal(t, `graph TD
    start((start)) --> router
    confirm_scouting -.-> scout
    confirm_scouting -.-> generate_response
    generate_response --> stop((end))
    router -.-> stats_lookup
    router -.-> confirm_scouting
    router -.-> generate_response
    scout --> generate_response
    stats_lookup --> generate_response
    %% node errors continue at generate_response
`, buf.String())
}

func TestGraphCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"graph"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "router -.-> stats_lookup")
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/courtvision/scoutgraph/internal/agent"
	"github.com/courtvision/scoutgraph/pkg/flowgraph"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the conversation graph",
	Long:  `Outputs a Mermaid diagram (graph TD) of the conversation nodes and the edges between them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cg, err := agent.New(agent.Config{}).Graph()
		if err != nil {
			return err
		}
		return writeMermaid(cmd.OutOrStdout(), cg, agent.Branches())
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

// writeMermaid renders cg. Conditional edges are drawn dotted to every
// target listed in branches.
func writeMermaid[S, U any](w io.Writer, cg *flowgraph.CompiledGraph[S, U], branches map[string][]string) error {
	var b strings.Builder
	b.WriteString("graph TD\n")
	fmt.Fprintf(&b, "    start((start)) --> %s\n", cg.EntryPoint())
	for _, id := range cg.NodeIDs() {
		if cg.IsConditional(id) {
			for _, to := range branches[id] {
				fmt.Fprintf(&b, "    %s -.-> %s\n", id, mermaidNode(to))
			}
			continue
		}
		for _, to := range cg.Successors(id) {
			fmt.Fprintf(&b, "    %s --> %s\n", id, mermaidNode(to))
		}
	}
	if fb := cg.FallbackNode(); fb != "" {
		fmt.Fprintf(&b, "    %%%% node errors continue at %s\n", fb)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func mermaidNode(id string) string {
	if id == flowgraph.END {
		return "stop((end))"
	}
	return id
}

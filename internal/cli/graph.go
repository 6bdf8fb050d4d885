package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stratus-io/stratus/internal/engine"
	"github.com/stratus-io/stratus/internal/plan"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the plan's dependency graph in DOT format",
	Long: `Graph emits the dependency graph as Graphviz DOT, with one edge per
dependency (explicit depends_on entries and implicit ref() uses alike).
Pipe the output through dot to render it:

  stratus graph -f stratus.yaml | dot -Tsvg -o graph.svg`,
	RunE: runGraph,
}

func init() {
	addPlanFlags(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	p, err := plan.Load(planFile)
	if err != nil {
		if reportInvalidPlan(err) {
			return fmt.Errorf("plan %s failed validation", planFile)
		}
		return err
	}

	graph, err := engine.BuildGraph(p)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("digraph stratus {\n")
	b.WriteString("  rankdir = \"LR\";\n")
	b.WriteString("  node [shape = box];\n")
	for _, name := range graph.CreationOrder() {
		res := p.Resource(name)
		fmt.Fprintf(&b, "  %q [label=\"%s\\n(%s)\"];\n", name, name, res.Kind)
	}
	for _, name := range graph.CreationOrder() {
		for _, dep := range graph.Dependencies(name) {
			fmt.Fprintf(&b, "  %q -> %q;\n", dep, name)
		}
	}
	b.WriteString("}\n")

	fmt.Print(b.String())
	return nil
}

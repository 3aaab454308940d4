package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yond5413/agent-workflow-builder/workflow"
	"github.com/yond5413/agent-workflow-builder/workflow/analyze"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <workflow-file>",
	Short: "Show the execution structure of a workflow",
	Args:  cobra.ExactArgs(1),
	RunE:  inspectWorkflow,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func inspectWorkflow(cmd *cobra.Command, args []string) error {
	w, err := workflow.Load(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Workflow: %s (%d nodes, %d edges)\n", w.Metadata.Name, len(w.Nodes), len(w.Edges))

	if err := analyze.DetectCycle(w.Nodes, w.Edges); err != nil {
		return fmt.Errorf("workflow is not executable: %w", err)
	}

	order := analyze.TopologicalOrder(w.Nodes, w.Edges)
	ids := make([]string, len(order))
	for i, node := range order {
		ids[i] = node.ID
	}
	fmt.Printf("Topological order: %s\n", strings.Join(ids, " -> "))

	groups := analyze.DepthGroups(w.Nodes, w.Edges)
	fmt.Printf("Execution levels: %d\n", len(groups))
	for i, group := range groups {
		names := make([]string, len(group))
		for j, node := range group {
			names[j] = fmt.Sprintf("%s (%s)", node.ID, node.Type)
		}
		fmt.Printf("  level %d: %s\n", i+1, strings.Join(names, ", "))
	}

	if disconnected := analyze.FindDisconnected(w.Nodes, w.Edges); len(disconnected) > 0 {
		fmt.Printf("Disconnected nodes: %s\n", strings.Join(disconnected, ", "))
	}
	return nil
}

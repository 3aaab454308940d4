package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yond5413/agent-workflow-builder/workflow"
	"github.com/yond5413/agent-workflow-builder/workflow/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow-file>",
	Short: "Validate a workflow file (JSON or YAML)",
	Args:  cobra.ExactArgs(1),
	RunE:  validateWorkflow,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateWorkflow(cmd *cobra.Command, args []string) error {
	w, err := workflow.Load(args[0])
	if err != nil {
		return err
	}

	result := validate.Workflow(w)
	for _, finding := range result.Errors {
		location := ""
		if finding.NodeID != "" {
			location = " [node " + finding.NodeID + "]"
		} else if finding.EdgeID != "" {
			location = " [edge " + finding.EdgeID + "]"
		}
		fmt.Printf("%s%s: %s\n", finding.Type, location, finding.Message)
	}

	if !result.Valid {
		return fmt.Errorf("workflow is invalid: %d error(s)", result.ErrorCount())
	}
	fmt.Printf("Workflow %q is valid (%d warning(s)).\n", w.Metadata.Name, len(result.Errors)-result.ErrorCount())
	return nil
}

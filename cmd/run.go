package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yond5413/agent-workflow-builder/workflow"
	"github.com/yond5413/agent-workflow-builder/workflow/engine"
	"github.com/yond5413/agent-workflow-builder/workflow/validate"
)

var (
	runTimeout    time.Duration
	runOutputPath string
	skipValidate  bool
)

var runCmd = &cobra.Command{
	Use:   "run <workflow-file>",
	Short: "Execute a workflow file",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflow,
}

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "overall execution timeout (0 means none)")
	runCmd.Flags().StringVarP(&runOutputPath, "out", "o", "", "write the run result JSON to a file instead of stdout")
	runCmd.Flags().BoolVar(&skipValidate, "skip-validate", false, "execute without validating first")
	rootCmd.AddCommand(runCmd)
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	w, err := workflow.Load(args[0])
	if err != nil {
		return err
	}

	if !skipValidate {
		result := validate.Workflow(w)
		if !result.Valid {
			for _, finding := range result.Errors {
				if finding.Type == workflow.SeverityError {
					fmt.Fprintf(os.Stderr, "error: %s\n", finding.Message)
				}
			}
			return fmt.Errorf("workflow is invalid: %d error(s)", result.ErrorCount())
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	eng := engine.New(defaultCapabilities(), engine.WithLogListener(func(entry workflow.Log) {
		fmt.Fprintf(os.Stderr, "%s [%s] %s\n", entry.Timestamp.Format(time.TimeOnly), entry.Level, entry.Message)
	}))

	result, runErr := eng.Execute(ctx, w)
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "run aborted: %v\n", runErr)
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run result: %w", err)
	}
	if runOutputPath != "" {
		if err := os.WriteFile(runOutputPath, encoded, 0o644); err != nil {
			return fmt.Errorf("write run result: %w", err)
		}
	} else {
		fmt.Println(string(encoded))
	}

	return runErr
}

// Package cmd wires the workflow CLI: validating, inspecting, and running
// workflow files against the configured providers.
package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Validate and run AI workflow graphs",
	Long: "A DAG execution engine for AI agent workflows: LLM tasks, web scraping,\n" +
		"embeddings, vector search, speech, image, and video generation nodes\n" +
		"connected into a graph and executed level by level.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Missing env file is fine, provider keys may come from the
		// environment directly.
		if envFile != "" {
			_ = godotenv.Load(envFile)
		} else {
			_ = godotenv.Load()
		}

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file with provider credentials")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

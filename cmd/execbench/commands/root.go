// Package commands implements the execbench command line.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kbukum/execkit/version"
)

var (
	configPath string
	jsonOutput bool
)

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return newRootCommand().ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "execbench",
		Short: "Drive and serve an execkit execution engine",
		Long: `execbench exercises the execkit engine: request coalescing, per-operation
circuit breakers, adaptive timeouts, bounded concurrency and batch execution.

Commands:
  run      generate synthetic load and print the engine's statistics
  serve    expose an engine over HTTP with health, stats and metrics endpoints
  version  print build information`,
		Version:       version.Get().Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Task and workflow dispatcher",
	Long: `Dispatch routes instructions to named targets through a bounded
worker pool, tracks every task to a terminal result, and runs ordered
multi-step workflows whose steps consume the results of earlier steps.

Targets are loaded from the targets directory (YAML definitions or
markdown files with YAML frontmatter). The simulated search, analysis
and content targets are available in-process unless builtin_targets is
disabled.

Configuration comes from --config, then DISPATCH_* environment variables.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(targetsCmd)
	rootCmd.AddCommand(taskCmd)
}

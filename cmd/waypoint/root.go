package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "waypoint",
	Short: "Knowledge-guided analysis orchestration",
	Long: `Waypoint answers analysis requests against a project's institutional
knowledge. Each request is grounded in a bounded retrieval pass over the
knowledge base, classified into a methodology tier, executed as a phased
plan of analysis capabilities, and synthesized into a single bounded
findings report.

Core behavior:
- Retrieval runs in an isolated worker under hard time and memory ceilings
- Tier classification sizes the plan: light, medium, or full
- Full-tier plans get an advisory second opinion before execution
- Work-unit budgets cap execution; exhaustion skips tasks, never kills them
- Synthesis always produces findings, even from partial execution`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(capabilitiesCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(versionCmd)
}

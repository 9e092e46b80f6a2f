package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/waypoint/internal/retrieval"
)

// workerCmd is the hidden entry point the retrieval worker re-execs
// into. It reads a JSON request on stdin, runs the bounded gather under
// its own memory limit, and writes a JSON response on stdout. Errors
// are reported in-band so a spawn failure stays distinguishable from a
// retrieval failure.
var workerCmd = &cobra.Command{
	Use:    retrieval.WorkerCommand,
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return retrieval.RunWorker(cmd.Context(), os.Stdin, os.Stdout)
	},
}

// Command leadscope is the CLI entry point.
package main

import (
	"os"

	"github.com/turtacn/leadscope/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	// cli.Execute prints the error itself.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

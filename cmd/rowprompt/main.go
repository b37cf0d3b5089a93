// Command rowprompt runs every row of a CSV file through a language model.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rshade/rowprompt/internal/cli"
	"github.com/rshade/rowprompt/pkg/version"
)

// exitInterrupted follows the shell convention for SIGINT.
const exitInterrupted = 130

func main() {
	os.Exit(extractExitCode(run()))
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(version.GetVersion())
	return root.ExecuteContext(ctx)
}

// extractExitCode maps a command error to the process exit status.
func extractExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, cli.ErrRunInterrupted), errors.Is(err, context.Canceled):
		return exitInterrupted
	default:
		return 1
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rxtech-lab/argo-orderbot/pkg/errors"
)

func main() {
	// SIGINT cancels the running strategy through the context.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)

	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
// Partial strategy failures are reported but still exit 0.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return newApplication(stdout, stderr).run(ctx, args)
}

func (a *application) run(ctx context.Context, args []string) int {
	err := a.command().Run(ctx, args)
	if err == nil {
		return 0
	}

	if errors.IsPartialStrategyFailure(err) {
		fmt.Fprintln(a.stderr, WarningStyle.Render("warning: ")+err.Error())

		return 0
	}

	fmt.Fprintln(a.stderr, ErrorStyle.Render("error: ")+err.Error())

	return 1
}

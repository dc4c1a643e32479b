// Command cellstore is the command-line front end for a cell project.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/cellstore/internal/adapters/driving/cli"
	"github.com/custodia-labs/cellstore/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetOpener(open)
	if err := cli.Execute(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// open wires the adapters for one command invocation.
func open(ctx context.Context, opts cli.OpenOptions) (*cli.Services, error) {
	a, err := app.Open(ctx, app.Options{
		ProjectPath: opts.ProjectPath,
		ConfigDir:   opts.ConfigDir,
		NeedProject: opts.NeedProject,
		Interactive: opts.Interactive,
	})
	if err != nil {
		return nil, err
	}

	svc := &cli.Services{
		Settings: a.Settings,
		Close:    a.Close,
	}
	if a.Store != nil {
		svc.Cells = a.Cells
		svc.Reader = a.Cache
		svc.History = a.History
		svc.Edit = a.Edit
		svc.Traces = a.Traces
		svc.Transfer = a.Transfer
	}
	return svc, nil
}

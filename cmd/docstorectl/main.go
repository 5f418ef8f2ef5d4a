package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"docstorectl/internal/cli"
	"docstorectl/internal/docstore"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error(err.Error())
		os.Exit(docstore.ExitCode(err))
	}
}

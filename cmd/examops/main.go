package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lerlerchan/ExamOps-Orchestrator/internal/cli"
)

// main runs the CLI and exits with status 1 when the command fails.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/planner/internal/backend"
)

func main() {
	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create ProcessManager for subprocess tracking
	pm := backend.NewProcessManager()

	go func() {
		<-ctx.Done()
		// Restore default signal handling (double Ctrl+C = force exit)
		stop()
		if err := pm.KillAll(); err != nil {
			fmt.Fprintf(os.Stderr, "Error killing subprocesses: %v\n", err)
		}
	}()

	a := newApp(pm, os.Stdout)
	if err := a.execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

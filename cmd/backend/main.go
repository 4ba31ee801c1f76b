package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"github.com/mentis-ai/mentis/internal/backend"
)

func main() {
	ctx := setupSignalContext()
	backend.NewApp(ctx).Run()
}

// setupSignalContext cancels on the first SIGINT/SIGTERM and force
// exits on the second.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
		<-ch
		os.Exit(1)
	}()

	return ctx
}

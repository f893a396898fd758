package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"authcore/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runtime, err := app.Build(ctx, app.Options{LoadDotEnv: true})
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	defer runtime.Close()

	runtime.Logger.Info("sweeper started", map[string]any{
		"interval": runtime.Config.SweepInterval.String(),
	})
	runtime.Sweeper.Run(ctx, runtime.Config.SweepInterval)
	runtime.Logger.Info("sweeper stopped", nil)
}

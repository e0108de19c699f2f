package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bankpay/internal/app/bootstrap"
)

// API process entrypoint.
// Data flow:
// 1) Load config and key material.
// 2) Build app wiring (ports + adapters + use cases).
// 3) Serve HTTP until SIGINT/SIGTERM.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildAPI()
	if err != nil {
		slog.Error("bootstrap api failed", "event", "api_bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("api shutdown close failed", "event", "api_close_failed", "error", err.Error())
		}
	}()

	if err := app.Run(ctx); err != nil {
		slog.Error("api stopped with error", "event", "api_stopped", "error", err.Error())
		os.Exit(1)
	}
}

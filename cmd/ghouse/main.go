package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ghouse/internal/app"
	"ghouse/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log := app.NewLogger(cfg)

	application, err := app.New(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("env", cfg.App.Env).Msg("starting ghouse backend")
	return application.Run(ctx)
}

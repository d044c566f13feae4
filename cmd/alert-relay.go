package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"alert-relay/internal/app"
	"alert-relay/internal/config"
	"alert-relay/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	log := logger.SetupLogger(cfg.Env)

	log.Info("start alert relay",
		slog.String("version", app.Version),
		slog.Duration("flush_interval", cfg.FlushInterval),
		slog.String("default_server", cfg.DefaultServer),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to build app", "error", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		log.Error("app stopped with error", "error", err)
		os.Exit(1)
	}

	log.Info("alert relay stopped")
}

// Package app wires application components together and manages lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"alert-relay/internal/config"
	"alert-relay/internal/gateway"
	"alert-relay/internal/metrics"
	"alert-relay/internal/sender"
	"alert-relay/internal/server"
	"alert-relay/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// Version is reported at startup and by the health endpoint.
var Version = "0.1.0"

// App holds initialized dependencies and running services.
type App struct {
	cfg     *config.Config
	log     *slog.Logger
	gateway *gateway.Gateway
	journal storage.Journal
	http    *http.Server
}

// New builds the application with all dependencies. The journal and the
// Telegram mirror are only created when configured.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var journal storage.Journal
	if cfg.DatabaseURL != "" {
		j, err := storage.NewPostgresJournal(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		journal = j
		log.Info("delivery journal enabled")
	}

	var mirror sender.Mirror
	if cfg.Telegram.Enabled() {
		tm, err := sender.NewTelegramMirror(cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.HTTPTimeout)
		if err != nil {
			// The mirror is optional; delivery works without it.
			log.Error("failed to create telegram mirror", "error", err)
		} else {
			mirror = tm
			log.Info("telegram mirror enabled", "chat_id", cfg.Telegram.ChatID)
		}
	}

	gw, err := gateway.New(gateway.Options{
		Interval:      cfg.FlushInterval,
		DefaultServer: cfg.DefaultServer,
		StrategyName:  cfg.StrategyName,
		Platform:      cfg.Platform,
		Sender:        sender.NewWebhookSender(cfg.HTTPTimeout),
		Mirror:        mirror,
		Journal:       journal,
		Metrics:       m,
		Logger:        log,
	})
	if err != nil {
		if journal != nil {
			_ = journal.Close()
		}
		return nil, err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(gw, journal, reg, Version, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:     cfg,
		log:     log,
		gateway: gw,
		journal: journal,
		http:    srv,
	}, nil
}

// Gateway exposes the gateway for in-process producers.
func (a *App) Gateway() *gateway.Gateway {
	return a.gateway
}

// Run serves HTTP until ctx is cancelled, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("http server listening", "addr", a.http.Addr)
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.Shutdown(a.cfg.ShutdownTimeout)
		return nil
	})

	return g.Wait()
}

// Shutdown stops the HTTP server, flushes the gateway and closes the journal.
func (a *App) Shutdown(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.http.Shutdown(ctx); err != nil {
		a.log.Error("http server shutdown", "error", err)
	}
	if err := a.gateway.Close(timeout); err != nil && !errors.Is(err, gateway.ErrClosed) {
		a.log.Error("gateway shutdown", "error", err)
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Error("failed to close journal", "error", err)
		}
	}
}

// Package gateway is the entry point producers submit alerts to. A Gateway
// owns one alert store and the background flush that empties it.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"alert-relay/internal/alert"
	"alert-relay/internal/endpoint"
	"alert-relay/internal/flush"
	"alert-relay/internal/metrics"
	"alert-relay/internal/scheduler"
	"alert-relay/internal/sender"
	"alert-relay/internal/storage"
)

var (
	ErrEmptyKey       = errors.New("grouping key is required")
	ErrMalformedInput = errors.New("submission is not valid UTF-8")
	ErrClosed         = errors.New("gateway closed")
)

const DefaultInterval = time.Second

type Options struct {
	// Interval between flush cycles; DefaultInterval when zero.
	Interval time.Duration

	// DefaultServer is the base URL used when a submission carries none.
	DefaultServer string
	StrategyName  string
	Platform      string

	Sender  sender.Sender
	Mirror  sender.Mirror
	Journal storage.Journal
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type Gateway struct {
	store         *storage.Store
	pipeline      *flush.Pipeline
	service       *scheduler.CronService
	defaultServer string
	metrics       *metrics.Metrics
	log           *slog.Logger

	// closeMu orders Submit against Close: once closed is shut, no Append
	// can land after the final flush has drained the store.
	closeMu   sync.RWMutex
	closeOnce sync.Once
	closed    chan struct{}
}

// New builds the gateway and starts its flush schedule.
func New(opts Options) (*Gateway, error) {
	if opts.Sender == nil {
		return nil, errors.New("sender is required")
	}
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if opts.DefaultServer == "" {
		opts.DefaultServer = endpoint.Resolve(endpoint.ProfitRobots)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	store := storage.NewStore(opts.StrategyName)
	store.OnPendingChange(func(n int) {
		opts.Metrics.PendingEvents.Set(float64(n))
	})
	g := &Gateway{
		store: store,
		pipeline: &flush.Pipeline{
			Source:   store,
			Sender:   opts.Sender,
			Mirror:   opts.Mirror,
			Journal:  opts.Journal,
			Metrics:  opts.Metrics,
			Platform: opts.Platform,
		},
		defaultServer: opts.DefaultServer,
		metrics:       opts.Metrics,
		log:           opts.Logger,
		closed:        make(chan struct{}),
	}

	svc, err := scheduler.NewCronService(opts.Interval, flush.NewJob(g.pipeline), opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("create flush scheduler: %w", err)
	}
	if err := svc.Start(); err != nil {
		return nil, fmt.Errorf("start flush scheduler: %w", err)
	}
	g.service = svc

	return g, nil
}

// Submit queues one alert for the next flush. An empty url routes the alert
// to the default server. Delivery failures are never reported here.
func (g *Gateway) Submit(key, text, instrument, timeframe, url string) error {
	g.closeMu.RLock()
	defer g.closeMu.RUnlock()

	select {
	case <-g.closed:
		return ErrClosed
	default:
	}
	if key == "" {
		g.metrics.EventsRejected.Inc()
		return ErrEmptyKey
	}
	for _, s := range [...]string{key, text, instrument, timeframe, url} {
		if !utf8.ValidString(s) {
			g.metrics.EventsRejected.Inc()
			return ErrMalformedInput
		}
	}
	if url == "" {
		url = g.defaultServer
	}

	g.store.Append(key, alert.Event{
		Text:       text,
		Instrument: instrument,
		TimeFrame:  timeframe,
	}, url)

	g.metrics.EventsSubmitted.Inc()
	return nil
}

// Flush runs one cycle immediately.
func (g *Gateway) Flush(ctx context.Context) flush.Report {
	return g.pipeline.Run(ctx, g.log)
}

// Pending returns the number of events waiting for the next flush.
func (g *Gateway) Pending() int {
	return g.store.Len()
}

// Close stops the schedule and flushes what is left, bounded by timeout.
func (g *Gateway) Close(timeout time.Duration) error {
	err := ErrClosed
	g.closeOnce.Do(func() {
		g.closeMu.Lock()
		close(g.closed)
		g.closeMu.Unlock()

		err = g.service.Shutdown(timeout)
		if err != nil {
			g.log.Error("flush scheduler shutdown", "error", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		rep := g.Flush(ctx)
		if rep.Batches > 0 {
			g.log.Info("final flush", "delivered", rep.Delivered, "failed", rep.Failed)
		}
	})
	return err
}

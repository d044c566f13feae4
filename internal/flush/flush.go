// Package flush implements one drain-and-deliver cycle.
package flush

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"alert-relay/internal/alert"
	"alert-relay/internal/endpoint"
	"alert-relay/internal/metrics"
	"alert-relay/internal/payload"
	"alert-relay/internal/scheduler"
	"alert-relay/internal/sender"
	"alert-relay/internal/storage"
)

// Drainer hands over every pending batch and leaves itself empty.
type Drainer interface {
	DrainAndClear() []*alert.Batch
}

// Report summarises one cycle.
type Report struct {
	Batches   int
	Events    int
	Delivered int
	Failed    int
	Skipped   int
}

// Pipeline formats and delivers drained batches. Mirror and Journal are
// optional.
type Pipeline struct {
	Source   Drainer
	Sender   sender.Sender
	Mirror   sender.Mirror
	Journal  storage.Journal
	Metrics  *metrics.Metrics
	Platform string

	// mu keeps manual and scheduled cycles from interleaving.
	mu sync.Mutex
}

// Run drains the source and delivers each non-empty batch in turn. A failed
// batch is dropped; the remaining batches are still processed. Mirror copies
// go out only after every webhook send of the cycle.
func (p *Pipeline) Run(ctx context.Context, logger *slog.Logger) Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	batches := p.Source.DrainAndClear()

	var (
		rep       Report
		delivered []payload.Document
	)
	rep.Batches = len(batches)
	for _, b := range batches {
		if b.Len() == 0 {
			rep.Skipped++
			continue
		}
		rep.Events += b.Len()

		if doc, ok := p.deliver(ctx, logger, b); ok {
			rep.Delivered++
			delivered = append(delivered, doc)
		} else {
			rep.Failed++
		}
	}

	p.mirror(ctx, logger, delivered)

	if p.Metrics != nil {
		p.Metrics.FlushDuration.Observe(time.Since(start).Seconds())
	}
	if rep.Batches > 0 {
		logger.Debug("flush cycle finished",
			"batches", rep.Batches,
			"events", rep.Events,
			"delivered", rep.Delivered,
			"failed", rep.Failed,
			"dur", time.Since(start),
		)
	}
	return rep
}

func (p *Pipeline) deliver(ctx context.Context, logger *slog.Logger, b *alert.Batch) (payload.Document, bool) {
	target := endpoint.NotificationURL(b.URL)
	log := logger.With("key", b.Key, "url", target, "events", b.Len())

	doc := payload.Format(b, p.Platform)
	body, err := doc.Marshal()
	if err != nil {
		log.Error("failed to serialize batch, dropping", "error", err)
		p.countFailure(metrics.ReasonSerialize)
		p.record(ctx, log, b, err)
		return doc, false
	}

	sendStart := time.Now()
	err = p.Sender.Send(ctx, target, body)
	sendDur := time.Since(sendStart)
	if err != nil {
		if ctx.Err() != nil {
			log.Warn("delivery cancelled due to shutdown", "reason", ctx.Err(), "send_dur", sendDur)
		} else {
			log.Error("failed to deliver batch, dropping", "error", err, "send_dur", sendDur)
		}
		p.countFailure(metrics.ReasonDeliver)
		p.record(ctx, log, b, err)
		return doc, false
	}

	log.Info("batch delivered", "send_dur", sendDur)
	if p.Metrics != nil {
		p.Metrics.BatchesDelivered.Inc()
		p.Metrics.EventsDelivered.Add(float64(b.Len()))
	}
	p.record(ctx, log, b, nil)
	return doc, true
}

func (p *Pipeline) mirror(ctx context.Context, logger *slog.Logger, docs []payload.Document) {
	if p.Mirror == nil {
		return
	}
	for _, doc := range docs {
		if err := p.Mirror.Mirror(ctx, doc); err != nil {
			logger.Warn("failed to mirror batch", "key", doc.Key, "error", err)
		}
	}
}

func (p *Pipeline) countFailure(reason string) {
	if p.Metrics != nil {
		p.Metrics.BatchesFailed.WithLabelValues(reason).Inc()
	}
}

func (p *Pipeline) record(ctx context.Context, log *slog.Logger, b *alert.Batch, deliveryErr error) {
	if p.Journal == nil {
		return
	}

	d := storage.Delivery{
		Key:          b.Key,
		URL:          b.URL,
		StrategyName: b.StrategyName,
		Events:       b.Len(),
		Status:       storage.StatusDelivered,
	}
	if deliveryErr != nil {
		d.Status = storage.StatusFailed
		d.Error = deliveryErr.Error()
	}

	// The journal outlives a cancelled cycle context.
	if err := p.Journal.Record(context.WithoutCancel(ctx), d); err != nil {
		log.Warn("failed to journal delivery", "error", err)
	}
}

// NewJob adapts the pipeline to the scheduler.
func NewJob(p *Pipeline) scheduler.JobFunc {
	return func(ctx context.Context, taskLogger *slog.Logger) {
		p.Run(ctx, taskLogger)
	}
}

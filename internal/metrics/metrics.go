// Package metrics defines the prometheus collectors of the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "alert_relay"

	ReasonSerialize = "serialize"
	ReasonDeliver   = "deliver"
)

type Metrics struct {
	EventsSubmitted  prometheus.Counter
	EventsRejected   prometheus.Counter
	EventsDelivered  prometheus.Counter
	BatchesDelivered prometheus.Counter
	BatchesFailed    *prometheus.CounterVec
	PendingEvents    prometheus.Gauge
	FlushDuration    prometheus.Histogram
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which is what tests usually want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "events_submitted_total",
			Help:      "The total number of accepted alert submissions",
		}),
		EventsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "events_rejected_total",
			Help:      "The total number of submissions dropped as malformed",
		}),
		EventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flush",
			Name:      "events_delivered_total",
			Help:      "The total number of events inside successfully delivered batches",
		}),
		BatchesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "flush",
			Name:      "batches_delivered_total",
			Help:      "The total number of batches accepted by their endpoint",
		}),
		BatchesFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "flush",
				Name:      "batches_failed_total",
				Help:      "The total number of batches dropped, by failure reason",
			},
			[]string{"reason"},
		),
		PendingEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "pending_events",
			Help:      "Events accumulated since the last flush",
		}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "flush",
			Name:      "duration_seconds",
			Help:      "Wall time of one flush cycle",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.EventsSubmitted,
			m.EventsRejected,
			m.EventsDelivered,
			m.BatchesDelivered,
			m.BatchesFailed,
			m.PendingEvents,
			m.FlushDuration,
		)
	}

	return m
}

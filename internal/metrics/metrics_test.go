package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.EventsSubmitted.Add(3)
	m.BatchesFailed.WithLabelValues(ReasonDeliver).Inc()

	if got := testutil.ToFloat64(m.EventsSubmitted); got != 3 {
		t.Errorf("expected 3 submitted, got %v", got)
	}
	if got := testutil.ToFloat64(m.BatchesFailed.WithLabelValues(ReasonDeliver)); got != 1 {
		t.Errorf("expected 1 failed batch, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
}

func TestNew_SeparateRegistries(t *testing.T) {
	// Two gateways in one process must not collide on registration.
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
	New(nil)
}

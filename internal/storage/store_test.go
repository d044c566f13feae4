package storage

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"alert-relay/internal/alert"
)

func TestStore_AppendGroupsByKey(t *testing.T) {
	s := NewStore("grid")

	s.Append("S1", alert.Event{Text: "Buy", Instrument: "EUR", TimeFrame: "1H"}, "http://a")
	s.Append("S2", alert.Event{Text: "Hold", Instrument: "JPY", TimeFrame: "1D"}, "http://a")
	s.Append("S1", alert.Event{Text: "Sell", Instrument: "GBP", TimeFrame: "4H"}, "http://a")

	if s.Len() != 3 {
		t.Fatalf("expected 3 pending events, got %d", s.Len())
	}
	if s.Batches() != 2 {
		t.Fatalf("expected 2 batches, got %d", s.Batches())
	}

	batches := s.DrainAndClear()
	if len(batches) != 2 {
		t.Fatalf("expected 2 drained batches, got %d", len(batches))
	}

	first := batches[0]
	if first.Key != "S1" || first.URL != "http://a" || first.StrategyName != "grid" {
		t.Errorf("unexpected first batch header: %+v", first)
	}
	if first.Len() != 2 || first.Events[0].Text != "Buy" || first.Events[1].Text != "Sell" {
		t.Errorf("events out of order: %+v", first.Events)
	}
	if batches[1].Key != "S2" || batches[1].Len() != 1 {
		t.Errorf("unexpected second batch: %+v", batches[1])
	}
}

func TestStore_RoutesByURL(t *testing.T) {
	s := NewStore("")

	s.Append("S1", alert.Event{Text: "a"}, "http://one")
	s.Append("S1", alert.Event{Text: "b"}, "http://two")
	s.Append("S1", alert.Event{Text: "c"}, "http://one")

	batches := s.DrainAndClear()
	if len(batches) != 2 {
		t.Fatalf("expected one batch per destination, got %d", len(batches))
	}
	if batches[0].URL != "http://one" || batches[0].Len() != 2 {
		t.Errorf("unexpected batch for http://one: %+v", batches[0])
	}
	if batches[1].URL != "http://two" || batches[1].Len() != 1 {
		t.Errorf("unexpected batch for http://two: %+v", batches[1])
	}
}

func TestStore_DrainLeavesStoreEmpty(t *testing.T) {
	s := NewStore("")
	s.Append("k", alert.Event{Text: "first"}, "http://a")

	if got := s.DrainAndClear(); len(got) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(got))
	}
	if s.Len() != 0 || s.Batches() != 0 {
		t.Fatalf("store not empty after drain: events=%d batches=%d", s.Len(), s.Batches())
	}
	if got := s.DrainAndClear(); len(got) != 0 {
		t.Fatalf("second drain repeated %d batches", len(got))
	}

	s.Append("k", alert.Event{Text: "second"}, "http://a")
	got := s.DrainAndClear()
	if len(got) != 1 || got[0].Len() != 1 || got[0].Events[0].Text != "second" {
		t.Fatalf("expected only the post-drain event, got %+v", got)
	}
}

func TestStore_ConcurrentAppendAndDrain(t *testing.T) {
	const (
		producers   = 16
		perProducer = 500
		keys        = 7
	)

	s := NewStore("")

	var (
		mu      sync.Mutex
		counted = make(map[string]int)
		total   int
	)
	collect := func(batches []*alert.Batch) {
		mu.Lock()
		defer mu.Unlock()
		for _, b := range batches {
			for _, ev := range b.Events {
				if ev.Instrument != b.Key {
					t.Errorf("event for key %s landed in batch %s", ev.Instrument, b.Key)
				}
				counted[ev.Text]++
				total++
			}
		}
	}

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				key := fmt.Sprintf("key-%d", (p+i)%keys)
				s.Append(key, alert.Event{
					Text:       fmt.Sprintf("%d/%d", p, i),
					Instrument: key,
				}, "http://a")
			}
		}(p)
	}

	stop := make(chan struct{})
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for {
			select {
			case <-stop:
				return
			default:
				collect(s.DrainAndClear())
			}
		}
	}()

	wg.Wait()
	close(stop)
	<-drained
	collect(s.DrainAndClear())

	if total != producers*perProducer {
		t.Fatalf("expected %d events, got %d", producers*perProducer, total)
	}
	for text, n := range counted {
		if n != 1 {
			t.Errorf("event %s observed %d times", text, n)
		}
	}
}

func TestStore_OnPendingChange(t *testing.T) {
	s := NewStore("")

	var seen []int
	s.OnPendingChange(func(pending int) {
		seen = append(seen, pending)
	})

	s.Append("k", alert.Event{Text: "a"}, "http://a")
	s.Append("k", alert.Event{Text: "b"}, "http://a")
	s.DrainAndClear()

	want := []int{1, 2, 0}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("observation %d = %d, want %d", i, seen[i], want[i])
		}
	}
}

func TestStore_PendingNeverNegativeUnderContention(t *testing.T) {
	s := NewStore("")

	var low atomic.Int64
	s.OnPendingChange(func(pending int) {
		if int64(pending) < low.Load() {
			low.Store(int64(pending))
		}
	})

	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Append("k", alert.Event{Text: "x"}, "http://a")
				if i%10 == 0 {
					s.DrainAndClear()
				}
			}
		}()
	}
	wg.Wait()

	if low.Load() < 0 {
		t.Errorf("pending count went negative: %d", low.Load())
	}
}

// Package alert holds the in-memory model of pending notifications.
package alert

// Event is a single notification as submitted by a producer.
type Event struct {
	Text       string
	Instrument string
	TimeFrame  string
}

// Batch is the set of events accumulated for one grouping key and destination
// since the last flush.
type Batch struct {
	Key          string
	URL          string
	StrategyName string
	Events       []Event
}

func (b *Batch) Add(ev Event) {
	b.Events = append(b.Events, ev)
}

func (b *Batch) Len() int {
	return len(b.Events)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package progress

import (
	"context"
	"sync"
)

// ChanSink publishes events on a channel owned by the consumer. Publish
// blocks until the consumer receives or ctx is done, in which case the event
// is dropped.
type ChanSink chan<- Event

func (c ChanSink) Publish(ctx context.Context, ev Event) {
	select {
	case c <- ev:
	case <-ctx.Done():
	}
}

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Percents returns the recorded percentages in order.
func (r *Recorder) Percents() []int {
	evs := r.Events()
	out := make([]int, len(evs))
	for i, ev := range evs {
		out[i] = ev.Percent
	}
	return out
}

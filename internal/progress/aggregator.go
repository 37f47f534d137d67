// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package progress

import (
	"context"
	"math"
	"sync"
)

// Event is a single progress observation.
type Event struct {
	Phase   Phase
	Percent int
	Message string
}

// Sink receives progress events.
type Sink interface {
	Publish(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event)

func (f SinkFunc) Publish(ctx context.Context, ev Event) { f(ctx, ev) }

// Reporter reports progress within one phase as a fraction in [0,1].
type Reporter interface {
	Report(ctx context.Context, fraction float64, message string)
}

// Aggregator converts phase-relative fractions into job-wide percentages.
// Emitted values never decrease.
type Aggregator struct {
	mu   sync.Mutex
	last int
	sink Sink
}

// NewAggregator returns an aggregator publishing to sink. A nil sink
// discards events.
func NewAggregator(sink Sink) *Aggregator {
	return &Aggregator{sink: sink}
}

// Report emits start + fraction*(end-start) for the phase, raised to the last
// emitted value. Unknown phases keep the current value. It returns the
// emitted percentage.
func (a *Aggregator) Report(ctx context.Context, phase Phase, fraction float64, message string) int {
	a.mu.Lock()
	pct := a.last
	if b, ok := phaseTable[phase]; ok {
		pct = percentOf(b, fraction)
	}
	if pct < a.last {
		pct = a.last
	}
	a.last = pct
	a.mu.Unlock()

	if a.sink != nil {
		a.sink.Publish(ctx, Event{Phase: phase, Percent: pct, Message: message})
	}
	return pct
}

// Done emits 100.
func (a *Aggregator) Done(ctx context.Context, message string) {
	a.Report(ctx, PhaseCleanup, 1, message)
}

// Last returns the last emitted value.
func (a *Aggregator) Last() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

// Phase binds a reporter to one phase.
func (a *Aggregator) Phase(p Phase) Reporter {
	return phaseReporter{agg: a, phase: p}
}

type phaseReporter struct {
	agg   *Aggregator
	phase Phase
}

func (r phaseReporter) Report(ctx context.Context, fraction float64, message string) {
	r.agg.Report(ctx, r.phase, fraction, message)
}

func percentOf(b bounds, fraction float64) int {
	if math.IsNaN(fraction) || fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	v := int(math.Round(float64(b.start) + fraction*float64(b.end-b.start)))
	return min(max(v, 0), 100)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resilience guards calls to external providers.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/vidforge/internal/log"
	"github.com/ManuGH/vidforge/internal/metrics"
)

// State represents the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrOpen is returned without calling the provider while the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Breaker opens after threshold consecutive failures and lets one probe
// through after resetTimeout. A successful probe closes it again.
type Breaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration
	clock        clock

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock replaces the time source.
func WithClock(c clock) Option {
	return func(b *Breaker) { b.clock = c }
}

// New returns a closed breaker. Non-positive arguments pick 5 failures and 30s.
func New(name string, threshold int, resetTimeout time.Duration, opts ...Option) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	b := &Breaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		clock:        realClock{},
		state:        StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	metrics.SetCircuitBreakerState(name, stateValue(StateClosed))
	return b
}

// Allow reports whether a call may proceed. In half-open state only one
// probe is admitted at a time.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.clock.Now().Sub(b.openedAt) < b.resetTimeout {
			return ErrOpen
		}
		b.transitionTo(StateHalfOpen)
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrOpen
		}
		b.probing = true
	}
	return nil
}

// Success records a healthy provider answer.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.probing = false
	b.transitionTo(StateClosed)
}

// Failure records a provider fault. Caller-side errors such as a canceled
// context or a client error status should not be reported.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.probing = false
	switch {
	case b.state == StateHalfOpen:
		metrics.IncCircuitBreakerTrip(b.name, "half_open_failure")
		b.transitionTo(StateOpen)
	case b.state == StateClosed && b.failures >= b.threshold:
		metrics.IncCircuitBreakerTrip(b.name, "threshold_exceeded")
		b.transitionTo(StateOpen)
	}
}

// Release gives back a half-open probe slot without a verdict.
func (b *Breaker) Release() {
	b.mu.Lock()
	b.probing = false
	b.mu.Unlock()
}

// Execute runs fn under the breaker. Context errors count as neither
// success nor failure.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn(ctx)
	switch {
	case err == nil:
		b.Success()
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		b.Release()
	default:
		b.Failure()
	}
	return err
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// transitionTo changes state and publishes it. Caller holds mu.
func (b *Breaker) transitionTo(next State) {
	if b.state == next {
		return
	}
	prev := b.state
	b.state = next
	if next == StateOpen {
		b.openedAt = b.clock.Now()
	}
	metrics.SetCircuitBreakerState(b.name, stateValue(next))
	log.L().Warn().
		Str(log.FieldComponent, "breaker").
		Str("breaker", b.name).
		Str(log.FieldOldState, string(prev)).
		Str(log.FieldNewState, string(next)).
		Msg("circuit breaker state changed")
}

func stateValue(s State) float64 {
	switch s {
	case StateHalfOpen:
		return 1
	case StateOpen:
		return 2
	default:
		return 0
	}
}

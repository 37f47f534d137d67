// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package watchdog detects transcoder invocations that stop making progress.
// It consumes the key=value stream ffmpeg writes with "-progress pipe:1".
package watchdog

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNoProgress means the process never reported output progress.
	ErrNoProgress = errors.New("transcoder produced no progress")
	// ErrStalled means reported progress stopped advancing.
	ErrStalled = errors.New("transcoder stalled")
)

// State is the lifecycle of one watched invocation.
type State int

const (
	StateStarting State = iota
	StateRunning
	StateStalled
	StateTimedOut
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStalled:
		return "stalled"
	case StateTimedOut:
		return "timed_out"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

type clock interface {
	Now() time.Time
	NewTicker(d time.Duration) ticker
}

type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time                   { return time.Now() }
func (realClock) NewTicker(d time.Duration) ticker { return realTicker{time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Watchdog tracks the progress stream of one process. It is an io.Writer so
// it can be attached to the process stdout directly.
type Watchdog struct {
	startTimeout time.Duration
	stallTimeout time.Duration
	clock        clock

	mu        sync.Mutex
	partial   []byte
	outTimeUs int64
	totalSize int64
	lastBeat  time.Time
	state     State
	completed chan struct{}
	once      sync.Once
}

// New returns a watchdog that fails after startTimeout without any progress,
// or after stallTimeout without progress advancing.
func New(startTimeout, stallTimeout time.Duration) *Watchdog {
	return &Watchdog{
		startTimeout: startTimeout,
		stallTimeout: stallTimeout,
		clock:        realClock{},
		completed:    make(chan struct{}),
	}
}

// Run checks the deadlines until ctx ends, the stream reports completion, or
// a deadline passes. Only the latter returns an error.
func (w *Watchdog) Run(ctx context.Context) error {
	w.mu.Lock()
	w.lastBeat = w.clock.Now()
	w.mu.Unlock()

	t := w.clock.NewTicker(w.tickInterval())
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.completed:
			return nil
		case <-t.C():
			if err := w.check(); err != nil {
				return err
			}
		}
	}
}

func (w *Watchdog) tickInterval() time.Duration {
	d := min(w.startTimeout, w.stallTimeout) / 4
	switch {
	case d <= 0:
		return time.Second
	case d < 10*time.Millisecond:
		return 10 * time.Millisecond
	case d > time.Second:
		return time.Second
	}
	return d
}

// Write accepts raw progress output; complete lines are parsed.
func (w *Watchdog) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.partial = append(w.partial, p...)
	var lines []string
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, string(w.partial[:i]))
		w.partial = w.partial[i+1:]
	}
	w.mu.Unlock()

	for _, l := range lines {
		w.ParseLine(l)
	}
	return len(p), nil
}

// ParseLine processes one key=value line. Unknown keys and junk are ignored.
func (w *Watchdog) ParseLine(line string) {
	key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok || strings.Contains(val, "=") {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch key {
	// out_time_ms carries microseconds as well in ffmpeg's output.
	case "out_time_us", "out_time_ms":
		if us, err := strconv.ParseInt(val, 10, 64); err == nil && us > w.outTimeUs {
			w.outTimeUs = us
			w.beat()
		}
	case "total_size":
		if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > w.totalSize {
			w.totalSize = n
			w.beat()
		}
	case "progress":
		if val == "end" {
			w.state = StateCompleted
			w.once.Do(func() { close(w.completed) })
		}
	}
}

// beat records advancing progress. Callers hold mu.
func (w *Watchdog) beat() {
	w.lastBeat = w.clock.Now()
	if w.state == StateStarting {
		w.state = StateRunning
	}
}

func (w *Watchdog) check() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	elapsed := w.clock.Now().Sub(w.lastBeat)
	switch w.state {
	case StateStarting:
		if elapsed > w.startTimeout {
			w.state = StateTimedOut
			return ErrNoProgress
		}
	case StateRunning:
		if elapsed > w.stallTimeout {
			w.state = StateStalled
			return ErrStalled
		}
	}
	return nil
}

// State returns the current state.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// OutTime returns the furthest reported output position.
func (w *Watchdog) OutTime() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return time.Duration(w.outTimeUs) * time.Microsecond
}

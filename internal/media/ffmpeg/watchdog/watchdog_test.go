// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package watchdog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClock struct {
	mu     sync.Mutex
	now    time.Time
	ticker *mockTicker
}

func (m *mockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *mockClock) NewTicker(time.Duration) ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticker = &mockTicker{c: make(chan time.Time)}
	return m.ticker
}

func (m *mockClock) advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func (m *mockClock) currentTicker() *mockTicker {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticker
}

type mockTicker struct{ c chan time.Time }

func (m *mockTicker) C() <-chan time.Time { return m.c }
func (m *mockTicker) Stop()               {}

func startWatchdog(t *testing.T, w *Watchdog, clk *mockClock) (<-chan error, *mockTicker) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	var tk *mockTicker
	require.Eventually(t, func() bool {
		tk = clk.currentTicker()
		return tk != nil
	}, time.Second, time.Millisecond)
	return errCh, tk
}

func TestWatchdog_NoProgress(t *testing.T) {
	clk := &mockClock{now: time.Unix(0, 0)}
	w := New(2*time.Second, 5*time.Second)
	w.clock = clk
	errCh, tk := startWatchdog(t, w, clk)

	clk.advance(3 * time.Second)
	tk.c <- clk.Now()

	assert.ErrorIs(t, <-errCh, ErrNoProgress)
	assert.Equal(t, StateTimedOut, w.State())
}

func TestWatchdog_Stall(t *testing.T) {
	clk := &mockClock{now: time.Unix(0, 0)}
	w := New(2*time.Second, 5*time.Second)
	w.clock = clk
	errCh, tk := startWatchdog(t, w, clk)

	w.ParseLine("out_time_us=100000")
	assert.Equal(t, StateRunning, w.State())

	// Advancing progress keeps it alive.
	clk.advance(4 * time.Second)
	w.ParseLine("out_time_us=200000")
	clk.advance(4 * time.Second)
	require.NoError(t, w.check())

	clk.advance(2 * time.Second)
	tk.c <- clk.Now()

	assert.ErrorIs(t, <-errCh, ErrStalled)
	assert.Equal(t, StateStalled, w.State())
	assert.Equal(t, 200*time.Millisecond, w.OutTime())
}

func TestWatchdog_CompletionStopsRun(t *testing.T) {
	clk := &mockClock{now: time.Unix(0, 0)}
	w := New(time.Second, time.Second)
	w.clock = clk
	errCh, _ := startWatchdog(t, w, clk)

	_, err := w.Write([]byte("total_size=48\nprogress=con"))
	require.NoError(t, err)
	_, err = w.Write([]byte("tinue\nprogress=end\n"))
	require.NoError(t, err)

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watchdog did not stop after progress=end")
	}
	assert.Equal(t, StateCompleted, w.State())
}

func TestWatchdog_MeaningfulProgress(t *testing.T) {
	w := New(2*time.Second, 5*time.Second)

	w.ParseLine("frame=10")
	assert.Equal(t, StateStarting, w.State(), "frame alone is not progress")

	w.ParseLine("out_time_us=0")
	assert.Equal(t, StateStarting, w.State())

	w.ParseLine("total_size=123")
	assert.Equal(t, StateRunning, w.State())
}

func TestWatchdog_ParserRobustness(t *testing.T) {
	w := New(2*time.Second, 5*time.Second)

	w.ParseLine("out_time_us=N/A")
	w.ParseLine("garbage")
	w.ParseLine("key=val=extra")
	assert.Equal(t, time.Duration(0), w.OutTime())
	assert.Equal(t, StateStarting, w.State())

	w.ParseLine("total_size=100")
	w.ParseLine("total_size=50")
	assert.Equal(t, int64(100), w.totalSize, "size never goes backwards")
}

func TestTickInterval(t *testing.T) {
	assert.Equal(t, time.Second, New(time.Minute, time.Minute).tickInterval())
	assert.Equal(t, 50*time.Millisecond, New(200*time.Millisecond, time.Second).tickInterval())
	assert.Equal(t, 10*time.Millisecond, New(time.Millisecond, time.Millisecond).tickInterval())
}

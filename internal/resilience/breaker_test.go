// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClock struct{ now time.Time }

func (m *mockClock) Now() time.Time { return m.now }

var errProvider = errors.New("upstream 503")

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	clk := &mockClock{now: time.Unix(0, 0)}
	b := New("test", 3, 10*time.Second, WithClock(clk))

	for i := 0; i < 2; i++ {
		require.NoError(t, b.Allow())
		b.Failure()
	}
	assert.Equal(t, StateClosed, b.State())

	// A success resets the consecutive count.
	require.NoError(t, b.Allow())
	b.Success()
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Allow())
		b.Failure()
	}
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrOpen)
}

func TestBreaker_HalfOpenSingleProbe(t *testing.T) {
	clk := &mockClock{now: time.Unix(0, 0)}
	b := New("test", 1, 10*time.Second, WithClock(clk))
	b.Failure()
	require.Equal(t, StateOpen, b.State())

	clk.now = clk.now.Add(11 * time.Second)
	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrOpen, "only one probe at a time")

	b.Failure()
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrOpen, "reset timeout restarts after a failed probe")

	clk.now = clk.now.Add(11 * time.Second)
	require.NoError(t, b.Allow())
	b.Success()
	assert.Equal(t, StateClosed, b.State())
	assert.NoError(t, b.Allow())
}

func TestBreaker_Execute(t *testing.T) {
	b := New("test", 2, time.Minute)
	ctx := context.Background()

	assert.NoError(t, b.Execute(ctx, func(context.Context) error { return nil }))

	canceled := func(context.Context) error { return context.Canceled }
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, b.Execute(ctx, canceled), context.Canceled)
	}
	assert.Equal(t, StateClosed, b.State(), "cancellation is not a provider fault")

	failing := func(context.Context) error { return errProvider }
	assert.ErrorIs(t, b.Execute(ctx, failing), errProvider)
	assert.ErrorIs(t, b.Execute(ctx, failing), errProvider)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreaker_ReleaseFreesProbe(t *testing.T) {
	clk := &mockClock{now: time.Unix(0, 0)}
	b := New("test", 1, time.Second, WithClock(clk))
	b.Failure()
	clk.now = clk.now.Add(2 * time.Second)

	require.NoError(t, b.Allow())
	b.Release()
	assert.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
}

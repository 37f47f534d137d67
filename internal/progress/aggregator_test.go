// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package progress

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseTableIsContiguous(t *testing.T) {
	prev := 0
	for _, p := range Phases() {
		start, end, ok := Bounds(p)
		require.True(t, ok, "phase %s", p)
		assert.Equal(t, prev, start, "phase %s must start where the previous ended", p)
		assert.Greater(t, end, start)
		prev = end
	}
	assert.Equal(t, 100, prev)
}

func TestAggregator_ReportScalesWithinPhase(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(nil)

	assert.Equal(t, 0, agg.Report(ctx, PhasePlan, 0, "Generating plan"))
	assert.Equal(t, 3, agg.Report(ctx, PhasePlan, 1, "Generating plan"))
	assert.Equal(t, 19, agg.Report(ctx, PhaseAssets, 0.5, "Fetching media (3/6)"))
	assert.Equal(t, 60, agg.Report(ctx, PhaseCompose, 0, "Composing"))
	// 60 + 0.85*38 = 92.3
	assert.Equal(t, 92, agg.Report(ctx, PhaseCompose, SynthesisFraction(6, 6), "Composing segment 6/6"))
	assert.Equal(t, 94, agg.Report(ctx, PhaseCompose, ComposeConcatDone, "Concatenating"))
	assert.Equal(t, 98, agg.Report(ctx, PhaseCompose, ComposeBurnDone, "Burning subtitles"))
}

func TestAggregator_NeverDecreases(t *testing.T) {
	ctx := context.Background()
	rec := &Recorder{}
	agg := NewAggregator(rec)

	agg.Report(ctx, PhaseNarration, 1, "narration done")
	agg.Report(ctx, PhaseAssets, 0.1, "late asset report")
	agg.Report(ctx, PhaseCompose, -3, "negative fraction")
	agg.Report(ctx, "unknown", 1, "unknown phase")
	agg.Done(ctx, "Completed")

	got := rec.Percents()
	assert.True(t, sort.IntsAreSorted(got), "progress must be non-decreasing: %v", got)
	assert.Equal(t, []int{55, 55, 60, 60, 100}, got)
	assert.Equal(t, 100, agg.Last())
}

func TestAggregator_ClampsFraction(t *testing.T) {
	agg := NewAggregator(nil)
	assert.Equal(t, 3, agg.Report(context.Background(), PhasePlan, 7, "overshoot"))
}

func TestPhaseReporter(t *testing.T) {
	rec := &Recorder{}
	agg := NewAggregator(rec)
	r := agg.Phase(PhaseSubtitles)
	r.Report(context.Background(), 1, "Building subtitles")

	evs := rec.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, Event{Phase: PhaseSubtitles, Percent: 60, Message: "Building subtitles"}, evs[0])
}

func TestSynthesisFraction(t *testing.T) {
	assert.Equal(t, 0.0, SynthesisFraction(1, 0))
	assert.InDelta(t, 0.425, SynthesisFraction(3, 6), 1e-9)
}

func TestChanSink_DropsWhenContextDone(t *testing.T) {
	ch := make(chan Event)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		ChanSink(ch).Publish(ctx, Event{Percent: 10})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a canceled context")
	}
}

func TestChanSink_Delivers(t *testing.T) {
	ch := make(chan Event, 1)
	ChanSink(ch).Publish(context.Background(), Event{Phase: PhasePlan, Percent: 1})
	assert.Equal(t, Event{Phase: PhasePlan, Percent: 1}, <-ch)
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package progress maps pipeline position to a monotonic 0-100 completion
// value and publishes it as events.
package progress

// Phase is one weighted step of a generation job.
type Phase string

const (
	PhasePlan      Phase = "plan"
	PhaseAssets    Phase = "assets"
	PhaseNarration Phase = "narration"
	PhaseSubtitles Phase = "subtitles"
	PhaseCompose   Phase = "compose"
	PhaseCleanup   Phase = "cleanup"
)

type bounds struct {
	start, end int
}

// phaseTable is contiguous and covers [0,100].
var phaseTable = map[Phase]bounds{
	PhasePlan:      {0, 3},
	PhaseAssets:    {3, 35},
	PhaseNarration: {35, 55},
	PhaseSubtitles: {55, 60},
	PhaseCompose:   {60, 98},
	PhaseCleanup:   {98, 100},
}

// Phases lists all phases in execution order.
func Phases() []Phase {
	return []Phase{PhasePlan, PhaseAssets, PhaseNarration, PhaseSubtitles, PhaseCompose, PhaseCleanup}
}

// Bounds returns the start and end percent of a phase.
func Bounds(p Phase) (start, end int, ok bool) {
	b, ok := phaseTable[p]
	return b.start, b.end, ok
}

// Compose sub-phase checkpoints, as fractions of the compose phase.
const (
	ComposeSynthesisShare = 0.85
	ComposeConcatDone     = 0.90
	ComposeBurnDone       = 1.0
)

// SynthesisFraction is the compose-phase fraction after i of n clips.
func SynthesisFraction(i, n int) float64 {
	if n <= 0 {
		return 0
	}
	return ComposeSynthesisShare * float64(i) / float64(n)
}

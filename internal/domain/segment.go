// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package domain holds the value types shared by the planning, asset,
// narration, composition and job layers.
package domain

import "fmt"

// Segment is a time-bounded slice of the output video. Times are in seconds.
// Segments are immutable once planned.
type Segment struct {
	Index    int     `json:"index"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
	Title    string  `json:"title"`
}

// ValidateSegments checks indices start at 1 and increase by one, that
// segments are contiguous from zero, and that Duration == End-Start.
func ValidateSegments(segs []Segment) error {
	if len(segs) == 0 {
		return fmt.Errorf("no segments")
	}
	prevEnd := 0.0
	for i, s := range segs {
		if s.Index != i+1 {
			return fmt.Errorf("segment %d: index %d out of order", i+1, s.Index)
		}
		if s.Start != prevEnd {
			return fmt.Errorf("segment %d: starts at %.3f, previous ended at %.3f", s.Index, s.Start, prevEnd)
		}
		if s.Duration <= 0 || s.End-s.Start != s.Duration {
			return fmt.Errorf("segment %d: duration %.3f does not match [%.3f, %.3f]", s.Index, s.Duration, s.Start, s.End)
		}
		prevEnd = s.End
	}
	return nil
}

// TotalDuration returns the end of the last segment.
func TotalDuration(segs []Segment) float64 {
	if len(segs) == 0 {
		return 0
	}
	return segs[len(segs)-1].End
}

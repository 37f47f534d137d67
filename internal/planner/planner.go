// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package planner splits a prompt and a target duration into timed segments
// using a static template table. No language model is involved.
package planner

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ManuGH/vidforge/internal/domain"
)

const (
	MinSegments = 5
	MaxSegments = 8

	// TargetSegmentSec is the nominal segment length used to pick a count.
	TargetSegmentSec = 15
)

var (
	ErrEmptyPrompt   = errors.New("prompt is empty")
	ErrDurationShort = errors.New("duration too short for segment count")
)

// SegmentCount returns clamp(round(total/15), 5, 8).
func SegmentCount(totalSec int) int {
	n := int(math.Round(float64(totalSec) / TargetSegmentSec))
	return min(max(n, MinSegments), MaxSegments)
}

// Plan returns contiguous segments covering [0, totalSec]. Every segment but
// the last lasts floor(totalSec/n) seconds; the last absorbs the remainder.
func Plan(prompt, lang string, totalSec int) ([]domain.Segment, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	n := SegmentCount(totalSec)
	if totalSec < n {
		return nil, fmt.Errorf("%w: %ds for %d segments", ErrDurationShort, totalSec, n)
	}

	tpl := templatesFor(lang)
	base := totalSec / n
	segs := make([]domain.Segment, n)
	t := 0
	for i := range n {
		d := base
		if i == n-1 {
			d = totalSec - t
		}
		title, body := tpl[i].render(prompt)
		segs[i] = domain.Segment{
			Index:    i + 1,
			Start:    float64(t),
			End:      float64(t + d),
			Duration: float64(d),
			Title:    title,
			Text:     title + ": " + body,
		}
		t += d
	}
	return segs, nil
}

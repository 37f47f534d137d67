// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package narration produces per-segment voice tracks.
package narration

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/vidforge/internal/domain"
	"github.com/ManuGH/vidforge/internal/log"
	"github.com/ManuGH/vidforge/internal/metrics"
	"github.com/ManuGH/vidforge/internal/progress"
)

// Provider names accepted in requests.
const (
	ProviderNone       = "none"
	ProviderElevenLabs = "elevenlabs"
)

// ErrorKind classifies narration failures.
type ErrorKind string

const (
	KindConfig ErrorKind = "config"
	KindHTTP   ErrorKind = "http"
	KindWrite  ErrorKind = "write"
)

// NarrationError reports that a segment has no voice track. Callers recover
// by rendering the segment silent.
type NarrationError struct {
	Index int
	Kind  ErrorKind
	Err   error
}

func (e *NarrationError) Error() string {
	return fmt.Sprintf("segment %d: narration unavailable (%s): %v", e.Index, e.Kind, e.Err)
}

func (e *NarrationError) Unwrap() error { return e.Err }

// Synthesizer turns one segment's text into an audio file in dir.
type Synthesizer interface {
	Synthesize(ctx context.Context, seg domain.Segment, dir string) (domain.NarrationItem, error)
}

// None never produces audio.
type None struct{}

func (None) Synthesize(_ context.Context, seg domain.Segment, _ string) (domain.NarrationItem, error) {
	return domain.NarrationItem{Index: seg.Index}, nil
}

// SynthesizeAll returns one item per segment. A *NarrationError yields an
// absent item; any other error aborts.
func SynthesizeAll(ctx context.Context, s Synthesizer, segs []domain.Segment, dir string, rep progress.Reporter) ([]domain.NarrationItem, error) {
	logger := log.WithComponentFromContext(ctx, "narration")
	out := make([]domain.NarrationItem, 0, len(segs))
	for i, seg := range segs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rep.Report(ctx, float64(i)/float64(len(segs)), fmt.Sprintf("Synthesizing narration (%d/%d)", i+1, len(segs)))

		item, err := s.Synthesize(ctx, seg, dir)
		if err != nil {
			var narrErr *NarrationError
			if !errors.As(err, &narrErr) || ctx.Err() != nil {
				return nil, err
			}
			logger.Warn().Err(err).Int(log.FieldSegment, seg.Index).Msg("narration unavailable, segment will be silent")
			metrics.IncFallback("narration")
			item = domain.NarrationItem{Index: seg.Index}
		}
		out = append(out, item)
	}
	rep.Report(ctx, 1, fmt.Sprintf("Synthesized narration (%d/%d)", len(segs), len(segs)))
	return out, nil
}

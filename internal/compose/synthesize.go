// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package compose

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/ManuGH/vidforge/internal/domain"
	"github.com/ManuGH/vidforge/internal/log"
	"github.com/ManuGH/vidforge/internal/media/ffmpeg"
	"github.com/ManuGH/vidforge/internal/metrics"
	"github.com/ManuGH/vidforge/internal/telemetry"
)

// Transcoder stage names, used for logs and metrics.
const (
	StageClip   = "clip"
	StageConcat = "concat"
	StageBurn   = "burn"
)

// SynthesisInput is everything needed to render one segment.
type SynthesisInput struct {
	Segment    domain.Segment
	Asset      domain.MediaAsset
	Narration  domain.NarrationItem
	Resolution domain.Resolution
	Output     string
}

// Synthesizer renders one segment into a fixed-format clip.
type Synthesizer struct {
	runner ffmpeg.Runner
	prober ffmpeg.Prober
}

// NewSynthesizer returns a Synthesizer. prober may be nil, in which case
// clip durations are taken from the plan.
func NewSynthesizer(runner ffmpeg.Runner, prober ffmpeg.Prober) *Synthesizer {
	return &Synthesizer{runner: runner, prober: prober}
}

// Synthesize renders in.Asset for in.Segment. Any failure is returned as a
// *ClipSynthesisError and leaves no clip behind.
func (s *Synthesizer) Synthesize(ctx context.Context, in SynthesisInput) (domain.Clip, error) {
	idx := in.Segment.Index
	ctx, span := telemetry.Tracer("vidforge.compose").Start(ctx, "compose.clip")
	span.SetAttributes(telemetry.SegmentAttributes(idx, string(in.Asset.Kind), in.Segment.Duration, in.Narration.Present())...)

	clip, err := s.synthesize(ctx, in)
	telemetry.EndSpan(span, err)
	return clip, err
}

func (s *Synthesizer) synthesize(ctx context.Context, in SynthesisInput) (domain.Clip, error) {
	idx := in.Segment.Index
	fail := func(err error) (domain.Clip, error) {
		_ = os.Remove(in.Output)
		return domain.Clip{}, &ClipSynthesisError{Index: idx, Diagnostic: ffmpeg.Diagnostic(err), Err: err}
	}

	if in.Asset.Path == "" {
		return fail(errors.New("no media asset"))
	}
	if _, err := os.Stat(in.Asset.Path); err != nil {
		return fail(errors.New("media asset unavailable"))
	}

	audio := ""
	if in.Narration.Present() {
		if _, err := os.Stat(in.Narration.AudioPath); err == nil {
			audio = in.Narration.AudioPath
		} else {
			logger := log.WithComponentFromContext(ctx, "compose")
			logger.Warn().
				Int(log.FieldSegment, idx).
				Msg("narration file missing, rendering silent clip")
		}
	}

	args, err := ffmpeg.BuildClipArgs(ffmpeg.ClipSpec{
		Input:    in.Asset.Path,
		Image:    in.Asset.Kind == domain.MediaImage,
		Audio:    audio,
		Duration: in.Segment.Duration,
		Width:    in.Resolution.W,
		Height:   in.Resolution.H,
		Output:   in.Output,
	})
	if err != nil {
		return fail(err)
	}

	start := time.Now()
	if err := s.runner.Run(ctx, StageClip, args); err != nil {
		return fail(err)
	}
	metrics.ObserveStage(StageClip, time.Since(start))

	clip := domain.Clip{
		Index:        idx,
		Path:         in.Output,
		Duration:     in.Segment.Duration,
		HasNarration: audio != "",
	}
	if s.prober != nil {
		if info, err := s.prober.Probe(ctx, in.Output); err == nil && info.Duration > 0 {
			clip.Duration = info.Duration
		} else if err != nil {
			logger := log.WithComponentFromContext(ctx, "compose")
			logger.Debug().
				Err(err).
				Int(log.FieldSegment, idx).
				Msg("clip probe failed, using planned duration")
		}
	}
	return clip, nil
}

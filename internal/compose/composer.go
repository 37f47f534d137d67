// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package compose turns planned segments, their media and narration into one
// subtitled video: per-segment clip synthesis, stream-copy concatenation and
// a final subtitle burn-in.
package compose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ManuGH/vidforge/internal/domain"
	"github.com/ManuGH/vidforge/internal/log"
	"github.com/ManuGH/vidforge/internal/media/ffmpeg"
	"github.com/ManuGH/vidforge/internal/progress"
)

// Input describes one composition run. Assets and narration are matched to
// segments by index.
type Input struct {
	Segments   []domain.Segment
	Assets     []domain.MediaAsset
	Narration  []domain.NarrationItem
	Resolution domain.Resolution

	// WorkDir receives clips and the concatenated intermediate.
	WorkDir string
	// SubtitlePath is optional; empty skips burn-in.
	SubtitlePath string
	Output       string
}

// Result describes a composed video.
type Result struct {
	VideoPath string
	Clips     []domain.Clip
	Duration  float64
	Subtitled bool
}

// Composer runs the composition stages for one job.
type Composer struct {
	synth  *Synthesizer
	concat *Concatenator
	burner *Burner
}

// New returns a Composer driving runner. prober may be nil.
func New(runner ffmpeg.Runner, prober ffmpeg.Prober) *Composer {
	return &Composer{
		synth:  NewSynthesizer(runner, prober),
		concat: NewConcatenator(runner, prober),
		burner: NewBurner(runner),
	}
}

// Compose renders every segment in order, concatenates the clips and burns in
// subtitles. Clip and concatenation failures and cancellation are fatal and
// leave nothing at in.Output. rep receives fractions of the compose phase.
func (c *Composer) Compose(ctx context.Context, in Input, rep progress.Reporter) (*Result, error) {
	if len(in.Segments) == 0 {
		return nil, errors.New("compose: no segments")
	}
	if err := os.MkdirAll(in.WorkDir, 0o750); err != nil {
		return nil, fmt.Errorf("compose: create workspace: %w", err)
	}
	logger := log.WithComponentFromContext(ctx, "compose")

	assets := make(map[int]domain.MediaAsset, len(in.Assets))
	for _, a := range in.Assets {
		assets[a.Index] = a
	}
	narration := make(map[int]domain.NarrationItem, len(in.Narration))
	for _, n := range in.Narration {
		narration[n.Index] = n
	}

	n := len(in.Segments)
	clips := make([]domain.Clip, 0, n)
	for i, seg := range in.Segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rep.Report(ctx, progress.SynthesisFraction(i, n), fmt.Sprintf("Composing segment %d/%d", i+1, n))

		clip, err := c.synth.Synthesize(ctx, SynthesisInput{
			Segment:    seg,
			Asset:      assets[seg.Index],
			Narration:  narration[seg.Index],
			Resolution: in.Resolution,
			Output:     filepath.Join(in.WorkDir, fmt.Sprintf("clip_%d.mp4", seg.Index)),
		})
		if err != nil {
			return nil, err
		}
		clips = append(clips, clip)
		logger.Debug().
			Int(log.FieldSegment, seg.Index).
			Float64(log.FieldDuration, clip.Duration).
			Bool("narrated", clip.HasNarration).
			Msg("clip rendered")
	}
	rep.Report(ctx, progress.SynthesisFraction(n, n), "Concatenating")
	concatPath := filepath.Join(in.WorkDir, "concat.mp4")
	if err := c.concat.Concat(ctx, clips, concatPath); err != nil {
		return nil, err
	}
	finishing := "Burning subtitles"
	if in.SubtitlePath == "" {
		finishing = "Finalizing video"
	}
	rep.Report(ctx, progress.ComposeConcatDone, finishing)

	res := &Result{VideoPath: in.Output, Clips: clips}
	for _, clip := range clips {
		res.Duration += clip.Duration
	}

	if in.SubtitlePath == "" {
		if err := os.Rename(concatPath, in.Output); err != nil {
			return nil, fmt.Errorf("compose: move output: %w", err)
		}
	} else {
		burned, err := c.burner.Burn(ctx, concatPath, in.SubtitlePath, in.Output)
		if err != nil {
			_ = os.Remove(in.Output)
			return nil, fmt.Errorf("compose: %w", err)
		}
		res.Subtitled = burned
	}
	if err := ctx.Err(); err != nil {
		_ = os.Remove(in.Output)
		return nil, err
	}
	rep.Report(ctx, progress.ComposeBurnDone, "Composition complete")
	return res, nil
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package generator runs one generation job end to end: plan, assets,
// narration, subtitles, composition and cleanup.
package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/vidforge/internal/assets"
	"github.com/ManuGH/vidforge/internal/compose"
	"github.com/ManuGH/vidforge/internal/domain"
	"github.com/ManuGH/vidforge/internal/log"
	"github.com/ManuGH/vidforge/internal/metrics"
	"github.com/ManuGH/vidforge/internal/narration"
	"github.com/ManuGH/vidforge/internal/planner"
	"github.com/ManuGH/vidforge/internal/progress"
	"github.com/ManuGH/vidforge/internal/subtitle"
	"github.com/ManuGH/vidforge/internal/telemetry"
)

// PlanFunc splits a prompt into timed segments.
type PlanFunc func(prompt, lang string, totalSec int) ([]domain.Segment, error)

// NarratorFunc selects a narration backend for a requested provider.
type NarratorFunc func(provider string) narration.Synthesizer

// Deps wires a Generator.
type Deps struct {
	OutputDir string
	Assets    assets.Fetcher
	Narrator  NarratorFunc
	Composer  *compose.Composer
	Plan      PlanFunc

	// KeepWorkspace leaves tmp/ in place after a run.
	KeepWorkspace bool
}

// Generator produces the artifacts of a job under OutputDir/<id>/.
type Generator struct {
	outputDir     string
	assets        assets.Fetcher
	narrator      NarratorFunc
	composer      *compose.Composer
	plan          PlanFunc
	keepWorkspace bool
}

func New(d Deps) *Generator {
	if d.Plan == nil {
		d.Plan = planner.Plan
	}
	if d.Narrator == nil {
		d.Narrator = func(string) narration.Synthesizer { return narration.None{} }
	}
	return &Generator{
		outputDir:     d.OutputDir,
		assets:        d.Assets,
		narrator:      d.Narrator,
		composer:      d.Composer,
		plan:          d.Plan,
		keepWorkspace: d.KeepWorkspace,
	}
}

// Paths returns the job directory, workspace, video and subtitle paths.
func (g *Generator) Paths(id string) (jobDir, tmpDir, video, srt string) {
	jobDir = filepath.Join(g.outputDir, id)
	return jobDir, filepath.Join(jobDir, "tmp"), filepath.Join(jobDir, id+".mp4"), filepath.Join(jobDir, id+".srt")
}

// Run executes the job and reports progress to sink. On success the last
// reported value is 100. On failure nothing is left at the video path and the
// error message carries no workspace locations.
func (g *Generator) Run(ctx context.Context, id string, req domain.GenerateRequest, sink progress.Sink) (res *domain.JobResult, err error) {
	ctx, span := telemetry.Tracer("vidforge.generator").Start(ctx, "generator.run")
	span.SetAttributes(telemetry.JobAttributes(id, req.Format, req.DurationSec)...)
	defer func() { telemetry.EndSpan(span, err) }()

	logger := log.WithComponentFromContext(ctx, "generator")
	jobDir, tmpDir, videoPath, srtPath := g.Paths(id)
	defer func() {
		if err == nil {
			return
		}
		_ = os.Remove(videoPath)
		err = hidePaths(err, id, jobDir, g.outputDir)
	}()
	if err := os.MkdirAll(tmpDir, 0o750); err != nil {
		return nil, fmt.Errorf("create job workspace: %w", err)
	}
	defer func() {
		if g.keepWorkspace {
			return
		}
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			logger.Warn().Err(rmErr).Str(log.FieldPath, tmpDir).Msg("workspace cleanup failed")
		}
	}()

	agg := progress.NewAggregator(sink)
	frame := domain.ResolutionFor(req.Format)

	var segs []domain.Segment
	err = g.phase(ctx, agg, progress.PhasePlan, "Generating plan", func(ctx context.Context) error {
		var perr error
		segs, perr = g.plan(req.Prompt, req.Language, req.DurationSec)
		if perr != nil {
			return fmt.Errorf("plan: %w", perr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info().Int("segments", len(segs)).Msg("plan ready")

	var media []domain.MediaAsset
	err = g.phase(ctx, agg, progress.PhaseAssets, "Fetching media", func(ctx context.Context) error {
		var ferr error
		media, ferr = assets.FetchAll(ctx, g.assets, segs, tmpDir, frame, agg.Phase(progress.PhaseAssets))
		return ferr
	})
	if err != nil {
		return nil, err
	}

	var voice []domain.NarrationItem
	narrMsg := "Synthesizing narration"
	if req.TTSProvider == "" || req.TTSProvider == narration.ProviderNone {
		narrMsg = "Skipping narration"
	}
	err = g.phase(ctx, agg, progress.PhaseNarration, narrMsg, func(ctx context.Context) error {
		var nerr error
		voice, nerr = narration.SynthesizeAll(ctx, g.narrator(req.TTSProvider), segs, tmpDir, agg.Phase(progress.PhaseNarration))
		return nerr
	})
	if err != nil {
		return nil, err
	}

	err = g.phase(ctx, agg, progress.PhaseSubtitles, "Building subtitles", func(context.Context) error {
		return subtitle.WriteFile(srtPath, subtitle.Build(segs))
	})
	if err != nil {
		return nil, err
	}

	burn := ""
	if req.Subtitles {
		burn = srtPath
	}
	var composed *compose.Result
	err = g.phase(ctx, agg, progress.PhaseCompose, "Composing video", func(ctx context.Context) error {
		var cerr error
		composed, cerr = g.composer.Compose(ctx, compose.Input{
			Segments:     segs,
			Assets:       media,
			Narration:    voice,
			Resolution:   frame,
			WorkDir:      tmpDir,
			SubtitlePath: burn,
			Output:       videoPath,
		}, agg.Phase(progress.PhaseCompose))
		return cerr
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	agg.Report(ctx, progress.PhaseCleanup, 0, "Cleaning up")
	agg.Done(ctx, "Completed")

	logger.Info().
		Str(log.FieldFinalPath, videoPath).
		Float64(log.FieldDuration, composed.Duration).
		Bool("subtitled", composed.Subtitled).
		Str("job_dir", jobDir).
		Msg("video generated")
	return &domain.JobResult{VideoPath: videoPath, SubtitlePath: srtPath}, nil
}

// phase brackets fn with a start report, a span and a stage timing.
func (g *Generator) phase(ctx context.Context, agg *progress.Aggregator, p progress.Phase, msg string, fn func(context.Context) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, span := telemetry.Tracer("vidforge.generator").Start(ctx, "generator."+string(p))
	defer func() { telemetry.EndSpan(span, err) }()

	agg.Report(ctx, p, 0, msg)
	start := time.Now()
	err = fn(ctx)
	metrics.ObserveStage(string(p), time.Since(start))
	if err != nil {
		return err
	}
	agg.Report(ctx, p, 1, msg)
	return nil
}

// IsCanceled reports whether err stems from cancellation or a deadline.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// publicError is err with workspace locations removed from its message.
type publicError struct {
	msg string
	err error
}

func (e *publicError) Error() string { return e.msg }

func (e *publicError) Unwrap() error { return e.err }

// hidePaths rewrites locations under jobDir relative to it and replaces the
// remaining output directory references, keeping err in the chain.
func hidePaths(err error, id, jobDir, outputDir string) error {
	sep := string(filepath.Separator)
	pairs := []string{jobDir + sep, "", jobDir, id}
	if outputDir != "" && outputDir != "." {
		pairs = append(pairs, outputDir+sep, "", outputDir, "<output>")
	}
	r := strings.NewReplacer(pairs...)
	msg := err.Error()
	if clean := r.Replace(msg); clean != msg {
		return &publicError{msg: clean, err: err}
	}
	return err
}

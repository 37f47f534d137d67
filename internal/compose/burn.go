// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package compose

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/vidforge/internal/log"
	"github.com/ManuGH/vidforge/internal/media/ffmpeg"
	"github.com/ManuGH/vidforge/internal/metrics"
	"github.com/ManuGH/vidforge/internal/subtitle"
	"github.com/ManuGH/vidforge/internal/telemetry"
)

// Burner renders captions into the final video.
type Burner struct {
	runner ffmpeg.Runner
}

// NewBurner returns a Burner driving runner.
func NewBurner(runner ffmpeg.Runner) *Burner {
	return &Burner{runner: runner}
}

// Burn writes in with srt captions rendered into the frames to out. A missing
// or malformed track, or a failed render, falls back to copying in to out
// unchanged; only a failure of that copy is returned. out is replaced
// atomically in both cases. Cancellation of ctx is returned as is and leaves
// out untouched.
func (b *Burner) Burn(ctx context.Context, in, srt, out string) (burned bool, err error) {
	ctx, span := telemetry.Tracer("vidforge.compose").Start(ctx, "compose.burn")
	defer func() { telemetry.EndSpan(span, err) }()

	logger := log.WithComponentFromContext(ctx, "compose")

	burnErr := b.burn(ctx, in, srt, out)
	if burnErr == nil {
		return true, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, fmt.Errorf("burn-in interrupted: %w", ctxErr)
	}

	metrics.IncFallback("subtitles")
	logger.Warn().
		Err(burnErr).
		Str(log.FieldStage, StageBurn).
		Msg("subtitle burn-in failed, passing video through without captions")

	if err := copyAtomic(in, out); err != nil {
		return false, fmt.Errorf("pass-through copy: %w", err)
	}
	return false, nil
}

func (b *Burner) burn(ctx context.Context, in, srt, out string) error {
	if srt == "" {
		return &SubtitleBurnError{Diagnostic: "no subtitle track"}
	}
	if _, err := subtitle.ParseFile(srt); err != nil {
		return &SubtitleBurnError{Diagnostic: err.Error(), Err: err}
	}

	pending, err := renameio.NewPendingFile(out)
	if err != nil {
		return &SubtitleBurnError{Diagnostic: "create pending output", Err: err}
	}
	defer func() { _ = pending.Cleanup() }()

	args, err := ffmpeg.BuildBurnArgs(in, srt, pending.Name())
	if err != nil {
		return &SubtitleBurnError{Diagnostic: err.Error(), Err: err}
	}
	start := time.Now()
	if err := b.runner.Run(ctx, StageBurn, args); err != nil {
		return &SubtitleBurnError{Diagnostic: ffmpeg.Diagnostic(err), Err: err}
	}
	metrics.ObserveStage(StageBurn, time.Since(start))

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return &SubtitleBurnError{Diagnostic: "replace output", Err: err}
	}
	return nil
}

// copyAtomic copies src to dst through a pending file so dst is never partial.
func copyAtomic(src, dst string) error {
	// #nosec G304 -- src is a job workspace file
	f, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	pending, err := renameio.NewPendingFile(dst)
	if err != nil {
		return err
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := io.Copy(pending, f); err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package generator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vidforge/internal/assets"
	"github.com/ManuGH/vidforge/internal/compose"
	"github.com/ManuGH/vidforge/internal/domain"
	"github.com/ManuGH/vidforge/internal/media/ffmpeg"
	"github.com/ManuGH/vidforge/internal/narration"
	"github.com/ManuGH/vidforge/internal/planner"
	"github.com/ManuGH/vidforge/internal/progress"
	"github.com/ManuGH/vidforge/internal/subtitle"
)

type fakeRunner struct {
	mu     sync.Mutex
	stages []string
	fail   string
}

func (f *fakeRunner) Run(_ context.Context, stage string, args []string) error {
	f.mu.Lock()
	f.stages = append(f.stages, stage)
	f.mu.Unlock()
	if stage == f.fail {
		return &ffmpeg.ExitError{Stage: stage, ExitCode: 1, Stderr: []string{"Conversion failed!"}}
	}
	return os.WriteFile(args[len(args)-1], []byte(stage), 0o600)
}

// stockFetcher serves videos for odd segments and has nothing for even ones.
type stockFetcher struct{}

func (stockFetcher) Fetch(_ context.Context, seg domain.Segment, dir string) (domain.MediaAsset, error) {
	if seg.Index%2 == 0 {
		return domain.MediaAsset{}, &assets.AssetError{Index: seg.Index, Kind: assets.KindNotFound}
	}
	path := filepath.Join(dir, fmt.Sprintf("seg%d.mp4", seg.Index))
	if err := os.WriteFile(path, []byte("video"), 0o600); err != nil {
		return domain.MediaAsset{}, err
	}
	return domain.MediaAsset{Index: seg.Index, Kind: domain.MediaVideo, Path: path}, nil
}

func newGenerator(t *testing.T, runner ffmpeg.Runner) (*Generator, string) {
	t.Helper()
	out := t.TempDir()
	return New(Deps{
		OutputDir: out,
		Assets:    stockFetcher{},
		Composer:  compose.New(runner, nil),
	}), out
}

func request() domain.GenerateRequest {
	return domain.GenerateRequest{
		Prompt:      "urban beekeeping",
		DurationSec: 90,
		Format:      domain.FormatShort,
		Language:    "en",
		TTSProvider: narration.ProviderNone,
		Subtitles:   true,
	}
}

func TestRun_Success(t *testing.T) {
	runner := &fakeRunner{}
	g, out := newGenerator(t, runner)
	rec := &progress.Recorder{}

	res, err := g.Run(context.Background(), "job1", request(), rec)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "job1", "job1.mp4"), res.VideoPath)
	assert.Equal(t, filepath.Join(out, "job1", "job1.srt"), res.SubtitlePath)
	assert.FileExists(t, res.VideoPath)
	assert.NoDirExists(t, filepath.Join(out, "job1", "tmp"))

	cues, err := subtitle.ParseFile(res.SubtitlePath)
	require.NoError(t, err)
	assert.Len(t, cues, 6)

	clips := 0
	for _, s := range runner.stages {
		if s == compose.StageClip {
			clips++
		}
	}
	assert.Equal(t, 6, clips)
	assert.Equal(t, compose.StageBurn, runner.stages[len(runner.stages)-1])

	pcts := rec.Percents()
	require.NotEmpty(t, pcts)
	assert.True(t, sort.IntsAreSorted(pcts), "progress must be non-decreasing: %v", pcts)
	assert.Equal(t, 0, pcts[0])
	assert.Equal(t, 100, pcts[len(pcts)-1])
}

func TestRun_SubtitlesDisabledSkipsBurn(t *testing.T) {
	runner := &fakeRunner{}
	g, _ := newGenerator(t, runner)
	req := request()
	req.Subtitles = false

	res, err := g.Run(context.Background(), "job2", req, nil)
	require.NoError(t, err)
	assert.NotContains(t, runner.stages, compose.StageBurn)
	assert.FileExists(t, res.SubtitlePath, "subtitle file is still produced for download")
}

func TestRun_ConcatFailure(t *testing.T) {
	runner := &fakeRunner{fail: compose.StageConcat}
	g, out := newGenerator(t, runner)
	rec := &progress.Recorder{}

	_, err := g.Run(context.Background(), "job3", request(), rec)
	var concatErr *compose.ConcatenationError
	require.ErrorAs(t, err, &concatErr)
	assert.Contains(t, err.Error(), "Conversion failed!")

	assert.NoFileExists(t, filepath.Join(out, "job3", "job3.mp4"))
	pcts := rec.Percents()
	assert.Less(t, pcts[len(pcts)-1], 100)
}

func TestRun_PlanError(t *testing.T) {
	g, _ := newGenerator(t, &fakeRunner{})
	req := request()
	req.Prompt = " "
	_, err := g.Run(context.Background(), "job4", req, nil)
	assert.ErrorIs(t, err, planner.ErrEmptyPrompt)
	assert.Contains(t, err.Error(), "plan:")
}

func TestRun_Canceled(t *testing.T) {
	g, _ := newGenerator(t, &fakeRunner{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Run(ctx, "job5", request(), nil)
	assert.True(t, IsCanceled(err))
}

// failingClipRunner fails the first clip with a diagnostic naming its output.
type failingClipRunner struct{}

func (failingClipRunner) Run(_ context.Context, stage string, args []string) error {
	out := args[len(args)-1]
	if stage == compose.StageClip {
		return &ffmpeg.ExitError{Stage: stage, ExitCode: 1, Stderr: []string{out + ": Permission denied"}}
	}
	return os.WriteFile(out, []byte(stage), 0o600)
}

func TestRun_ErrorOmitsWorkspacePaths(t *testing.T) {
	g, out := newGenerator(t, failingClipRunner{})

	_, err := g.Run(context.Background(), "job6", request(), nil)
	var clipErr *compose.ClipSynthesisError
	require.ErrorAs(t, err, &clipErr)
	assert.Equal(t, 1, clipErr.Index)
	assert.Contains(t, err.Error(), "segment 1: clip synthesis failed")
	assert.Contains(t, err.Error(), filepath.Join("tmp", "clip_1.mp4"))
	assert.NotContains(t, err.Error(), out)
	assert.NoFileExists(t, filepath.Join(out, "job6", "job6.mp4"))
}

func TestRun_WorkspaceErrorOmitsOutputDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	g := New(Deps{OutputDir: file, Assets: stockFetcher{}, Composer: compose.New(&fakeRunner{}, nil)})

	_, err := g.Run(context.Background(), "job7", request(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create job workspace")
	assert.NotContains(t, err.Error(), file)
}

// cancelOnStage cancels the job when stage starts and fails like a
// terminated transcoder.
type cancelOnStage struct {
	fakeRunner
	stage  string
	cancel context.CancelFunc
}

func (r *cancelOnStage) Run(ctx context.Context, stage string, args []string) error {
	if stage != r.stage {
		return r.fakeRunner.Run(ctx, stage, args)
	}
	r.cancel()
	return &ffmpeg.ExitError{Stage: stage, ExitCode: -1, Err: ctx.Err()}
}

func TestRun_CanceledDuringBurnFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &cancelOnStage{stage: compose.StageBurn, cancel: cancel}
	g, out := newGenerator(t, runner)
	rec := &progress.Recorder{}

	res, err := g.Run(ctx, "job8", request(), rec)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsCanceled(err))
	assert.NoFileExists(t, filepath.Join(out, "job8", "job8.mp4"))
	pcts := rec.Percents()
	assert.Less(t, pcts[len(pcts)-1], 100)
}

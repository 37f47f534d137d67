// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ManuGH/vidforge/internal/api"
	"github.com/ManuGH/vidforge/internal/assets"
	"github.com/ManuGH/vidforge/internal/cache"
	"github.com/ManuGH/vidforge/internal/compose"
	"github.com/ManuGH/vidforge/internal/config"
	"github.com/ManuGH/vidforge/internal/generator"
	"github.com/ManuGH/vidforge/internal/health"
	"github.com/ManuGH/vidforge/internal/jobs"
	"github.com/ManuGH/vidforge/internal/log"
	"github.com/ManuGH/vidforge/internal/media/ffmpeg"
	"github.com/ManuGH/vidforge/internal/narration"
	"github.com/ManuGH/vidforge/internal/resilience"
)

// daemon holds the long-lived components and their shutdown order.
type daemon struct {
	handler http.Handler
	manager *jobs.Manager
	archive *jobs.SQLiteArchive
	cache   cache.Cache
}

func newDaemon(ctx context.Context, holder *config.Holder) (*daemon, error) {
	cfg := holder.Get()

	c := cache.Open(ctx, cfg.Assets.RedisAddr, log.WithComponent("cache"))
	gen := newGenerator(cfg, c)

	archive, err := jobs.OpenArchive(cfg.Jobs.ArchivePath)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("open job archive: %w", err)
	}

	manager := jobs.NewManager(gen, jobs.Options{
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
		Timeout:       cfg.Jobs.Timeout,
		Archive:       archive,
	})

	hm := health.NewManager(cfg.Version)
	registerCheckers(hm, cfg, c, archive)

	srv := api.New(api.Config{
		RateLimitRPM:   cfg.API.RateLimitRPM,
		TracingService: tracingService(cfg),
	}, api.Deps{
		Jobs:           manager,
		Health:         hm,
		MaxDurationSec: holder.MaxDurationSec,
	})

	return &daemon{
		handler: srv.Handler(),
		manager: manager,
		archive: archive,
		cache:   c,
	}, nil
}

func newGenerator(cfg config.AppConfig, c cache.Cache) *generator.Generator {
	exec := ffmpeg.NewExecutor(cfg.FFmpeg.Bin, cfg.FFmpeg.Timeout, cfg.FFmpeg.KillGrace)
	exec.StallTimeout = cfg.FFmpeg.StallTimeout
	prober := ffmpeg.NewProber(cfg.FFmpeg.FFprobeBin)

	pexels := assets.NewPexelsClient(assets.Options{
		APIKey:    cfg.Assets.PexelsAPIKey,
		BaseURL:   cfg.Assets.BaseURL,
		RateLimit: rate.Limit(cfg.Assets.RateLimit),
		CacheTTL:  cfg.Assets.CacheTTL,
		Cache:     c,
		Breaker:   resilience.New("pexels", 5, 30*time.Second),
	})

	// Narrator builds a client per job; the breaker outlives them.
	voice := narration.ElevenLabsOptions{
		APIKey:  cfg.Narration.ElevenLabsAPIKey,
		VoiceID: cfg.Narration.VoiceID,
		BaseURL: cfg.Narration.BaseURL,
		Breaker: resilience.New("elevenlabs", 5, 30*time.Second),
	}

	return generator.New(generator.Deps{
		OutputDir: cfg.OutputDir,
		Assets:    pexels,
		Narrator: func(provider string) narration.Synthesizer {
			return narration.New(provider, voice)
		},
		Composer:      compose.New(exec, prober),
		KeepWorkspace: cfg.KeepWorkspace,
	})
}

func registerCheckers(hm *health.Manager, cfg config.AppConfig, c cache.Cache, archive *jobs.SQLiteArchive) {
	hm.RegisterChecker(health.NewBinaryChecker("ffmpeg", cfg.FFmpeg.Bin))
	hm.RegisterChecker(health.NewBinaryChecker("ffprobe", cfg.FFmpeg.FFprobeBin))
	hm.RegisterChecker(health.NewDirChecker("output_dir", cfg.OutputDir))
	hm.RegisterChecker(health.NewFuncChecker("job_archive", health.StatusDegraded, archive.Ping))
	if rc, ok := c.(*cache.RedisCache); ok {
		hm.RegisterChecker(health.NewFuncChecker("redis", health.StatusDegraded, rc.HealthCheck))
	}
}

func tracingService(cfg config.AppConfig) string {
	if !cfg.Telemetry.Enabled {
		return ""
	}
	return "vidforge-api"
}

// close stops accepting jobs, waits for running ones, then releases storage.
func (d *daemon) close(ctx context.Context) error {
	var errs []error
	if err := d.manager.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("job manager shutdown: %w", err))
	}
	if err := d.archive.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close job archive: %w", err))
	}
	if err := d.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache: %w", err))
	}
	return errors.Join(errs...)
}

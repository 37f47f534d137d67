// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/vidforge/internal/validate"
)

// MinDurationSec is the shortest video the planner can split.
const MinDurationSec = 5

// Validate checks every field and reports all failures at once.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.ListenAddr("listen_addr", cfg.ListenAddr)
	v.Directory("output_dir", cfg.OutputDir, false)
	v.Range("max_duration_sec", cfg.MaxDurationSec, MinDurationSec, 3600)
	v.LogLevel("log_level", cfg.LogLevel)

	v.NotEmpty("ffmpeg.bin", cfg.FFmpeg.Bin)
	v.NotEmpty("ffmpeg.ffprobe_bin", cfg.FFmpeg.FFprobeBin)
	v.Duration("ffmpeg.timeout", cfg.FFmpeg.Timeout, 0, 0)
	v.Duration("ffmpeg.kill_grace", cfg.FFmpeg.KillGrace, 0, time.Minute)
	v.Duration("ffmpeg.stall_timeout", cfg.FFmpeg.StallTimeout, 0, time.Hour)

	v.Range("jobs.max_concurrent", cfg.Jobs.MaxConcurrent, 0, 64)
	v.Duration("jobs.timeout", cfg.Jobs.Timeout, 0, 0)

	v.URL("assets.base_url", cfg.Assets.BaseURL, []string{"http", "https"})
	v.RangeFloat("assets.rate_limit", cfg.Assets.RateLimit, 0, 100)
	v.Duration("assets.cache_ttl", cfg.Assets.CacheTTL, 0, 7*24*time.Hour)

	v.URL("narration.base_url", cfg.Narration.BaseURL, []string{"http", "https"})

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
	}
	v.RangeFloat("telemetry.sampling_rate", cfg.Telemetry.SamplingRate, 0, 1)

	v.NonNegative("api.rate_limit_rpm", cfg.API.RateLimitRPM)

	return v.Err()
}

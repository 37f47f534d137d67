// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// envReader resolves environment variables and records every key it touched.
// Values are only logged for non-sensitive keys.
type envReader struct {
	logger   zerolog.Logger
	lookup   func(string) (string, bool)
	consumed map[string]struct{}
}

func isSensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "key") || strings.Contains(k, "token") || strings.Contains(k, "password")
}

// raw returns the first non-empty value among keys; the first key wins.
func (e *envReader) raw(keys ...string) (string, string, bool) {
	for _, key := range keys {
		e.consumed[key] = struct{}{}
		if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
			return key, strings.TrimSpace(v), true
		}
	}
	return "", "", false
}

func (e *envReader) used(key, value string) {
	ev := e.logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitive(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Str("value", value)
	}
	ev.Msg("using environment variable")
}

func (e *envReader) invalid(key, value string, err error) {
	e.logger.Warn().
		Str("key", key).
		Str("value", value).
		Err(err).
		Msg("ignoring invalid environment variable")
}

func (e *envReader) String(dst *string, keys ...string) {
	if key, v, ok := e.raw(keys...); ok {
		e.used(key, v)
		*dst = v
	}
}

func (e *envReader) Int(dst *int, keys ...string) {
	key, v, ok := e.raw(keys...)
	if !ok {
		return
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.invalid(key, v, err)
		return
	}
	e.used(key, v)
	*dst = i
}

func (e *envReader) Float(dst *float64, keys ...string) {
	key, v, ok := e.raw(keys...)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.invalid(key, v, err)
		return
	}
	e.used(key, v)
	*dst = f
}

func (e *envReader) Bool(dst *bool, keys ...string) {
	key, v, ok := e.raw(keys...)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.invalid(key, v, err)
		return
	}
	e.used(key, v)
	*dst = b
}

// Duration accepts Go duration syntax or a bare number of seconds.
func (e *envReader) Duration(dst *time.Duration, keys ...string) {
	key, v, ok := e.raw(keys...)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		secs, serr := strconv.Atoi(v)
		if serr != nil {
			e.invalid(key, v, err)
			return
		}
		d = time.Duration(secs) * time.Second
	}
	e.used(key, v)
	*dst = d
}

// mergeEnv overlays environment values on cfg. VIDFORGE_* names win over the
// legacy unprefixed names.
func (e *envReader) mergeEnv(cfg *AppConfig) {
	e.String(&cfg.ListenAddr, "VIDFORGE_LISTEN_ADDR")
	if _, _, set := e.raw("VIDFORGE_LISTEN_ADDR"); !set {
		var port int
		e.Int(&port, "PORT")
		if port > 0 {
			cfg.ListenAddr = ":" + strconv.Itoa(port)
		}
	}
	e.String(&cfg.OutputDir, "VIDFORGE_OUTPUT_DIR", "OUTPUT_DIR")
	e.Int(&cfg.MaxDurationSec, "VIDFORGE_MAX_DURATION_SEC", "MAX_DURATION_SEC")
	e.String(&cfg.LogLevel, "VIDFORGE_LOG_LEVEL", "LOG_LEVEL")
	e.Bool(&cfg.KeepWorkspace, "VIDFORGE_KEEP_WORKSPACE")

	e.String(&cfg.FFmpeg.Bin, "VIDFORGE_FFMPEG_BIN")
	e.String(&cfg.FFmpeg.FFprobeBin, "VIDFORGE_FFPROBE_BIN")
	e.Duration(&cfg.FFmpeg.Timeout, "VIDFORGE_FFMPEG_TIMEOUT")
	e.Duration(&cfg.FFmpeg.KillGrace, "VIDFORGE_FFMPEG_KILL_GRACE")
	e.Duration(&cfg.FFmpeg.StallTimeout, "VIDFORGE_FFMPEG_STALL_TIMEOUT")

	e.Int(&cfg.Jobs.MaxConcurrent, "VIDFORGE_JOBS_MAX_CONCURRENT")
	e.Duration(&cfg.Jobs.Timeout, "VIDFORGE_JOBS_TIMEOUT")
	e.String(&cfg.Jobs.ArchivePath, "VIDFORGE_JOBS_ARCHIVE_PATH")

	e.String(&cfg.Assets.PexelsAPIKey, "VIDFORGE_PEXELS_API_KEY", "PEXELS_API_KEY")
	e.String(&cfg.Assets.BaseURL, "VIDFORGE_PEXELS_BASE_URL")
	e.Float(&cfg.Assets.RateLimit, "VIDFORGE_ASSETS_RATE_LIMIT")
	e.Duration(&cfg.Assets.CacheTTL, "VIDFORGE_ASSETS_CACHE_TTL")
	e.String(&cfg.Assets.RedisAddr, "VIDFORGE_REDIS_ADDR")

	e.String(&cfg.Narration.ElevenLabsAPIKey, "VIDFORGE_ELEVENLABS_API_KEY", "ELEVENLABS_API_KEY")
	e.String(&cfg.Narration.VoiceID, "VIDFORGE_ELEVENLABS_VOICE_ID", "ELEVENLABS_VOICE_ID")
	e.String(&cfg.Narration.BaseURL, "VIDFORGE_ELEVENLABS_BASE_URL")

	e.Bool(&cfg.Telemetry.Enabled, "VIDFORGE_TELEMETRY_ENABLED")
	e.String(&cfg.Telemetry.Exporter, "VIDFORGE_TELEMETRY_EXPORTER")
	e.String(&cfg.Telemetry.Endpoint, "VIDFORGE_TELEMETRY_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	e.Float(&cfg.Telemetry.SamplingRate, "VIDFORGE_TELEMETRY_SAMPLING_RATE")

	e.Int(&cfg.API.RateLimitRPM, "VIDFORGE_API_RATE_LIMIT_RPM")
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/vidforge/internal/validate"
)

func mapEnv(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func newTestLoader(t *testing.T, yamlBody string, env map[string]string) (*Loader, string) {
	t.Helper()
	dir := t.TempDir()
	path := ""
	if yamlBody != "" {
		path = filepath.Join(dir, "vidforge.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))
	}
	if env == nil {
		env = map[string]string{}
	}
	if _, ok := env["VIDFORGE_OUTPUT_DIR"]; !ok {
		env["VIDFORGE_OUTPUT_DIR"] = filepath.Join(dir, "outputs")
	}
	l := NewLoader(path, "v-test")
	l.lookupEnv = mapEnv(env)
	return l, path
}

func TestLoad_Defaults(t *testing.T) {
	l, _ := newTestLoader(t, "", nil)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.ListenAddr)
	assert.Equal(t, 300, cfg.MaxDurationSec)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "ffmpeg", cfg.FFmpeg.Bin)
	assert.Equal(t, 10*time.Minute, cfg.FFmpeg.Timeout)
	assert.Equal(t, 2, cfg.Jobs.MaxConcurrent)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "jobs.db"), cfg.Jobs.ArchivePath)
	assert.Equal(t, "https://api.pexels.com", cfg.Assets.BaseURL)
	assert.Equal(t, "v-test", cfg.Version)
	assert.True(t, filepath.IsAbs(cfg.OutputDir))
	assert.DirExists(t, cfg.OutputDir)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	l, _ := newTestLoader(t, `
listen_addr: "127.0.0.1:8080"
max_duration_sec: 120
log_level: DEBUG
ffmpeg:
  timeout: 2m
jobs:
  max_concurrent: 4
  timeout: 30m
assets:
  rate_limit: 1.5
  redis_addr: "localhost:6379"
telemetry:
  enabled: true
  exporter: http
  endpoint: "collector:4318"
  sampling_rate: 0.25
`, nil)

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, 120, cfg.MaxDurationSec)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2*time.Minute, cfg.FFmpeg.Timeout)
	assert.Equal(t, "ffprobe", cfg.FFmpeg.FFprobeBin, "keys absent from the file keep defaults")
	assert.Equal(t, 4, cfg.Jobs.MaxConcurrent)
	assert.Equal(t, 30*time.Minute, cfg.Jobs.Timeout)
	assert.InDelta(t, 1.5, cfg.Assets.RateLimit, 1e-9)
	assert.Equal(t, "localhost:6379", cfg.Assets.RedisAddr)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "http", cfg.Telemetry.Exporter)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	l, _ := newTestLoader(t, "max_duration_sec: 120\n", map[string]string{
		"VIDFORGE_MAX_DURATION_SEC":    "90",
		"VIDFORGE_JOBS_TIMEOUT":        "600",
		"VIDFORGE_FFMPEG_KILL_GRACE":   "2s",
		"VIDFORGE_TELEMETRY_ENABLED":   "true",
		"VIDFORGE_JOBS_MAX_CONCURRENT": "not-a-number",
	})
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.MaxDurationSec)
	assert.Equal(t, 10*time.Minute, cfg.Jobs.Timeout, "bare seconds")
	assert.Equal(t, 2*time.Second, cfg.FFmpeg.KillGrace)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 2, cfg.Jobs.MaxConcurrent, "invalid values are ignored")
	assert.Contains(t, l.EnvKeys(), "VIDFORGE_MAX_DURATION_SEC")
}

func TestLoad_LegacyEnvNames(t *testing.T) {
	out := filepath.Join(t.TempDir(), "legacy-out")
	l, _ := newTestLoader(t, "", map[string]string{
		"VIDFORGE_OUTPUT_DIR": "",
		"OUTPUT_DIR":          out,
		"PEXELS_API_KEY":      "pexels-secret",
		"ELEVENLABS_API_KEY":  "eleven-secret",
		"ELEVENLABS_VOICE_ID": "voice-1",
		"MAX_DURATION_SEC":    "60",
		"PORT":                "8081",
	})
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, out, cfg.OutputDir)
	assert.Equal(t, "pexels-secret", cfg.Assets.PexelsAPIKey)
	assert.Equal(t, "eleven-secret", cfg.Narration.ElevenLabsAPIKey)
	assert.Equal(t, "voice-1", cfg.Narration.VoiceID)
	assert.Equal(t, 60, cfg.MaxDurationSec)
	assert.Equal(t, ":8081", cfg.ListenAddr)
}

func TestLoad_PrefixedEnvWinsOverLegacy(t *testing.T) {
	l, _ := newTestLoader(t, "", map[string]string{
		"VIDFORGE_PEXELS_API_KEY": "new",
		"PEXELS_API_KEY":          "old",
		"VIDFORGE_LISTEN_ADDR":    ":9000",
		"PORT":                    "8081",
	})
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "new", cfg.Assets.PexelsAPIKey)
	assert.Equal(t, ":9000", cfg.ListenAddr)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	l, _ := newTestLoader(t, "listen_addr: \":3000\"\nvideo_codec: h265\n", nil)
	_, err := l.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vidforge.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))
	l := NewLoader(path, "")
	l.lookupEnv = mapEnv(nil)
	_, err := l.Load()
	assert.ErrorContains(t, err, "only YAML supported")
}

func TestLoad_ValidationAggregates(t *testing.T) {
	l, _ := newTestLoader(t, `
listen_addr: "nope"
max_duration_sec: 1
log_level: loud
jobs:
  max_concurrent: -1
telemetry:
  sampling_rate: 2
`, nil)
	_, err := l.Load()
	require.Error(t, err)

	var ve validate.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.ElementsMatch(t,
		[]string{"listen_addr", "max_duration_sec", "log_level", "jobs.max_concurrent", "telemetry.sampling_rate"},
		ve.Fields())
}

func TestHolder_ReloadAppliesRuntimeKeysOnly(t *testing.T) {
	l, path := newTestLoader(t, "max_duration_sec: 120\nlisten_addr: \":3000\"\n", nil)
	initial, err := l.Load()
	require.NoError(t, err)

	h := NewHolder(initial, l)
	updates := make(chan AppConfig, 1)
	h.RegisterListener(updates)

	require.NoError(t, os.WriteFile(path, []byte("max_duration_sec: 45\nlisten_addr: \":4000\"\n"), 0o600))
	require.NoError(t, h.Reload())

	got := h.Get()
	assert.Equal(t, 45, got.MaxDurationSec)
	assert.Equal(t, 45, h.MaxDurationSec())
	assert.Equal(t, ":3000", got.ListenAddr, "listen address needs a restart")

	select {
	case cfg := <-updates:
		assert.Equal(t, 45, cfg.MaxDurationSec)
	default:
		t.Fatal("listener not notified")
	}
}

func TestHolder_InvalidReloadKeepsConfig(t *testing.T) {
	l, path := newTestLoader(t, "max_duration_sec: 120\n", nil)
	initial, err := l.Load()
	require.NoError(t, err)
	h := NewHolder(initial, l)

	require.NoError(t, os.WriteFile(path, []byte("max_duration_sec: 0\n"), 0o600))
	assert.Error(t, h.Reload())
	assert.Equal(t, 120, h.Get().MaxDurationSec)
}

func TestHolder_WatchReloadsOnWrite(t *testing.T) {
	l, path := newTestLoader(t, "max_duration_sec: 120\n", nil)
	initial, err := l.Load()
	require.NoError(t, err)
	h := NewHolder(initial, l)
	h.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()

	// the watcher registers asynchronously; keep writing until it sees one
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("max_duration_sec: 75\n"), 0o600)
		return h.MaxDurationSec() == 75
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestHolder_WatchWithoutFile(t *testing.T) {
	l, _ := newTestLoader(t, "", nil)
	cfg, err := l.Load()
	require.NoError(t, err)
	h := NewHolder(cfg, l)
	assert.NoError(t, h.Watch(context.Background()))
}

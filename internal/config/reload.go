// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vidforge/internal/log"
)

// DefaultDebounce coalesces bursts of editor writes into one reload.
const DefaultDebounce = 500 * time.Millisecond

// Holder holds the live configuration. Reload only applies keys that are safe
// to change at runtime; everything else needs a restart.
type Holder struct {
	mu      sync.RWMutex
	current AppConfig
	loader  *Loader
	logger  zerolog.Logger

	debounce time.Duration

	listenersMu sync.RWMutex
	listeners   []chan<- AppConfig
}

func NewHolder(initial AppConfig, loader *Loader) *Holder {
	return &Holder{
		current:  initial,
		loader:   loader,
		logger:   log.WithComponent("config"),
		debounce: DefaultDebounce,
	}
}

// Get returns the current configuration.
func (h *Holder) Get() AppConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// MaxDurationSec is read on every request.
func (h *Holder) MaxDurationSec() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.MaxDurationSec
}

// Reload re-reads the configuration. An invalid file keeps the old config.
func (h *Holder) Reload() error {
	h.logger.Info().Str("event", "config.reload_start").Msg("reloading configuration")

	next, err := h.loader.Load()
	if err != nil {
		h.logger.Error().Err(err).Str("event", "config.reload_failed").Msg("failed to load new configuration")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	old := h.current
	applied := old
	applied.MaxDurationSec = next.MaxDurationSec
	applied.LogLevel = next.LogLevel
	h.current = applied
	h.mu.Unlock()

	if applied.LogLevel != old.LogLevel {
		if err := log.SetLevel(applied.LogLevel); err != nil {
			h.logger.Warn().Err(err).Str("level", applied.LogLevel).Msg("log level not applied")
		}
	}
	h.logChanges(old, next)
	h.notify(applied)

	h.logger.Info().Str("event", "config.reload_success").Msg("configuration reloaded successfully")
	return nil
}

func (h *Holder) logChanges(old, next AppConfig) {
	if old.MaxDurationSec != next.MaxDurationSec {
		h.logger.Info().
			Str("key", "max_duration_sec").
			Int("old", old.MaxDurationSec).
			Int("new", next.MaxDurationSec).
			Msg("config changed")
	}
	if old.LogLevel != next.LogLevel {
		h.logger.Info().
			Str("key", "log_level").
			Str("old", old.LogLevel).
			Str("new", next.LogLevel).
			Msg("config changed")
	}
	restart := map[string]bool{
		"listen_addr": old.ListenAddr != next.ListenAddr,
		"output_dir":  old.OutputDir != next.OutputDir,
		"ffmpeg":      old.FFmpeg != next.FFmpeg,
		"jobs":        old.Jobs != next.Jobs,
		"assets":      old.Assets != next.Assets,
		"narration":   old.Narration != next.Narration,
		"telemetry":   old.Telemetry != next.Telemetry,
		"api":         old.API != next.API,
	}
	for key, changed := range restart {
		if changed {
			h.logger.Warn().Str("key", key).Msg("config change requires restart, ignored")
		}
	}
}

// RegisterListener receives the applied config after every successful reload.
// Sends never block; a full channel misses the update.
func (h *Holder) RegisterListener(ch chan<- AppConfig) {
	h.listenersMu.Lock()
	defer h.listenersMu.Unlock()
	h.listeners = append(h.listeners, ch)
}

func (h *Holder) notify(cfg AppConfig) {
	h.listenersMu.RLock()
	defer h.listenersMu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- cfg:
		default:
			h.logger.Warn().Msg("config listener channel full, skipping notification")
		}
	}
}

// Watch reloads on changes to the config file until ctx is done. It returns
// nil immediately when configuration comes from the environment only.
func (h *Holder) Watch(ctx context.Context) error {
	path := h.loader.Path()
	if path == "" {
		h.logger.Info().Str("event", "config.watcher_disabled").Msg("config file watcher disabled (env-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Editors replace files by rename; watching the directory survives that.
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.logger.Info().Str("event", "config.watcher_started").Str("path", path).Msg("watching config file for changes")

	target := filepath.Clean(path)
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info().Str("event", "config.watcher_stopped").Msg("config watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			h.logger.Debug().Str("op", event.Op.String()).Msg("config file changed")
			if timer == nil {
				timer = time.NewTimer(h.debounce)
			} else {
				timer.Reset(h.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := h.Reload(); err != nil {
				h.logger.Error().Err(err).Str("event", "config.auto_reload_failed").Msg("automatic config reload failed")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Error().Err(err).Str("event", "config.watcher_error").Msg("config watcher error")
		}
	}
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ManuGH/vidforge/internal/config"
	"github.com/ManuGH/vidforge/internal/log"
)

// PerformStartupChecks validates the environment before the server starts.
// Missing provider keys only warn; the pipeline falls back without them.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if err := checkWritableDir(cfg.OutputDir); err != nil {
		return fmt.Errorf("output directory check failed: %w", err)
	}
	logger.Info().Str("path", cfg.OutputDir).Msg("output directory is writable")

	for _, bin := range []string{cfg.FFmpeg.Bin, cfg.FFmpeg.FFprobeBin} {
		path, err := exec.LookPath(bin)
		if err != nil {
			return fmt.Errorf("binary not found (%s): %w", bin, err)
		}
		logger.Info().Str("bin", bin).Str("path", path).Msg("transcoder binary available")
	}

	if cfg.Assets.PexelsAPIKey == "" {
		logger.Warn().Msg("no Pexels API key configured; every segment uses a placeholder image")
	}
	if cfg.Narration.ElevenLabsAPIKey == "" {
		logger.Warn().Msg("no ElevenLabs API key configured; narration requests render silent clips")
	}

	tempDir := filepath.Clean(os.TempDir())
	outDir := filepath.Clean(cfg.OutputDir)
	if tempDir != "." && (outDir == tempDir || strings.HasPrefix(outDir, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("output_dir", cfg.OutputDir).
			Msg("output directory is under temp; generated videos may be lost on reboot")
	}
	return nil
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads daemon configuration with precedence
// ENV > YAML file > defaults and supports hot reload of runtime-safe keys.
package config

import "time"

// AppConfig is the resolved daemon configuration.
type AppConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	OutputDir      string `yaml:"output_dir"`
	MaxDurationSec int    `yaml:"max_duration_sec"`
	LogLevel       string `yaml:"log_level"`
	KeepWorkspace  bool   `yaml:"keep_workspace"`

	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Assets    AssetsConfig    `yaml:"assets"`
	Narration NarrationConfig `yaml:"narration"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	API       APIConfig       `yaml:"api"`

	// Version is injected from the binary, never read from file or env.
	Version string `yaml:"-"`
}

type FFmpegConfig struct {
	Bin          string        `yaml:"bin"`
	FFprobeBin   string        `yaml:"ffprobe_bin"`
	Timeout      time.Duration `yaml:"timeout"`
	KillGrace    time.Duration `yaml:"kill_grace"`
	StallTimeout time.Duration `yaml:"stall_timeout"` // 0 disables progress tracking
}

type JobsConfig struct {
	MaxConcurrent int           `yaml:"max_concurrent"`
	Timeout       time.Duration `yaml:"timeout"`
	ArchivePath   string        `yaml:"archive_path"`
}

type AssetsConfig struct {
	PexelsAPIKey string        `yaml:"pexels_api_key"`
	BaseURL      string        `yaml:"base_url"`
	RateLimit    float64       `yaml:"rate_limit"` // requests per second
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	RedisAddr    string        `yaml:"redis_addr"`
}

type NarrationConfig struct {
	ElevenLabsAPIKey string `yaml:"elevenlabs_api_key"`
	VoiceID          string `yaml:"voice_id"`
	BaseURL          string `yaml:"base_url"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // grpc|http
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

type APIConfig struct {
	RateLimitRPM int `yaml:"rate_limit_rpm"` // 0 disables
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		ListenAddr:     ":3000",
		OutputDir:      "./outputs",
		MaxDurationSec: 300,
		LogLevel:       "info",
		FFmpeg: FFmpegConfig{
			Bin:          "ffmpeg",
			FFprobeBin:   "ffprobe",
			Timeout:      10 * time.Minute,
			KillGrace:    5 * time.Second,
			StallTimeout: time.Minute,
		},
		Jobs: JobsConfig{
			MaxConcurrent: 2,
			Timeout:       time.Hour,
		},
		Assets: AssetsConfig{
			BaseURL:   "https://api.pexels.com",
			RateLimit: 3,
			CacheTTL:  6 * time.Hour,
		},
		Narration: NarrationConfig{
			VoiceID: "21m00Tcm4TlvDq8ikWAM",
			BaseURL: "https://api.elevenlabs.io",
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
		},
		API: APIConfig{
			RateLimitRPM: 60,
		},
	}
}

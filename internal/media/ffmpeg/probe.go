// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// StreamInfo is the subset of ffprobe output the pipeline relies on.
type StreamInfo struct {
	Duration float64 // seconds, container level when present
	Video    VideoInfo
	HasVideo bool
	HasAudio bool
	Audio    AudioInfo
}

// VideoInfo describes the first video stream.
type VideoInfo struct {
	Codec  string
	Width  int
	Height int
	FPS    float64
	PixFmt string
}

// AudioInfo describes the first audio stream.
type AudioInfo struct {
	Codec      string
	SampleRate int
	Channels   int
}

// Prober reads stream metadata from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*StreamInfo, error)
}

// FFprobe implements Prober with the ffprobe binary.
type FFprobe struct {
	BinPath string
}

// NewProber returns an ffprobe-backed Prober.
func NewProber(binPath string) *FFprobe {
	if binPath == "" {
		binPath = "ffprobe"
	}
	return &FFprobe{BinPath: binPath}
}

var _ Prober = (*FFprobe)(nil)

// Probe executes ffprobe and returns stream info.
func (p *FFprobe) Probe(ctx context.Context, path string) (*StreamInfo, error) {
	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	// #nosec G204 -- binary comes from config; path is passed as a single argument
	cmd := exec.CommandContext(ctx, p.BinPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		errStr := stderr.String()
		if len(errStr) > 4096 {
			errStr = errStr[:4096] + "..."
		}
		return nil, fmt.Errorf("ffprobe failed: %w (stderr: %s)", err, strings.TrimSpace(errStr))
	}
	return ParseProbeOutput(out)
}

// ParseProbeOutput decodes `ffprobe -print_format json -show_format -show_streams` output.
func ParseProbeOutput(out []byte) (*StreamInfo, error) {
	var data probeData
	if err := json.Unmarshal(out, &data); err != nil {
		return nil, fmt.Errorf("json decode: %w", err)
	}

	info := &StreamInfo{}
	var streamDuration float64
	for _, s := range data.Streams {
		switch s.CodecType {
		case "video":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.Video = VideoInfo{
				Codec:  s.CodecName,
				Width:  s.Width,
				Height: s.Height,
				FPS:    parseRate(s.AvgFrameRate),
				PixFmt: s.PixFmt,
			}
			if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
				streamDuration = d
			}
		case "audio":
			if info.HasAudio {
				continue
			}
			info.HasAudio = true
			info.Audio.Codec = s.CodecName
			info.Audio.Channels = s.Channels
			if sr, err := strconv.Atoi(s.SampleRate); err == nil {
				info.Audio.SampleRate = sr
			}
		}
	}

	if !info.HasVideo && !info.HasAudio {
		return nil, fmt.Errorf("ffprobe returned no playable streams")
	}

	if d, err := strconv.ParseFloat(data.Format.Duration, 64); err == nil {
		info.Duration = d
	} else {
		info.Duration = streamDuration
	}
	return info, nil
}

func parseRate(rate string) float64 {
	if rate == "" || rate == "0/0" {
		return 0
	}
	num, den, ok := strings.Cut(rate, "/")
	if !ok {
		f, _ := strconv.ParseFloat(rate, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}

type probeData struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		PixFmt       string `json:"pix_fmt,omitempty"`
		Duration     string `json:"duration,omitempty"`
		Width        int    `json:"width,omitempty"`
		Height       int    `json:"height,omitempty"`
		AvgFrameRate string `json:"avg_frame_rate,omitempty"`
		SampleRate   string `json:"sample_rate,omitempty"`
		Channels     int    `json:"channels,omitempty"`
	} `json:"streams"`
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ffmpeg builds transcoder command lines and runs them as supervised,
// blocking processes.
package ffmpeg

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Output format shared by every clip so stream-copy concatenation stays valid.
const (
	FrameRate     = 30
	PixelFormat   = "yuv420p"
	VideoCodec    = "libx264"
	Preset        = "veryfast"
	AudioCodec    = "aac"
	AudioBitrate  = "128k"
	AudioRate     = 44100
	AudioChannels = 2

	// Pan-and-zoom range applied to still images over a whole segment.
	ZoomStart = 1.0
	ZoomEnd   = 1.1
)

// ClipSpec describes one segment clip render.
type ClipSpec struct {
	Input    string  // source video or still image
	Image    bool    // Input is a still image
	Audio    string  // optional narration track; empty renders a silent track
	Duration float64 // planned segment duration in seconds
	Width    int
	Height   int
	Output   string
}

func commonPrefix() []string {
	return []string{"-nostdin", "-hide_banner", "-loglevel", "error", "-y"}
}

// FrameCount is the number of output frames in d seconds at FrameRate.
func FrameCount(d float64) int {
	n := int(math.Round(d * FrameRate))
	if n < 1 {
		n = 1
	}
	return n
}

// BuildClipArgs constructs the arguments for rendering one fixed-format clip.
// Every clip gets exactly one video and one audio stream; without narration the
// audio is generated silence of the full segment duration.
func BuildClipArgs(spec ClipSpec) ([]string, error) {
	if spec.Input == "" {
		return nil, errors.New("missing clip input")
	}
	if spec.Output == "" {
		return nil, errors.New("missing clip output")
	}
	if spec.Duration <= 0 {
		return nil, fmt.Errorf("invalid clip duration %v", spec.Duration)
	}
	if spec.Width <= 0 || spec.Height <= 0 || spec.Width%2 != 0 || spec.Height%2 != 0 {
		return nil, fmt.Errorf("invalid resolution %dx%d", spec.Width, spec.Height)
	}

	dur := formatSeconds(spec.Duration)
	args := commonPrefix()

	var vf string
	if spec.Image {
		args = append(args,
			"-loop", "1",
			"-framerate", strconv.Itoa(FrameRate),
			"-t", dur,
			"-i", spec.Input,
		)
		vf = imageFilter(spec)
	} else {
		args = append(args, "-i", spec.Input)
		vf = videoFilter(spec)
	}

	if spec.Audio != "" {
		args = append(args, "-i", spec.Audio)
	} else {
		args = append(args,
			"-f", "lavfi",
			"-t", dur,
			"-i", fmt.Sprintf("anullsrc=channel_layout=stereo:sample_rate=%d", AudioRate),
		)
	}

	args = append(args,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-vf", vf,
		"-t", dur,
	)
	if spec.Audio != "" {
		// Narration may shorten a clip but never lengthen it.
		args = append(args, "-shortest")
	}
	args = append(args,
		"-c:v", VideoCodec,
		"-preset", Preset,
		"-pix_fmt", PixelFormat,
		"-r", strconv.Itoa(FrameRate),
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
		"-ar", strconv.Itoa(AudioRate),
		"-ac", strconv.Itoa(AudioChannels),
		"-movflags", "+faststart",
		spec.Output,
	)
	return args, nil
}

// videoFilter covers the frame, crops to size and holds the last frame when
// the source is shorter than the segment.
func videoFilter(spec ClipSpec) string {
	return strings.Join([]string{
		coverCrop(spec.Width, spec.Height),
		"setsar=1",
		fmt.Sprintf("fps=%d", FrameRate),
		fmt.Sprintf("tpad=stop_mode=clone:stop_duration=%s", formatSeconds(spec.Duration)),
		"format=" + PixelFormat,
	}, ",")
}

// imageFilter applies a linear zoom from ZoomStart to ZoomEnd and a horizontal
// pan, both driven by the normalized output frame position on/N, so the motion
// depends only on elapsed fraction of the segment.
func imageFilter(spec ClipSpec) string {
	n := FrameCount(spec.Duration)
	zoom := fmt.Sprintf("%g+%g*on/%d", ZoomStart, ZoomEnd-ZoomStart, n)
	pan := fmt.Sprintf("(iw-iw/zoom)*on/%d", n)
	return strings.Join([]string{
		coverCrop(spec.Width, spec.Height),
		fmt.Sprintf("zoompan=z='%s':x='%s':y='(ih-ih/zoom)/2':d=1:s=%dx%d:fps=%d",
			zoom, pan, spec.Width, spec.Height, FrameRate),
		"setsar=1",
		"format=" + PixelFormat,
	}, ",")
}

func coverCrop(w, h int) string {
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d", w, h, w, h)
}

// BuildConcatArgs constructs a stream-copy concatenation over a concat list file.
func BuildConcatArgs(listPath, output string) ([]string, error) {
	if listPath == "" || output == "" {
		return nil, errors.New("missing concat list or output")
	}
	args := commonPrefix()
	return append(args,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-movflags", "+faststart",
		output,
	), nil
}

// ConcatList renders the concat demuxer list for the given clip paths.
func ConcatList(paths []string) []byte {
	var b strings.Builder
	for _, p := range paths {
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		b.WriteString("'\n")
	}
	return []byte(b.String())
}

// BuildBurnArgs renders subtitles into the video stream and copies audio.
// output may lack an extension (pending temp file), so the muxer is explicit.
func BuildBurnArgs(input, srtPath, output string) ([]string, error) {
	if input == "" || srtPath == "" || output == "" {
		return nil, errors.New("missing burn-in input, subtitles or output")
	}
	args := commonPrefix()
	return append(args,
		"-i", input,
		"-map", "0:v:0",
		"-map", "0:a?",
		"-vf", "subtitles=filename=" + EscapeFilterValue(srtPath),
		"-c:v", VideoCodec,
		"-preset", Preset,
		"-pix_fmt", PixelFormat,
		"-c:a", "copy",
		"-movflags", "+faststart",
		"-f", "mp4",
		output,
	), nil
}

// EscapeFilterValue escapes a filter option value for use inside -vf: first
// for the option parser, then for the filtergraph parser.
func EscapeFilterValue(v string) string {
	return escapeChars(escapeChars(v, `\':`), `\'[],;`)
}

func escapeChars(s, special string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func formatSeconds(d float64) string {
	return strconv.FormatFloat(d, 'f', 3, 64)
}

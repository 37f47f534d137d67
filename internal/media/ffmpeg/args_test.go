// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func argAfter(t *testing.T, args []string, flag string) string {
	t.Helper()
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	t.Fatalf("flag %s not found in %v", flag, args)
	return ""
}

func countFlag(args []string, flag string) int {
	n := 0
	for _, a := range args {
		if a == flag {
			n++
		}
	}
	return n
}

func TestBuildClipArgs_VideoWithNarration(t *testing.T) {
	args, err := BuildClipArgs(ClipSpec{
		Input: "/w/tmp/seg1.mp4", Audio: "/w/tmp/seg1.mp3",
		Duration: 15, Width: 1920, Height: 1080, Output: "/w/tmp/clip_1.mp4",
	})
	require.NoError(t, err)

	assert.Contains(t, args, "-shortest")
	assert.NotContains(t, args, "-loop")
	assert.NotContains(t, args, "lavfi")
	assert.Equal(t, "15.000", argAfter(t, args, "-t"))
	assert.Equal(t, "/w/tmp/clip_1.mp4", args[len(args)-1])

	vf := argAfter(t, args, "-vf")
	assert.Contains(t, vf, "scale=1920:1080:force_original_aspect_ratio=increase,crop=1920:1080")
	assert.Contains(t, vf, "tpad=stop_mode=clone")
	assert.NotContains(t, vf, "setpts", "video must never be time-stretched")

	assert.Equal(t, "yuv420p", argAfter(t, args, "-pix_fmt"))
	assert.Equal(t, "30", argAfter(t, args, "-r"))
	assert.Equal(t, "aac", argAfter(t, args, "-c:a"))
	assert.Equal(t, 2, countFlag(args, "-map"))
}

func TestBuildClipArgs_ImageSilent(t *testing.T) {
	args, err := BuildClipArgs(ClipSpec{
		Input: "/w/tmp/seg2.jpg", Image: true,
		Duration: 10, Width: 1080, Height: 1920, Output: "/w/tmp/clip_2.mp4",
	})
	require.NoError(t, err)

	assert.Equal(t, "1", argAfter(t, args, "-loop"))
	assert.NotContains(t, args, "-shortest")
	assert.Equal(t, "lavfi", argAfter(t, args, "-f"))

	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "anullsrc=channel_layout=stereo:sample_rate=44100")

	vf := argAfter(t, args, "-vf")
	// 10s at 30fps: zoom and pan are functions of on/300.
	assert.Contains(t, vf, "zoompan=z='1+0.1*on/300'")
	assert.Contains(t, vf, "x='(iw-iw/zoom)*on/300'")
	assert.Contains(t, vf, "s=1080x1920")
	assert.True(t, strings.Index(vf, "crop=") < strings.Index(vf, "zoompan"), "cover crop must precede the effect")
}

func TestBuildClipArgs_Validation(t *testing.T) {
	base := ClipSpec{Input: "in.jpg", Output: "out.mp4", Duration: 5, Width: 1920, Height: 1080}

	bad := base
	bad.Input = ""
	_, err := BuildClipArgs(bad)
	assert.Error(t, err)

	bad = base
	bad.Duration = 0
	_, err = BuildClipArgs(bad)
	assert.Error(t, err)

	bad = base
	bad.Width = 1921
	_, err = BuildClipArgs(bad)
	assert.Error(t, err)
}

func TestFrameCount(t *testing.T) {
	assert.Equal(t, 450, FrameCount(15))
	assert.Equal(t, 1, FrameCount(0.001))
	assert.Equal(t, 45, FrameCount(1.5))
}

func TestBuildConcatArgs(t *testing.T) {
	args, err := BuildConcatArgs("/w/tmp/concat.txt", "/w/tmp/concat.mp4")
	require.NoError(t, err)
	assert.Equal(t, "concat", argAfter(t, args, "-f"))
	assert.Equal(t, "0", argAfter(t, args, "-safe"))
	assert.Equal(t, "copy", argAfter(t, args, "-c"))
}

func TestConcatList_Escaping(t *testing.T) {
	got := string(ConcatList([]string{"/w/clip_1.mp4", "/w/it's/clip_2.mp4"}))
	assert.Equal(t, "file '/w/clip_1.mp4'\nfile '/w/it'\\''s/clip_2.mp4'\n", got)
}

func TestBuildBurnArgs(t *testing.T) {
	args, err := BuildBurnArgs("/w/tmp/concat.mp4", "/w/job.srt", "/w/.job.mp4123")
	require.NoError(t, err)
	assert.Equal(t, "copy", argAfter(t, args, "-c:a"))
	assert.Equal(t, "libx264", argAfter(t, args, "-c:v"))
	assert.Equal(t, "mp4", argAfter(t, args, "-f"))
	assert.Equal(t, "subtitles=filename=/w/job.srt", argAfter(t, args, "-vf"))
}

func TestEscapeFilterValue(t *testing.T) {
	assert.Equal(t, "/plain/path.srt", EscapeFilterValue("/plain/path.srt"))
	// ':' is escaped once for the option parser, then the backslash again for the graph.
	assert.Equal(t, `C\\:/subs.srt`, EscapeFilterValue(`C:/subs.srt`))
	assert.Equal(t, `/a\,b.srt`, EscapeFilterValue(`/a,b.srt`))
}

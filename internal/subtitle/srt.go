// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package subtitle builds, validates and writes SRT caption tracks.
package subtitle

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/vidforge/internal/domain"
)

// ErrEmpty is returned by Parse when the input holds no cues.
var ErrEmpty = errors.New("subtitle track has no cues")

// Cue is one caption entry.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

const arrow = " --> "

// Build renders one cue per segment over the segment timeline.
func Build(segments []domain.Segment) []byte {
	var b bytes.Buffer
	for i, seg := range segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d\n%s%s%s\n%s\n",
			i+1,
			FormatTimestamp(seconds(seg.Start)),
			arrow,
			FormatTimestamp(seconds(seg.End)),
			strings.Join(strings.Fields(seg.Text), " "),
		)
	}
	return b.Bytes()
}

// FormatTimestamp renders HH:MM:SS,mmm.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	m := (ms / 60_000) % 60
	s := (ms / 1000) % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// ParseTimestamp parses HH:MM:SS,mmm. A '.' separator is accepted too.
func ParseTimestamp(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	hms, msPart, ok := strings.Cut(s, ",")
	if !ok {
		hms, msPart, ok = strings.Cut(s, ".")
	}
	if !ok || len(msPart) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	parts := strings.Split(hms, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	var vals [4]int
	for i, p := range append(parts, msPart) {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		vals[i] = v
	}
	if vals[1] > 59 || vals[2] > 59 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	return time.Duration(vals[0])*time.Hour +
		time.Duration(vals[1])*time.Minute +
		time.Duration(vals[2])*time.Second +
		time.Duration(vals[3])*time.Millisecond, nil
}

// Parse reads an SRT track and checks that cues are well formed, strictly
// ordered and non-overlapping.
func Parse(r io.Reader) ([]Cue, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		cues  []Cue
		block []string
		line  int
	)
	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		cue, err := parseBlock(block)
		block = block[:0]
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if n := len(cues); n > 0 {
			prev := cues[n-1]
			if cue.Start < prev.End {
				return fmt.Errorf("cue %d overlaps cue %d", cue.Index, prev.Index)
			}
		}
		cues = append(cues, cue)
		return nil
	}

	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if line == 1 {
			text = strings.TrimPrefix(text, "\ufeff")
		}
		if strings.TrimSpace(text) == "" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		block = append(block, text)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read subtitles: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(cues) == 0 {
		return nil, ErrEmpty
	}
	return cues, nil
}

func parseBlock(lines []string) (Cue, error) {
	if len(lines) < 3 {
		return Cue{}, fmt.Errorf("incomplete cue %q", strings.Join(lines, " / "))
	}
	idx, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil || idx < 1 {
		return Cue{}, fmt.Errorf("invalid cue index %q", lines[0])
	}
	startStr, endStr, ok := strings.Cut(lines[1], "-->")
	if !ok {
		return Cue{}, fmt.Errorf("cue %d: missing time range", idx)
	}
	start, err := ParseTimestamp(startStr)
	if err != nil {
		return Cue{}, fmt.Errorf("cue %d: %w", idx, err)
	}
	end, err := ParseTimestamp(endStr)
	if err != nil {
		return Cue{}, fmt.Errorf("cue %d: %w", idx, err)
	}
	if end <= start {
		return Cue{}, fmt.Errorf("cue %d: end %s not after start %s", idx, FormatTimestamp(end), FormatTimestamp(start))
	}
	return Cue{Index: idx, Start: start, End: end, Text: strings.Join(lines[2:], "\n")}, nil
}

// ParseFile opens and parses an SRT file.
func ParseFile(path string) ([]Cue, error) {
	// #nosec G304 -- path is a job artifact under the output directory
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open subtitles: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte) error {
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write subtitles: %w", err)
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s*1000)) * time.Millisecond
}

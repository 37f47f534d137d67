// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package domain

// MediaKind distinguishes moving footage from still images.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaImage MediaKind = "image"
)

// MediaAsset is the local file resolved for one segment index.
type MediaAsset struct {
	Index       int
	Kind        MediaKind
	Path        string
	Placeholder bool
}

// NarrationItem is the optional voice track for one segment index.
// An empty AudioPath means the segment is rendered without narration.
type NarrationItem struct {
	Index     int
	AudioPath string
}

// Present reports whether narration audio exists for the segment.
func (n NarrationItem) Present() bool { return n.AudioPath != "" }

// Clip is a rendered fixed-format file for exactly one segment.
// It only lives inside a job's temporary workspace.
type Clip struct {
	Index        int
	Path         string
	Duration     float64
	HasNarration bool
}

// Resolution is an output frame size in pixels.
type Resolution struct {
	W int `json:"width"`
	H int `json:"height"`
}

const (
	FormatShort = "short"
	FormatLong  = "long"
)

// ResolutionFor maps an output format to its frame size. Unknown formats get
// the landscape size.
func ResolutionFor(format string) Resolution {
	if format == FormatShort {
		return Resolution{W: 1080, H: 1920}
	}
	return Resolution{W: 1920, H: 1080}
}

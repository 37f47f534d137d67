// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package compose

import "fmt"

// ClipSynthesisError is fatal for the job: a missing clip breaks the
// duration of everything after it.
type ClipSynthesisError struct {
	Index      int
	Diagnostic string
	Err        error
}

func (e *ClipSynthesisError) Error() string {
	return fmt.Sprintf("segment %d: clip synthesis failed: %s", e.Index, e.Diagnostic)
}

func (e *ClipSynthesisError) Unwrap() error { return e.Err }

// ConcatenationError is fatal for the job.
type ConcatenationError struct {
	Diagnostic string
	Err        error
}

func (e *ConcatenationError) Error() string {
	return "concatenation failed: " + e.Diagnostic
}

func (e *ConcatenationError) Unwrap() error { return e.Err }

// SubtitleBurnError is recovered by passing the video through without captions.
type SubtitleBurnError struct {
	Diagnostic string
	Err        error
}

func (e *SubtitleBurnError) Error() string {
	return "subtitle burn-in failed: " + e.Diagnostic
}

func (e *SubtitleBurnError) Unwrap() error { return e.Err }

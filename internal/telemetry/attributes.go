// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared across spans.
const (
	JobIDKey     = "job.id"
	JobStatusKey = "job.status"
	JobFormatKey = "job.format"

	PhaseKey    = "pipeline.phase"
	StageKey    = "compose.stage"
	SegmentKey  = "compose.segment"
	SegmentsKey = "compose.segments"
	MediaKey    = "compose.media_kind"

	DurationKey   = "media.duration_sec"
	ResolutionKey = "media.resolution"

	ErrorTypeKey = "error.type"
)

// JobAttributes describes a generation job.
func JobAttributes(id, format string, durationSec int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobIDKey, id),
		attribute.String(JobFormatKey, format),
		attribute.Int(DurationKey, durationSec),
	}
}

// SegmentAttributes describes one clip render.
func SegmentAttributes(index int, kind string, durationSec float64, narrated bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(SegmentKey, index),
		attribute.String(MediaKey, kind),
		attribute.Float64(DurationKey, durationSec),
		attribute.Bool("compose.narrated", narrated),
	}
}

// ErrorAttributes tags a span with an error class.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool("error", true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

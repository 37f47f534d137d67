// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldJobID     = "job_id"
	FieldTraceID   = "trace_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPhase     = "phase"
	FieldStage     = "stage"
	FieldSegment   = "segment"
	FieldProgress  = "progress"
	FieldExitCode  = "exit_code"
	FieldStderr    = "stderr"

	// Media fields
	FieldResolution = "resolution"
	FieldDuration   = "duration_sec"
	FieldMediaKind  = "media_kind"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath      = "path"
	FieldFinalPath = "final_path"
)

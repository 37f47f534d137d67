// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package domain

import "time"

// JobStatus is the externally visible lifecycle of a generation job.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobError   JobStatus = "error"
)

// IsTerminal returns true if the status is final.
func (s JobStatus) IsTerminal() bool {
	return s == JobDone || s == JobError
}

// JobResult points at the artifacts of a finished job.
type JobResult struct {
	VideoPath    string `json:"videoPath"`
	SubtitlePath string `json:"subtitlePath,omitempty"`
}

// JobSnapshot is a consistent copy of a job record.
type JobSnapshot struct {
	ID        string           `json:"id"`
	Status    JobStatus        `json:"status"`
	Progress  int              `json:"progress"`
	Message   string           `json:"message"`
	Error     string           `json:"error,omitempty"`
	Result    *JobResult       `json:"result,omitempty"`
	Request   *GenerateRequest `json:"request,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// GenerateRequest is the accepted input of one generation job.
type GenerateRequest struct {
	Prompt      string `json:"prompt"`
	DurationSec int    `json:"durationSec"`
	Format      string `json:"format"`
	Language    string `json:"language"`
	TTSProvider string `json:"ttsProvider"`
	Subtitles   bool   `json:"subtitles"`
}

// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package jobs tracks generation jobs from submission to a terminal state.
package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/vidforge/internal/domain"
)

var (
	// ErrNotFound is returned for unknown job ids.
	ErrNotFound = errors.New("job not found")
	// ErrTerminal is returned when a finished job is updated.
	ErrTerminal = errors.New("job already finished")
	// ErrInvalidTransition is returned for state changes the lifecycle forbids.
	ErrInvalidTransition = errors.New("invalid job state transition")
)

// Job is the mutable record of one generation request. Writers are the job's
// own goroutine; everyone else reads through Snapshot.
type Job struct {
	mu sync.RWMutex

	id        string
	status    domain.JobStatus
	progress  int
	message   string
	err       string
	result    *domain.JobResult
	request   domain.GenerateRequest
	createdAt time.Time
	updatedAt time.Time

	now func() time.Time
}

// NewJob returns a queued job.
func NewJob(id string, req domain.GenerateRequest) *Job {
	return newJobAt(id, req, time.Now)
}

func newJobAt(id string, req domain.GenerateRequest, now func() time.Time) *Job {
	ts := now().UTC()
	return &Job{
		id:        id,
		status:    domain.JobQueued,
		message:   "Queued",
		request:   req,
		createdAt: ts,
		updatedAt: ts,
		now:       now,
	}
}

func (j *Job) ID() string { return j.id }

// Status returns the current state.
func (j *Job) Status() domain.JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

func isValidTransition(from, to domain.JobStatus) bool {
	switch from {
	case domain.JobQueued:
		return to == domain.JobRunning || to == domain.JobError
	case domain.JobRunning:
		return to == domain.JobDone || to == domain.JobError
	default:
		return false
	}
}

// transition must be called with mu held.
func (j *Job) transition(to domain.JobStatus) error {
	if j.status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, j.id, j.status)
	}
	if !isValidTransition(j.status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.status, to)
	}
	j.status = to
	j.updatedAt = j.now().UTC()
	return nil
}

// Start moves a queued job to running.
func (j *Job) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transition(domain.JobRunning); err != nil {
		return err
	}
	j.message = "Starting"
	return nil
}

// SetProgress records a progress report. Lower percentages keep the stored
// value but still update the message.
func (j *Job) SetProgress(percent int, message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, j.id, j.status)
	}
	if percent > 100 {
		percent = 100
	}
	if percent > j.progress {
		j.progress = percent
	}
	if message != "" {
		j.message = message
	}
	j.updatedAt = j.now().UTC()
	return nil
}

// Complete moves a running job to done. The result is required.
func (j *Job) Complete(res *domain.JobResult) error {
	if res == nil || res.VideoPath == "" {
		return errors.New("complete: result with video path required")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transition(domain.JobDone); err != nil {
		return err
	}
	r := *res
	j.result = &r
	j.progress = 100
	j.message = "Completed"
	j.err = ""
	return nil
}

// Fail moves the job to error with a user-facing diagnostic.
func (j *Job) Fail(diagnostic string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transition(domain.JobError); err != nil {
		return err
	}
	if diagnostic == "" {
		diagnostic = "generation failed"
	}
	j.err = diagnostic
	j.result = nil
	j.message = "Failed"
	return nil
}

// Snapshot returns a copy safe to hand to readers.
func (j *Job) Snapshot() domain.JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	req := j.request
	snap := domain.JobSnapshot{
		ID:        j.id,
		Status:    j.status,
		Progress:  j.progress,
		Message:   j.message,
		Error:     j.err,
		Request:   &req,
		CreatedAt: j.createdAt,
		UpdatedAt: j.updatedAt,
	}
	if j.result != nil {
		r := *j.result
		snap.Result = &r
	}
	return snap
}

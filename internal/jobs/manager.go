// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/vidforge/internal/domain"
	"github.com/ManuGH/vidforge/internal/log"
	"github.com/ManuGH/vidforge/internal/metrics"
	"github.com/ManuGH/vidforge/internal/progress"
)

// ErrShuttingDown is returned by Submit after Shutdown was called.
var ErrShuttingDown = errors.New("job manager is shutting down")

// Runner executes one job and reports progress to sink.
type Runner interface {
	Run(ctx context.Context, id string, req domain.GenerateRequest, sink progress.Sink) (*domain.JobResult, error)
}

// Options configures a Manager.
type Options struct {
	// MaxConcurrent caps running jobs. 0 means unlimited.
	MaxConcurrent int
	// Timeout bounds one job's wall-clock time. 0 disables it.
	Timeout time.Duration
	// Archive stores terminal snapshots. Optional.
	Archive Archive
	// NewID overrides id generation in tests.
	NewID func() string
}

// Manager owns the job registry and the job goroutines.
type Manager struct {
	runner   Runner
	registry *Registry
	archive  Archive
	timeout  time.Duration
	sem      chan struct{}
	newID    func() string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closing bool
}

func NewManager(runner Runner, opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		runner:   runner,
		registry: NewRegistry(),
		archive:  opts.Archive,
		timeout:  opts.Timeout,
		newID:    opts.NewID,
		ctx:      ctx,
		cancel:   cancel,
	}
	if opts.MaxConcurrent > 0 {
		m.sem = make(chan struct{}, opts.MaxConcurrent)
	}
	if m.newID == nil {
		m.newID = uuid.NewString
	}
	return m
}

// Submit registers a queued job and starts its goroutine. The job outlives
// ctx; only Shutdown or the job timeout cancel it.
func (m *Manager) Submit(ctx context.Context, req domain.GenerateRequest) (domain.JobSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		return domain.JobSnapshot{}, ErrShuttingDown
	}

	job := NewJob(m.newID(), req)
	if err := m.registry.Add(job); err != nil {
		return domain.JobSnapshot{}, err
	}
	metrics.IncJobSubmitted()

	logger := log.WithComponentFromContext(ctx, "jobs")
	logger.Info().
		Str(log.FieldJobID, job.ID()).
		Int("duration_sec", req.DurationSec).
		Str("format", req.Format).
		Str("language", req.Language).
		Str("tts_provider", req.TTSProvider).
		Bool("subtitles", req.Subtitles).
		Msg("job submitted")

	m.wg.Add(1)
	go m.run(job)
	return job.Snapshot(), nil
}

// Get returns the job snapshot from memory or, failing that, the archive.
func (m *Manager) Get(ctx context.Context, id string) (domain.JobSnapshot, error) {
	if job, err := m.registry.Get(id); err == nil {
		return job.Snapshot(), nil
	}
	if m.archive == nil {
		return domain.JobSnapshot{}, ErrNotFound
	}
	return m.archive.Load(ctx, id)
}

// List returns live and archived jobs, newest first.
func (m *Manager) List(ctx context.Context) ([]domain.JobSnapshot, error) {
	live := m.registry.List()
	out := make([]domain.JobSnapshot, 0, len(live))
	seen := make(map[string]struct{}, len(live))
	for _, j := range live {
		out = append(out, j.Snapshot())
		seen[j.ID()] = struct{}{}
	}
	if m.archive == nil {
		return out, nil
	}
	archived, err := m.archive.List(ctx, 0)
	if err != nil {
		return out, fmt.Errorf("list archive: %w", err)
	}
	for _, s := range archived {
		if _, ok := seen[s.ID]; !ok {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

// Shutdown stops accepting jobs, cancels running ones and waits for their
// goroutines until ctx expires.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	m.mu.Unlock()
	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for jobs: %w", ctx.Err())
	}
}

func (m *Manager) run(job *Job) {
	defer m.wg.Done()

	ctx := log.ContextWithJobID(m.ctx, job.ID())
	logger := log.WithComponentFromContext(ctx, "jobs")

	if m.sem != nil {
		select {
		case m.sem <- struct{}{}:
			defer func() { <-m.sem }()
		case <-ctx.Done():
		}
	}
	if ctx.Err() != nil {
		m.finish(ctx, job, nil, errors.New("generation canceled before start"))
		return
	}

	if err := job.Start(); err != nil {
		logger.Error().Err(err).Msg("job start rejected")
		return
	}
	logger.Info().Msg("job started")
	stop := metrics.JobStarted()
	defer stop()

	runCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	events := make(chan progress.Event)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for ev := range events {
			if err := job.SetProgress(ev.Percent, ev.Message); err != nil {
				logger.Debug().Err(err).Msg("progress update dropped")
			}
		}
	}()

	res, err := m.runner.Run(runCtx, job.ID(), job.request, progress.ChanSink(events))
	close(events)
	<-drained

	// a killed transcoder reports its exit status, not the cause
	if err != nil {
		switch {
		case ctx.Err() != nil:
			err = fmt.Errorf("generation canceled: %w", err)
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			err = fmt.Errorf("generation timed out after %s: %w", m.timeout, err)
		}
	}
	m.finish(ctx, job, res, err)
}

// finish applies the terminal transition and archives the record.
func (m *Manager) finish(ctx context.Context, job *Job, res *domain.JobResult, runErr error) {
	logger := log.WithComponentFromContext(ctx, "jobs")

	var terr error
	if runErr == nil && (res == nil || res.VideoPath == "") {
		runErr = errors.New("generation produced no result")
	}
	if runErr == nil {
		terr = job.Complete(res)
	} else {
		terr = job.Fail(runErr.Error())
	}
	if terr != nil {
		logger.Error().Err(terr).Msg("terminal transition rejected")
		return
	}

	snap := job.Snapshot()
	metrics.IncJobFinished(string(snap.Status))
	if snap.Status == domain.JobDone {
		logger.Info().Str(log.FieldFinalPath, res.VideoPath).Msg("job done")
	} else {
		logger.Error().Str("error", snap.Error).Msg("job failed")
	}

	if m.archive == nil {
		return
	}
	// archive even when the manager context is already canceled
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := m.archive.Save(actx, snap); err != nil {
		logger.Warn().Err(err).Msg("archive job failed")
	}
}

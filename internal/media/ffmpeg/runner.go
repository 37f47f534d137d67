// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ManuGH/vidforge/internal/log"
	"github.com/ManuGH/vidforge/internal/media/ffmpeg/watchdog"
	"github.com/ManuGH/vidforge/internal/metrics"
	"github.com/ManuGH/vidforge/internal/procgroup"
)

// ErrTimeout marks a process that was terminated because it exceeded its time budget.
var ErrTimeout = errors.New("transcoder timed out")

// stderrTail is how many stderr lines an ExitError keeps.
const stderrTail = 20

// Runner executes one blocking transcoder invocation.
// Implementations must not return before the process has been reaped.
type Runner interface {
	Run(ctx context.Context, stage string, args []string) error
}

// ExitError reports a failed transcoder invocation.
type ExitError struct {
	Stage    string
	ExitCode int
	Stderr   []string
	Err      error
}

func (e *ExitError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: transcoder exited with code %d: %s", e.Stage, e.ExitCode, e.Diagnostic())
}

func (e *ExitError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Diagnostic returns the captured tool output, newest line last.
func (e *ExitError) Diagnostic() string {
	if e == nil || len(e.Stderr) == 0 {
		return "no diagnostic output"
	}
	return strings.Join(e.Stderr, "; ")
}

// Diagnostic extracts the tool diagnostic from err when it wraps an ExitError.
func Diagnostic(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Diagnostic()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Executor runs the ffmpeg binary in its own process group.
type Executor struct {
	BinPath   string
	Timeout   time.Duration // per invocation; zero disables
	KillGrace time.Duration // SIGTERM to SIGKILL escalation window
	// StallTimeout terminates an invocation whose -progress output stops
	// advancing. Zero disables progress tracking.
	StallTimeout time.Duration
}

// NewExecutor returns an Executor with defaults for empty fields.
func NewExecutor(binPath string, timeout, killGrace time.Duration) *Executor {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	if killGrace <= 0 {
		killGrace = 5 * time.Second
	}
	return &Executor{BinPath: binPath, Timeout: timeout, KillGrace: killGrace}
}

var _ Runner = (*Executor)(nil)

// Run starts the process, waits for it, and captures stderr.
// Cancellation of ctx or expiry of Timeout terminates the whole process group.
func (e *Executor) Run(ctx context.Context, stage string, args []string) error {
	logger := log.WithComponentFromContext(ctx, "ffmpeg")
	ring := NewLineRing(256)

	var wd *watchdog.Watchdog
	if e.StallTimeout > 0 {
		wd = watchdog.New(e.StallTimeout, e.StallTimeout)
		args = append([]string{"-progress", "pipe:1", "-nostats"}, args...)
	}

	// #nosec G204 -- binary comes from config; args are built by this package, no shell involved
	cmd := exec.Command(e.BinPath, args...)
	cmd.Stderr = ring
	if wd != nil {
		cmd.Stdout = wd
	}
	cmd.WaitDelay = e.KillGrace
	procgroup.Set(cmd)

	logger.Debug().
		Str(log.FieldStage, stage).
		Strs("args", args).
		Msg("starting transcoder")

	start := time.Now()
	if err := cmd.Start(); err != nil {
		metrics.IncTranscoderExit(stage, "error")
		return &ExitError{Stage: stage, ExitCode: -1, Stderr: []string{err.Error()}, Err: err}
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	runCtx := ctx
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	var stallCh chan error
	if wd != nil {
		wdCtx, stopWatchdog := context.WithCancel(runCtx)
		defer stopWatchdog()
		stallCh = make(chan error, 1)
		go func() { stallCh <- wd.Run(wdCtx) }()
	}

	var waitErr error
	result := "ok"
wait:
	for {
		select {
		case waitErr = <-waitCh:
			break wait
		case err := <-stallCh:
			if err == nil {
				// progress=end or ctx done; keep waiting for the exit.
				stallCh = nil
				continue
			}
			_ = procgroup.Terminate(cmd, waitCh, e.KillGrace)
			result = "stalled"
			waitErr = fmt.Errorf("%w after %s at output position %s", err, e.StallTimeout, wd.OutTime())
			break wait
		case <-runCtx.Done():
			_ = procgroup.Terminate(cmd, waitCh, e.KillGrace)
			switch {
			case ctx.Err() != nil:
				result = "canceled"
				waitErr = ctx.Err()
			default:
				result = "timeout"
				waitErr = fmt.Errorf("%w after %s", ErrTimeout, e.Timeout)
			}
			break wait
		}
	}
	ring.Flush()

	if waitErr == nil {
		metrics.IncTranscoderExit(stage, result)
		logger.Debug().
			Str(log.FieldStage, stage).
			Dur("duration", time.Since(start)).
			Msg("transcoder finished")
		return nil
	}

	if result == "ok" {
		result = "error"
	}
	metrics.IncTranscoderExit(stage, result)

	code := -1
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	tail := ring.LastN(stderrTail)
	logger.Error().
		Str(log.FieldStage, stage).
		Int(log.FieldExitCode, code).
		Strs(log.FieldStderr, tail).
		Err(waitErr).
		Msg("transcoder failed")

	return &ExitError{Stage: stage, ExitCode: code, Stderr: tail, Err: waitErr}
}

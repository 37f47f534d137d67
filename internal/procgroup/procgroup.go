// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup starts external tools in their own process group so the
// whole tree (ffmpeg plus any helpers it forks) can be terminated and reaped.
package procgroup

import (
	"errors"
	"os/exec"
	"time"

	"github.com/ManuGH/vidforge/internal/metrics"
)

// ErrKillFailed is returned when a group did not exit after SIGKILL.
var ErrKillFailed = errors.New("kill operation failed")

// Set configures the command to start in a new process group.
// Mandatory for Kill and Terminate to reach child processes.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Terminate stops a running command's process group and reaps it.
// It sends SIGTERM, waits up to grace for waitCh, then sends SIGKILL and
// always drains waitCh, so the caller never leaves a zombie behind.
// It returns the error received from waitCh. Safe on nil commands.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	metrics.IncProcTerminate("SIGTERM", signalResult(term(cmd)))

	select {
	case err := <-waitCh:
		if err == nil {
			metrics.IncProcWait("exit0")
		} else {
			metrics.IncProcWait("exit_nonzero")
		}
		return err
	case <-time.After(grace):
	}

	metrics.IncProcTerminate("SIGKILL", signalResult(kill(cmd)))

	err := <-waitCh
	if err == nil {
		metrics.IncProcWait("forced_exit0")
	} else {
		metrics.IncProcWait("forced_error")
	}
	return err
}

func signalResult(err error) string {
	switch {
	case err == nil:
		return "sent"
	case errors.Is(err, errGone):
		return "esrch"
	default:
		return "error"
	}
}

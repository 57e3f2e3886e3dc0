// Package runner executes the target project's build/test shell command:
// a bounded-time subprocess whose entire process group is terminated on
// timeout expiry.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/covergen/covergen/internal/logger"
)

// Result is the outcome of one command invocation.
type Result struct {
	Stdout      string
	Stderr      string
	ExitCode    int
	StartTimeMs int64
	DurationMs  int64
	TimedOut    bool
}

// CombinedOutput is the interleaved text an Error Classifier inspects.
func (r *Result) CombinedOutput() string {
	return r.Stdout + "\n" + r.Stderr
}

// Runner runs a shell command in a working directory with a hard timeout.
type Runner struct {
	// Shell is the interpreter used to run Command, e.g. "/bin/sh". Defaults
	// to "/bin/sh" with "-c" when empty.
	Shell string
}

// New returns a Runner using the default shell.
func New() *Runner {
	return &Runner{Shell: "/bin/sh"}
}

// Run executes command in cwd, killing the whole process group if it does
// not finish within timeout. A non-positive timeout means "no limit".
func (r *Runner) Run(ctx context.Context, command, cwd string, timeout time.Duration) (*Result, error) {
	shell := r.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	startedAt := time.Now()
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = cwd
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("runner: failed to start command: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		timeoutCh = timer.C
		defer timer.Stop()
	}

	select {
	case err := <-done:
		duration := time.Since(startedAt)
		exitCode := exitCodeOf(cmd, err)
		return &Result{
			Stdout:      stdout.String(),
			Stderr:      stderr.String(),
			ExitCode:    exitCode,
			StartTimeMs: startedAt.UnixMilli(),
			DurationMs:  duration.Milliseconds(),
		}, nil

	case <-timeoutCh:
		killProcessGroup(cmd)
		<-done // reap, ignore the (now-irrelevant) exit status
		logger.Warn("runner: command timed out after %s, process group killed", timeout)
		return &Result{
			Stdout:   "Timeout",
			Stderr:   "",
			ExitCode: -1,
			TimedOut: true,
		}, nil
	}
}

// killProcessGroup sends SIGTERM to the negative PID (the process group the
// child was made leader of via Setpgid), then SIGKILL shortly after if the
// group hasn't exited, so a test runner that ignores SIGTERM can't wedge the
// iteration controller forever.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid := cmd.Process.Pid
	_ = syscall.Kill(-pgid, syscall.SIGTERM)
	time.AfterFunc(2*time.Second, func() {
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
	})
}

// exitCodeOf extracts the exit code, including the 128+signal convention for
// signal-terminated processes.
func exitCodeOf(cmd *exec.Cmd, runErr error) int {
	ps := cmd.ProcessState
	if ps == nil {
		if runErr != nil {
			return -1
		}
		return 0
	}
	if code := ps.ExitCode(); code != -1 {
		return code
	}
	if status, ok := ps.Sys().(syscall.WaitStatus); ok {
		if status.Signaled() {
			return 128 + int(status.Signal())
		}
		if status.Exited() {
			return status.ExitStatus()
		}
	}
	return ps.ExitCode()
}

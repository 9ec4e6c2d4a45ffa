package mux

import (
	"context"
	"errors"
	"os/exec"
	"time"
)

// ExecStatus distinguishes how a one-shot command execution ended.
type ExecStatus string

const (
	StatusOK      ExecStatus = "ok"
	StatusError   ExecStatus = "error"
	StatusTimeout ExecStatus = "timeout"
)

// DefaultExecTimeout bounds one-shot command executions.
const DefaultExecTimeout = 30 * time.Second

// ExecResult is the outcome of a one-shot command execution. A timeout is
// a distinguished status, not a bare error.
type ExecResult struct {
	Status   ExecStatus `json:"status"`
	Output   string     `json:"output,omitempty"`
	ExitCode int        `json:"exit_code"`
	Err      error      `json:"-"`
}

// Exec runs command with args, combined output captured, bounded by
// timeout (0 means DefaultExecTimeout).
func Exec(ctx context.Context, timeout time.Duration, command string, args ...string) ExecResult {
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, command, args...)
	out, err := cmd.CombinedOutput()

	res := ExecResult{Output: string(out)}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Status = StatusTimeout
		res.ExitCode = -1
	case err != nil:
		res.Status = StatusError
		res.Err = err
		if exitErr := new(exec.ExitError); errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
		}
	default:
		res.Status = StatusOK
	}
	return res
}

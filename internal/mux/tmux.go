package mux

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/rixmerz/muxpilot/internal/model"
	"github.com/rixmerz/muxpilot/internal/safety"
)

// Tmux implements the Multiplexer interface for tmux.
type Tmux struct{}

// NewTmux creates a new tmux multiplexer.
func NewTmux() *Tmux {
	return &Tmux{}
}

// Name returns "tmux".
func (t *Tmux) Name() string {
	return "tmux"
}

// paneFormat asks tmux for the native handle alongside the structured
// coordinates so callers can register both with the identity resolver.
const paneFormat = "#{pane_id}\t#{session_name}:#{window_index}.#{pane_index}\t#{pane_pid}\t#{pane_current_command}"

// ListPanes returns all tmux panes, optionally filtered by session name pattern.
func (t *Tmux) ListPanes(ctx context.Context, filter string) ([]model.Pane, error) {
	out, err := t.run(ctx, "list-panes", "-a", "-F", paneFormat)
	if err != nil {
		return nil, fmt.Errorf("tmux list-panes: %w", err)
	}

	var re *regexp.Regexp
	if filter != "" {
		re, err = regexp.Compile(filter)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern %q: %w", filter, err)
		}
	}

	var panes []model.Pane
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 4)
		if len(parts) != 4 {
			continue
		}

		native := parts[0]
		target := parts[1]
		pid, _ := strconv.Atoi(parts[2])
		command := parts[3]

		session, window, pane, err := model.ParseTarget(target)
		if err != nil {
			continue
		}
		if re != nil && !re.MatchString(session) {
			continue
		}

		panes = append(panes, model.Pane{
			Target:  target,
			Native:  native,
			Session: session,
			Window:  window,
			Pane:    pane,
			PID:     pid,
			Command: command,
		})
	}

	return panes, nil
}

// CapturePane captures the visible content of a tmux pane.
// Uses -p (stdout) and -J (joined, unwraps lines).
func (t *Tmux) CapturePane(ctx context.Context, target string) (string, error) {
	out, err := t.run(ctx, "capture-pane", "-t", target, "-p", "-J")
	if err != nil {
		return "", fmt.Errorf("tmux capture-pane -t %s: %w", target, err)
	}
	return out, nil
}

// NewWindow creates a window in session, creating the session first when
// it does not exist, and returns the new pane's structured target.
func (t *Tmux) NewWindow(ctx context.Context, session, name string) (string, error) {
	if err := t.runSilent(ctx, "has-session", "-t", session); err != nil {
		if _, err := t.run(ctx, "new-session", "-d", "-s", session); err != nil {
			return "", fmt.Errorf("tmux new-session %s: %w", session, err)
		}
	}
	args := []string{"new-window", "-t", session, "-P", "-F", "#{session_name}:#{window_index}.#{pane_index}"}
	if name != "" {
		args = append(args, "-n", name)
	}
	out, err := t.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("tmux new-window: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// SplitPane splits target and returns the new pane's structured target.
func (t *Tmux) SplitPane(ctx context.Context, target string, vertical bool) (string, error) {
	direction := "-h"
	if vertical {
		direction = "-v"
	}
	out, err := t.run(ctx, "split-window", direction, "-t", target,
		"-P", "-F", "#{session_name}:#{window_index}.#{pane_index}")
	if err != nil {
		return "", fmt.Errorf("tmux split-window -t %s: %w", target, err)
	}
	return strings.TrimSpace(out), nil
}

// RenameWindow renames the window containing target.
func (t *Tmux) RenameWindow(ctx context.Context, target, name string) error {
	if _, err := t.run(ctx, "rename-window", "-t", target, name); err != nil {
		return fmt.Errorf("tmux rename-window -t %s: %w", target, err)
	}
	return nil
}

// SendCommand escapes command and types it into the pane, then sends an
// explicit Enter. The escaped command travels as a single send-keys
// argument, so the pane's shell sees exactly one command line.
func (t *Tmux) SendCommand(ctx context.Context, target, command string) error {
	escaped := safety.EscapeForSend(command)
	if _, err := t.run(ctx, "send-keys", "-t", target, escaped); err != nil {
		return fmt.Errorf("tmux send-keys -t %s: %w", target, err)
	}
	if _, err := t.run(ctx, "send-keys", "-t", target, "Enter"); err != nil {
		return fmt.Errorf("tmux send-keys Enter -t %s: %w", target, err)
	}
	return nil
}

// SendKeys sends a raw key sequence without escaping or a trailing Enter.
func (t *Tmux) SendKeys(ctx context.Context, target, keys string) error {
	if _, err := t.run(ctx, "send-keys", "-t", target, keys); err != nil {
		return fmt.Errorf("tmux send-keys -t %s: %w", target, err)
	}
	return nil
}

// PipePane pipes the pane's output to path via cat so the file grows as
// the pane produces output. An empty path stops an active pipe.
func (t *Tmux) PipePane(ctx context.Context, target, path string) error {
	args := []string{"pipe-pane", "-t", target}
	if path != "" {
		args = append(args, "-o", "cat >> "+shellQuote(path))
	}
	if _, err := t.run(ctx, args...); err != nil {
		return fmt.Errorf("tmux pipe-pane -t %s: %w", target, err)
	}
	return nil
}

// KillPane destroys the pane.
func (t *Tmux) KillPane(ctx context.Context, target string) error {
	if _, err := t.run(ctx, "kill-pane", "-t", target); err != nil {
		return fmt.Errorf("tmux kill-pane -t %s: %w", target, err)
	}
	return nil
}

// KillSession destroys the session and everything in it.
func (t *Tmux) KillSession(ctx context.Context, session string) error {
	if _, err := t.run(ctx, "kill-session", "-t", session); err != nil {
		return fmt.Errorf("tmux kill-session -t %s: %w", session, err)
	}
	return nil
}

// run executes a tmux command and returns its stdout.
func (t *Tmux) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("%w: %s", err, string(exitErr.Stderr))
		}
		return "", err
	}
	return string(out), nil
}

// runSilent executes a tmux command, discarding output. Used for
// existence probes where a non-zero exit is the answer, not an error.
func (t *Tmux) runSilent(ctx context.Context, args ...string) error {
	return exec.CommandContext(ctx, "tmux", args...).Run()
}

// shellQuote single-quotes s for the shell command tmux hands the pipe to.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

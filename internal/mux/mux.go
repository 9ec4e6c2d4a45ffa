// Package mux provides an abstraction over terminal multiplexers.
//
// Every operation is issued as an argument vector, never a single
// interpolated shell string. The one exception the protocol forces is the
// user-supplied command line inside SendCommand, which is escaped by the
// safety package before it becomes the single send-keys argument.
package mux

import (
	"context"

	"github.com/rixmerz/muxpilot/internal/model"
)

// Multiplexer abstracts terminal multiplexer operations.
// Implementations exist for tmux and (future) zellij.
type Multiplexer interface {
	// Name returns the multiplexer name (e.g., "tmux").
	Name() string

	// ListPanes returns all panes, optionally filtered by a session name
	// regex pattern. An empty filter returns all panes.
	ListPanes(ctx context.Context, filter string) ([]model.Pane, error)

	// CapturePane captures the visible content of a pane.
	CapturePane(ctx context.Context, target string) (string, error)

	// NewWindow creates a window in the session (creating the session if
	// needed) and returns the new pane's target.
	NewWindow(ctx context.Context, session, name string) (string, error)

	// SplitPane splits the target pane and returns the new pane's target.
	// Vertical splits stack top/bottom; horizontal splits sit side by side.
	SplitPane(ctx context.Context, target string, vertical bool) (string, error)

	// RenameWindow renames the window containing target.
	RenameWindow(ctx context.Context, target, name string) error

	// SendCommand types an escaped command line into the pane followed by
	// an explicit Enter keystroke.
	SendCommand(ctx context.Context, target, command string) error

	// SendKeys sends a raw key sequence (e.g., "C-c", "Enter") without
	// escaping or a trailing Enter.
	SendKeys(ctx context.Context, target, keys string) error

	// PipePane starts piping the pane's output to a file, so the tailer
	// can follow it. An empty path stops an active pipe.
	PipePane(ctx context.Context, target, path string) error

	// KillPane destroys the pane.
	KillPane(ctx context.Context, target string) error

	// KillSession destroys the session and everything in it.
	KillSession(ctx context.Context, session string) error
}

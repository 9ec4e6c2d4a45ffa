package mux

import (
	"fmt"
	"os"
	"os/exec"
)

// Detect picks the active terminal multiplexer: the one we are running
// inside per its environment variable, else a reachable tmux server.
func Detect() (Multiplexer, error) {
	switch {
	case os.Getenv("TMUX") != "":
		return NewTmux(), nil
	case os.Getenv("ZELLIJ") != "":
		return nil, fmt.Errorf("zellij support is not yet implemented")
	}

	if _, err := exec.LookPath("tmux"); err == nil {
		// A running server answers list-sessions; a bare binary does not.
		if exec.Command("tmux", "list-sessions").Run() == nil {
			return NewTmux(), nil
		}
	}

	return nil, fmt.Errorf("no supported terminal multiplexer detected (set $TMUX or install tmux)")
}

// FromName creates a Multiplexer by name.
func FromName(name string) (Multiplexer, error) {
	switch name {
	case "tmux":
		return NewTmux(), nil
	case "zellij":
		return nil, fmt.Errorf("zellij support is not yet implemented")
	default:
		return nil, fmt.Errorf("unknown multiplexer: %q (supported: tmux)", name)
	}
}

package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Pane represents a terminal multiplexer pane.
type Pane struct {
	// Target is the fully qualified pane identifier (e.g., "session:0.0").
	Target string `json:"target"`
	// Native is the multiplexer's own pane handle (e.g., "%12" for tmux).
	// Not stable across every tmux operation; use Target for anything
	// that outlives a single command.
	Native string `json:"native,omitempty"`
	// Session is the session name.
	Session string `json:"session"`
	// Window is the window index.
	Window int `json:"window"`
	// Pane is the pane index.
	Pane int `json:"pane"`
	// PID is the pane's shell process ID.
	PID int `json:"pid"`
	// Command is the current command running in the pane (e.g., "node", "bash").
	Command string `json:"command"`
}

// Kind is the severity of a classified diagnostic.
type Kind string

const (
	KindError   Kind = "error"
	KindWarning Kind = "warning"
	KindInfo    Kind = "info"
)

// Diagnostic is a single classified line from a log file or build subprocess.
// Immutable once created; the coordinator owns it after classification.
type Diagnostic struct {
	// ID is a unique identifier for this diagnostic.
	ID string `json:"id"`
	// Target is the monitored target this diagnostic belongs to.
	Target string `json:"target"`
	// File is the source file extracted from the line, if any.
	File string `json:"file,omitempty"`
	// Line is the 1-based source line number. 0 means absent.
	Line int `json:"line,omitempty"`
	// Column is the 1-based source column. 0 means absent.
	Column int `json:"column,omitempty"`
	// Message is the human-readable text. Defaults to the whole raw line
	// when the matching pattern has no message group.
	Message string `json:"message"`
	// Kind is the severity.
	Kind Kind `json:"kind"`
	// Language is the language of the pattern that matched (e.g.,
	// "typescript", "go"). Empty for generic patterns.
	Language string `json:"language,omitempty"`
	// Pattern is the name of the pattern that matched.
	Pattern string `json:"pattern,omitempty"`
	// Timestamp is when the line was classified, or the timestamp
	// extracted from the line itself when one is present.
	Timestamp time.Time `json:"timestamp"`
}

// NewDiagnosticID returns a fresh unique diagnostic id.
func NewDiagnosticID() string {
	return uuid.NewString()
}

// TriggerEvent is the payload emitted when the trigger orchestrator fires.
type TriggerEvent struct {
	// Category is the trigger category (e.g., "single_error", "crash").
	Category string `json:"category"`
	// Target is the monitored target that caused the fire.
	Target string `json:"target"`
	// Diagnostics are the recent diagnostics that justify the trigger,
	// newest last.
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	// FiredAt is when the trigger fired.
	FiredAt time.Time `json:"fired_at"`
}

// TokenUsage captures LLM token consumption for one analysis call.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Analysis is the LLM's structured assessment of a trigger payload.
type Analysis struct {
	// Summary is a one-line description of what went wrong.
	Summary string `json:"summary"`
	// RootCause is the analyzer's best guess at the underlying cause.
	RootCause string `json:"root_cause"`
	// Suggestion is a concrete next step for the developer.
	Suggestion string `json:"suggestion"`
	// Confidence is the analyzer's self-reported confidence, 0.0 to 1.0.
	Confidence float64 `json:"confidence"`
	// Usage records token consumption for this call.
	Usage TokenUsage `json:"-"`
}

// PortInfo describes a listening or connected port.
type PortInfo struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	State    string `json:"state"`
	PID      int    `json:"pid"`
}

// ProcessInfo describes an OS process.
type ProcessInfo struct {
	PID        int     `json:"pid"`
	Name       string  `json:"name"`
	Command    string  `json:"command"`
	Ports      []int   `json:"ports,omitempty"`
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float64 `json:"mem_percent"`
	Status     string  `json:"status"`
}

// SessionRecord is an opaque per-session metadata record. The core imposes
// no structure beyond the name; Data is stored and returned verbatim.
type SessionRecord struct {
	Name      string            `json:"name"`
	Data      map[string]string `json:"data,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// FormatTarget builds a structured pane target from its parts.
func FormatTarget(session string, window, pane int) string {
	return fmt.Sprintf("%s:%d.%d", session, window, pane)
}

// ParseTarget splits a structured target "session:window.pane" into parts.
func ParseTarget(target string) (session string, window, pane int, err error) {
	colonIdx := strings.LastIndex(target, ":")
	if colonIdx <= 0 {
		return "", 0, 0, fmt.Errorf("invalid target %q: missing ':'", target)
	}
	session = target[:colonIdx]
	rest := target[colonIdx+1:]

	dotIdx := strings.LastIndex(rest, ".")
	if dotIdx < 0 {
		return "", 0, 0, fmt.Errorf("invalid target %q: missing '.'", target)
	}

	window, err = strconv.Atoi(rest[:dotIdx])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid window index in %q: %w", target, err)
	}
	pane, err = strconv.Atoi(rest[dotIdx+1:])
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid pane index in %q: %w", target, err)
	}
	return session, window, pane, nil
}

// IsValidTarget checks for the structured target shape: session:window.pane
func IsValidTarget(target string) bool {
	_, _, _, err := ParseTarget(strings.TrimSpace(target))
	return err == nil
}

// IsNativeHandle reports whether s looks like a tmux native pane handle
// ("%" followed by digits).
func IsNativeHandle(s string) bool {
	if len(s) < 2 || s[0] != '%' {
		return false
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

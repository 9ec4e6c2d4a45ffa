// Package analyzer provides LLM-based root-cause analysis of trigger
// payloads.
//
// Go code formats the diagnostics and parses the response, but the
// judgment itself (what broke, why, what to do) comes from the LLM. The
// analyzer is strictly downstream of the trigger orchestrator: it never
// influences classification or debouncing.
package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rixmerz/muxpilot/internal/model"
)

// Analyzer sends a trigger payload to an LLM and returns its analysis.
type Analyzer interface {
	// Analyze formats the trigger's diagnostics into a prompt and returns
	// the parsed analysis.
	Analyze(ctx context.Context, ev model.TriggerEvent) (*model.Analysis, error)

	// Provider returns the provider name (e.g., "anthropic", "openai").
	Provider() string

	// Model returns the model name used for analysis.
	Model() string
}

// Config selects and configures a provider.
type Config struct {
	Provider  string
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int64
	// ExtraHeaders are additional HTTP headers.
	ExtraHeaders map[string]string
}

// New builds an analyzer for the configured provider.
func New(cfg Config) (Analyzer, error) {
	switch cfg.Provider {
	case "", "anthropic":
		return NewAnthropicAnalyzer(cfg), nil
	case "openai":
		return NewOpenAIAnalyzer(cfg), nil
	default:
		return nil, fmt.Errorf("unknown analyzer provider %q", cfg.Provider)
	}
}

// FormatPayload renders a trigger event as the prompt body sent to the
// LLM: one line of context followed by the diagnostics, oldest first.
func FormatPayload(ev model.TriggerEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Trigger: %s on target %s at %s\n\n",
		ev.Category, ev.Target, ev.FiredAt.Format("2006-01-02 15:04:05"))
	for _, d := range ev.Diagnostics {
		fmt.Fprintf(&b, "[%s]", d.Kind)
		if d.File != "" {
			fmt.Fprintf(&b, " %s", d.File)
			if d.Line > 0 {
				fmt.Fprintf(&b, ":%d", d.Line)
				if d.Column > 0 {
					fmt.Fprintf(&b, ":%d", d.Column)
				}
			}
		}
		fmt.Fprintf(&b, " %s\n", d.Message)
	}
	return b.String()
}

// stripMarkdownFences removes a surrounding ```json ... ``` (or plain
// ```) fence from an LLM response, leaving the inner content.
func stripMarkdownFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	// Drop the opening fence line (``` or ```json).
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		return strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// Package classify turns raw log lines into typed diagnostics.
//
// The engine holds an ordered cascade of regex patterns and tries each one
// in turn; the first match wins. Language-specific patterns (tsc, go,
// cargo, python, java) sit in front of two generic catch-alls seeded last,
// so every line containing common failure vocabulary is classified even
// when no language pattern recognizes it.
package classify

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rixmerz/muxpilot/internal/model"
)

// Pattern is a single classification rule. Capture groups are referenced
// by name: "file", "line", "col" and "msg". Any group may be absent; a
// missing or unparsable numeric group yields an absent field on the
// diagnostic, never a classification failure.
type Pattern struct {
	// Name identifies the pattern for Add/Remove. Duplicate names may
	// coexist; Remove takes out all of them.
	Name string
	// Matcher is the compiled regex with named capture groups.
	Matcher *regexp.Regexp
	// Kind is the severity assigned on match.
	Kind model.Kind
	// Language tags diagnostics produced by this pattern (e.g.,
	// "typescript"). Empty for generic patterns.
	Language string
}

// Engine is an ordered pattern cascade. Safe for concurrent use.
type Engine struct {
	mu       sync.RWMutex
	patterns []Pattern
	generic  []Pattern // catch-alls, always tried after patterns
}

// NewEngine returns an engine seeded with the stock language patterns and
// the generic catch-alls.
func NewEngine() *Engine {
	return &Engine{
		patterns: stockPatterns(),
		generic:  genericPatterns(),
	}
}

// NewEmptyEngine returns an engine with only the generic catch-alls.
func NewEmptyEngine() *Engine {
	return &Engine{generic: genericPatterns()}
}

// Add appends a pattern after the existing language patterns but before
// the generic catch-alls. Duplicate names are not rejected; layering a
// stricter variant of a stock pattern in front is legitimate, but note the
// earlier registration keeps precedence.
func (e *Engine) Add(p Pattern) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.patterns = append(e.patterns, p)
}

// Remove deletes every pattern with the given name. Generic catch-alls
// cannot be removed.
func (e *Engine) Remove(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.patterns[:0]
	for _, p := range e.patterns {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	e.patterns = kept
}

// Patterns returns the names of the live patterns in match order,
// including the generic tail.
func (e *Engine) Patterns() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.patterns)+len(e.generic))
	for _, p := range e.patterns {
		names = append(names, p.Name)
	}
	for _, p := range e.generic {
		names = append(names, p.Name)
	}
	return names
}

// Classify matches line against the cascade. Returns nil when no pattern
// matches. The preferLanguage hint, when non-empty, tries that language's
// patterns first so build-subprocess output lands on the right pattern
// even when vocabularies overlap.
func (e *Engine) Classify(line, target, preferLanguage string) *model.Diagnostic {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if preferLanguage != "" {
		for _, p := range e.patterns {
			if p.Language == preferLanguage {
				if d := e.apply(p, line, target); d != nil {
					return d
				}
			}
		}
	}
	for _, p := range e.patterns {
		if preferLanguage != "" && p.Language == preferLanguage {
			continue // already tried
		}
		if d := e.apply(p, line, target); d != nil {
			return d
		}
	}
	for _, p := range e.generic {
		if d := e.apply(p, line, target); d != nil {
			return d
		}
	}
	return nil
}

func (e *Engine) apply(p Pattern, line, target string) *model.Diagnostic {
	m := p.Matcher.FindStringSubmatch(line)
	if m == nil {
		return nil
	}

	d := &model.Diagnostic{
		ID:        model.NewDiagnosticID(),
		Target:    target,
		Message:   line,
		Kind:      p.Kind,
		Language:  p.Language,
		Pattern:   p.Name,
		Timestamp: time.Now().UTC(),
	}
	if ts, ok := ExtractTimestamp(line); ok {
		d.Timestamp = ts
	}

	for i, name := range p.Matcher.SubexpNames() {
		if i == 0 || i >= len(m) || m[i] == "" {
			continue
		}
		switch name {
		case "file":
			d.File = m[i]
		case "line":
			if n, err := strconv.Atoi(m[i]); err == nil {
				d.Line = n
			}
		case "col":
			if n, err := strconv.Atoi(m[i]); err == nil {
				d.Column = n
			}
		case "msg":
			d.Message = strings.TrimSpace(m[i])
		}
	}
	return d
}

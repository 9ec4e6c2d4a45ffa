package stream

import (
	"sort"
	"sync"
	"time"

	"github.com/rixmerz/muxpilot/internal/model"
)

// DefaultHistoryCapacity is the per-target bounded history size.
const DefaultHistoryCapacity = 100

// Window restricts aggregation queries to a recent time span.
type Window int

const (
	WindowAll Window = iota
	WindowHour
	WindowDay
)

// cutoff returns the earliest timestamp included in the window.
func (w Window) cutoff(now time.Time) time.Time {
	switch w {
	case WindowHour:
		return now.Add(-time.Hour)
	case WindowDay:
		return now.Add(-24 * time.Hour)
	default:
		return time.Time{}
	}
}

// Counts aggregates diagnostics by severity.
type Counts struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
}

func (c *Counts) add(k model.Kind) {
	switch k {
	case model.KindError:
		c.Errors++
	case model.KindWarning:
		c.Warnings++
	case model.KindInfo:
		c.Infos++
	}
}

// NamedCount pairs a grouping key (file path or pattern name) with its
// diagnostic count.
type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// history keeps a bounded FIFO of diagnostics per target.
type history struct {
	mu       sync.RWMutex
	capacity int
	targets  map[string][]model.Diagnostic
}

func newHistory(capacity int) *history {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &history{
		capacity: capacity,
		targets:  make(map[string][]model.Diagnostic),
	}
}

// append stores d, evicting the oldest entry once the target is at
// capacity. FIFO, not LRU: reads never reorder.
func (h *history) append(d model.Diagnostic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.targets[d.Target]
	if len(list) >= h.capacity {
		list = list[1:]
	}
	h.targets[d.Target] = append(list, d)
}

// clear removes a target's history. Returns false if there was none.
func (h *history) clear(target string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.targets[target]; !ok {
		return false
	}
	delete(h.targets, target)
	return true
}

func (h *history) clearAll() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	targets := make([]string, 0, len(h.targets))
	for target := range h.targets {
		targets = append(targets, target)
	}
	h.targets = make(map[string][]model.Diagnostic)
	sort.Strings(targets)
	return targets
}

// recent returns up to n most recent diagnostics for target, oldest first.
// An unknown target yields an empty, non-nil slice.
func (h *history) recent(target string, n int) []model.Diagnostic {
	h.mu.RLock()
	defer h.mu.RUnlock()
	list := h.targets[target]
	if n <= 0 || n > len(list) {
		n = len(list)
	}
	out := make([]model.Diagnostic, n)
	copy(out, list[len(list)-n:])
	return out
}

// summary counts diagnostics for one target ("" for all) within w.
func (h *history) summary(target string, w Window, now time.Time) Counts {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cutoff := w.cutoff(now)
	var c Counts
	for name, list := range h.targets {
		if target != "" && name != target {
			continue
		}
		for _, d := range list {
			if d.Timestamp.Before(cutoff) {
				continue
			}
			c.add(d.Kind)
		}
	}
	return c
}

// byTarget returns per-target counts within w.
func (h *history) byTarget(w Window, now time.Time) map[string]Counts {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cutoff := w.cutoff(now)
	out := make(map[string]Counts, len(h.targets))
	for name, list := range h.targets {
		var c Counts
		for _, d := range list {
			if d.Timestamp.Before(cutoff) {
				continue
			}
			c.add(d.Kind)
		}
		out[name] = c
	}
	return out
}

// top aggregates error diagnostics by key and returns the n largest
// groups, count-descending with name as the tiebreaker.
func (h *history) top(n int, w Window, now time.Time, key func(model.Diagnostic) string) []NamedCount {
	h.mu.RLock()
	counts := make(map[string]int)
	cutoff := w.cutoff(now)
	for _, list := range h.targets {
		for _, d := range list {
			if d.Kind != model.KindError || d.Timestamp.Before(cutoff) {
				continue
			}
			if k := key(d); k != "" {
				counts[k]++
			}
		}
	}
	h.mu.RUnlock()

	out := make([]NamedCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, NamedCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

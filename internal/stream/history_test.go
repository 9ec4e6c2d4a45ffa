package stream

import (
	"fmt"
	"testing"
	"time"

	"github.com/rixmerz/muxpilot/internal/model"
)

func diag(target string, kind model.Kind, file, pattern string, age time.Duration) model.Diagnostic {
	return model.Diagnostic{
		ID:        model.NewDiagnosticID(),
		Target:    target,
		Kind:      kind,
		File:      file,
		Pattern:   pattern,
		Message:   "m",
		Timestamp: time.Now().Add(-age),
	}
}

func TestHistory_FIFOEviction(t *testing.T) {
	h := newHistory(3)
	for i := 0; i < 5; i++ {
		d := diag("t", model.KindError, "", "p", 0)
		d.Message = fmt.Sprintf("msg-%d", i)
		h.append(d)
	}

	got := h.recent("t", 0)
	if len(got) != 3 {
		t.Fatalf("history holds %d, want capacity 3", len(got))
	}
	// Oldest evicted first.
	if got[0].Message != "msg-2" || got[2].Message != "msg-4" {
		t.Fatalf("unexpected retained range: %q .. %q", got[0].Message, got[2].Message)
	}
}

func TestHistory_RecentUnknownTargetIsEmpty(t *testing.T) {
	h := newHistory(10)
	got := h.recent("nope", 5)
	if got == nil || len(got) != 0 {
		t.Fatalf("got %v, want empty non-nil slice", got)
	}
}

func TestHistory_SummaryWindows(t *testing.T) {
	h := newHistory(10)
	h.append(diag("t", model.KindError, "", "p", 10*time.Minute))
	h.append(diag("t", model.KindWarning, "", "p", 2*time.Hour))
	h.append(diag("t", model.KindError, "", "p", 30*time.Hour))

	now := time.Now()
	if c := h.summary("t", WindowHour, now); c.Errors != 1 || c.Warnings != 0 {
		t.Fatalf("hour window: %+v", c)
	}
	if c := h.summary("t", WindowDay, now); c.Errors != 1 || c.Warnings != 1 {
		t.Fatalf("day window: %+v", c)
	}
	if c := h.summary("t", WindowAll, now); c.Errors != 2 || c.Warnings != 1 {
		t.Fatalf("all window: %+v", c)
	}
}

func TestHistory_GlobalAndPerTarget(t *testing.T) {
	h := newHistory(10)
	h.append(diag("a", model.KindError, "", "p", 0))
	h.append(diag("b", model.KindError, "", "p", 0))
	h.append(diag("b", model.KindWarning, "", "p", 0))

	now := time.Now()
	if c := h.summary("", WindowAll, now); c.Errors != 2 || c.Warnings != 1 {
		t.Fatalf("global: %+v", c)
	}
	per := h.byTarget(WindowAll, now)
	if per["a"].Errors != 1 || per["b"].Errors != 1 || per["b"].Warnings != 1 {
		t.Fatalf("per-target: %+v", per)
	}
}

func TestHistory_Top(t *testing.T) {
	h := newHistory(20)
	for i := 0; i < 3; i++ {
		h.append(diag("t", model.KindError, "a.go", "go-compile", 0))
	}
	h.append(diag("t", model.KindError, "b.go", "go-compile", 0))
	h.append(diag("t", model.KindWarning, "c.go", "cargo-warning", 0)) // warnings excluded

	top := h.top(2, WindowAll, time.Now(), func(d model.Diagnostic) string { return d.File })
	if len(top) != 2 || top[0].Name != "a.go" || top[0].Count != 3 || top[1].Name != "b.go" {
		t.Fatalf("top files: %+v", top)
	}
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]string{
		"tsc --watch":         "typescript",
		"npm run dev":         "javascript",
		"go build ./...":      "go",
		"cargo watch -x test": "rust",
		"pytest -x":           "python",
		"mvn compile":         "java",
		"ls -la":              "",
	}
	for cmd, want := range cases {
		if got := DetectLanguage(cmd); got != want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", cmd, got, want)
		}
	}
}

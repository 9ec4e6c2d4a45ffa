package classify

import (
	"regexp"
	"testing"
	"time"

	"github.com/rixmerz/muxpilot/internal/model"
)

func TestClassify_TypeScriptError(t *testing.T) {
	e := NewEngine()
	line := `src/index.ts(42,10): error TS2339: Property 'foo' does not exist on type 'string'.`

	d := e.Classify(line, "dev:0.0", "")
	if d == nil {
		t.Fatal("expected a diagnostic")
	}
	if d.Kind != model.KindError {
		t.Errorf("kind = %s, want error", d.Kind)
	}
	if d.Language != "typescript" {
		t.Errorf("language = %q, want typescript", d.Language)
	}
	if d.File != "src/index.ts" || d.Line != 42 || d.Column != 10 {
		t.Errorf("location = %s:%d:%d, want src/index.ts:42:10", d.File, d.Line, d.Column)
	}
	if d.Message != `Property 'foo' does not exist on type 'string'.` {
		t.Errorf("message = %q", d.Message)
	}
}

func TestClassify_GoCompileError(t *testing.T) {
	e := NewEngine()
	d := e.Classify("main.go:17:2: undefined: frobnicate", "t", "")
	if d == nil {
		t.Fatal("expected a diagnostic")
	}
	if d.Language != "go" || d.File != "main.go" || d.Line != 17 || d.Column != 2 {
		t.Fatalf("got %s %s:%d:%d", d.Language, d.File, d.Line, d.Column)
	}
}

func TestClassify_GenericErrorFallback(t *testing.T) {
	e := NewEngine()
	d := e.Classify("ERROR: Something went wrong!", "t", "")
	if d == nil {
		t.Fatal("expected a diagnostic")
	}
	if d.Kind != model.KindError {
		t.Errorf("kind = %s, want error", d.Kind)
	}
	if d.Pattern != "generic-error" {
		t.Errorf("pattern = %q, want generic-error", d.Pattern)
	}
	if d.Message != "ERROR: Something went wrong!" {
		t.Errorf("message should default to the whole line, got %q", d.Message)
	}
}

func TestClassify_GenericWarningFallback(t *testing.T) {
	e := NewEngine()
	d := e.Classify("DeprecationWarning: fs.exists is deprecated", "t", "")
	if d == nil {
		t.Fatal("expected a diagnostic")
	}
	if d.Kind != model.KindWarning {
		t.Errorf("kind = %s, want warning", d.Kind)
	}
}

func TestClassify_NoMatch(t *testing.T) {
	e := NewEngine()
	if d := e.Classify("компиляция прошла успешно", "t", ""); d != nil {
		t.Fatalf("unexpected diagnostic: %+v", d)
	}
}

func TestClassify_FirstMatchWins(t *testing.T) {
	e := NewEmptyEngine()
	e.Add(Pattern{
		Name:    "first",
		Matcher: regexp.MustCompile(`boom`),
		Kind:    model.KindWarning,
	})
	e.Add(Pattern{
		Name:    "second",
		Matcher: regexp.MustCompile(`boom`),
		Kind:    model.KindError,
	})

	d := e.Classify("boom", "t", "")
	if d == nil || d.Pattern != "first" {
		t.Fatalf("expected first pattern to win, got %+v", d)
	}
}

func TestClassify_LanguagePreference(t *testing.T) {
	// "error: message" is shared vocabulary; with a rust hint the cargo
	// pattern should win even though other patterns precede it.
	e := NewEngine()
	d := e.Classify("error[E0308]: mismatched types", "t", "rust")
	if d == nil || d.Language != "rust" {
		t.Fatalf("expected rust classification, got %+v", d)
	}
}

func TestClassify_NumericParseFailureIsAbsentField(t *testing.T) {
	e := NewEmptyEngine()
	e.Add(Pattern{
		Name:    "loose",
		Matcher: regexp.MustCompile(`^(?P<file>\S+):(?P<line>\w+): (?P<msg>.+)$`),
		Kind:    model.KindError,
	})

	d := e.Classify("thing.c:abc: broken", "t", "")
	if d == nil {
		t.Fatal("expected a diagnostic")
	}
	if d.Line != 0 {
		t.Errorf("line = %d, want absent (0)", d.Line)
	}
	if d.File != "thing.c" || d.Message != "broken" {
		t.Errorf("got file=%q msg=%q", d.File, d.Message)
	}
}

func TestAddRemove(t *testing.T) {
	e := NewEmptyEngine()
	p := Pattern{Name: "custom", Matcher: regexp.MustCompile(`xyzzy`), Kind: model.KindError}
	e.Add(p)
	e.Add(p) // duplicate names coexist

	if d := e.Classify("xyzzy", "t", ""); d == nil {
		t.Fatal("custom pattern did not match")
	}

	e.Remove("custom")
	if d := e.Classify("xyzzy", "t", ""); d != nil {
		t.Fatalf("removed pattern still matched: %+v", d)
	}
}

func TestExtractTimestamp(t *testing.T) {
	ts, ok := ExtractTimestamp("2024-05-01T12:03:04+02:00 ERROR boom")
	if !ok {
		t.Fatal("expected ISO timestamp to parse")
	}
	if ts.Hour() != 12 || ts.Minute() != 3 {
		t.Fatalf("got %v", ts)
	}

	ts, ok = ExtractTimestamp("[2024-05-01 12:03:04] started")
	if !ok || ts.Year() != 2024 {
		t.Fatalf("bracketed ISO: ok=%v ts=%v", ok, ts)
	}

	ts, ok = ExtractTimestamp("[12:03:04] listening")
	if !ok || ts.Hour() != 12 || ts.Day() != time.Now().Day() {
		t.Fatalf("bracketed clock: ok=%v ts=%v", ok, ts)
	}

	if _, ok := ExtractTimestamp("no timestamp here"); ok {
		t.Fatal("expected no timestamp")
	}
}

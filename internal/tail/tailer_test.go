package tail

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// sink collects appended text, safe for concurrent delivery.
type sink struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (s *sink) append(_, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.WriteString(text)
}

func (s *sink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func newTestTailer(t *testing.T) *Tailer {
	t.Helper()
	tl, err := New()
	if err != nil {
		t.Fatalf("new tailer: %v", err)
	}
	t.Cleanup(tl.StopAll)
	return tl
}

func appendFile(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	if _, err := f.WriteString(text); err != nil {
		t.Fatalf("append %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
}

func TestTailer_DeliversOnlyNewBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	appendFile(t, path, "first\n")

	tl := newTestTailer(t)
	var out sink
	if err := tl.Watch(path, out.append); err != nil {
		t.Fatalf("watch: %v", err)
	}

	appendFile(t, path, "second\n")
	waitFor(t, func() bool { return strings.Contains(out.String(), "second") })

	appendFile(t, path, "third\n")
	waitFor(t, func() bool { return strings.Contains(out.String(), "third") })

	// Pre-existing content is small, so it replays exactly once; nothing
	// is ever delivered twice.
	if got, want := out.String(), "first\nsecond\nthird\n"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTailer_LargeExistingFileStartsAtEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.log")
	appendFile(t, path, strings.Repeat("x", 2048))

	tl := newTestTailer(t)
	tl.MaxInitialBytes = 1024
	var out sink
	if err := tl.Watch(path, out.append); err != nil {
		t.Fatalf("watch: %v", err)
	}

	appendFile(t, path, "fresh\n")
	waitFor(t, func() bool { return out.String() != "" })

	if got := out.String(); got != "fresh\n" {
		t.Fatalf("got %q, want only the appended bytes", got)
	}
}

func TestTailer_TruncationResetsOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rotate.log")
	appendFile(t, path, "old content\n")

	tl := newTestTailer(t)
	var out sink
	if err := tl.Watch(path, out.append); err != nil {
		t.Fatalf("watch: %v", err)
	}

	appendFile(t, path, "more\n")
	waitFor(t, func() bool { return strings.Contains(out.String(), "more") })

	// Truncate below the recorded offset, then write fresh content.
	if err := os.Truncate(path, 0); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	// The truncation event itself must not emit anything; poke the file
	// and expect delivery from the new start only.
	appendFile(t, path, "after rotate\n")
	waitFor(t, func() bool { return strings.Contains(out.String(), "after rotate") })

	if strings.Count(out.String(), "old content") > 1 {
		t.Fatalf("old content re-delivered after truncation: %q", out.String())
	}
}

func TestTailer_StopForgetsOffset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.log")
	appendFile(t, path, "a\n")

	tl := newTestTailer(t)
	var out sink
	if err := tl.Watch(path, out.append); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if !tl.Watching(path) {
		t.Fatal("expected Watching to report true")
	}

	tl.Stop(path)
	if tl.Watching(path) {
		t.Fatal("expected Watching to report false after Stop")
	}

	appendFile(t, path, "b\n")
	time.Sleep(100 * time.Millisecond)
	if strings.Contains(out.String(), "b") {
		t.Fatalf("stopped watch still delivered: %q", out.String())
	}
}

func TestTailer_DoubleWatchRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "d.log")
	appendFile(t, path, "")

	tl := newTestTailer(t)
	var out sink
	if err := tl.Watch(path, out.append); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if err := tl.Watch(path, out.append); err == nil {
		t.Fatal("expected second watch of the same path to fail")
	}
}

func TestTailer_IndependentOffsets(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.log")
	b := filepath.Join(dir, "b.log")
	appendFile(t, a, "")
	appendFile(t, b, "")

	tl := newTestTailer(t)
	var outA, outB sink
	if err := tl.Watch(a, outA.append); err != nil {
		t.Fatalf("watch a: %v", err)
	}
	if err := tl.Watch(b, outB.append); err != nil {
		t.Fatalf("watch b: %v", err)
	}

	appendFile(t, a, "alpha\n")
	appendFile(t, b, "beta\n")
	waitFor(t, func() bool {
		return strings.Contains(outA.String(), "alpha") && strings.Contains(outB.String(), "beta")
	})

	if strings.Contains(outA.String(), "beta") || strings.Contains(outB.String(), "alpha") {
		t.Fatal("cross-file delivery detected")
	}
}

package stream

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rixmerz/muxpilot/internal/bus"
	"github.com/rixmerz/muxpilot/internal/classify"
	"github.com/rixmerz/muxpilot/internal/model"
	"github.com/rixmerz/muxpilot/internal/tail"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *bus.Bus) {
	t.Helper()
	tl, err := tail.New()
	if err != nil {
		t.Fatalf("tailer: %v", err)
	}
	t.Cleanup(tl.StopAll)

	b := bus.New()
	t.Cleanup(b.Close)

	c := NewCoordinator(Config{
		Engine: classify.NewEngine(),
		Tailer: tl,
		Bus:    b,
		Logger: slog.New(slog.DiscardHandler),
	})
	t.Cleanup(c.StopAll)
	return c, b
}

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

func TestCoordinator_TailedLogIsClassified(t *testing.T) {
	c, b := newTestCoordinator(t)
	diags := b.SubscribeDiagnostics()

	dir := t.TempDir()
	logPath := filepath.Join(dir, "build.log")
	if err := os.WriteFile(logPath, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := c.WatchTarget(context.Background(), "dev:0.0", logPath, ""); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if !c.Watching("dev:0.0") {
		t.Fatal("expected Watching to report true")
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("src/index.ts(42,10): error TS2339: Property 'foo' does not exist on type 'string'.\nall good here\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	select {
	case d := <-diags:
		if d.Target != "dev:0.0" || d.Kind != model.KindError || d.Language != "typescript" {
			t.Fatalf("unexpected diagnostic: %+v", d)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no diagnostic published")
	}

	recent := c.Recent("dev:0.0", 10)
	if len(recent) != 1 {
		t.Fatalf("history holds %d diagnostics, want 1 (benign line must not classify)", len(recent))
	}
}

func TestCoordinator_MissingLogFileDegrades(t *testing.T) {
	c, _ := newTestCoordinator(t)
	err := c.WatchTarget(context.Background(), "dev:0.1", "/nonexistent/path/x.log", "")
	if err != nil {
		t.Fatalf("missing log file should not error the watch: %v", err)
	}
	if got := c.Recent("dev:0.1", 5); len(got) != 0 {
		t.Fatalf("expected empty results, got %v", got)
	}
}

func TestCoordinator_DuplicateWatchRejected(t *testing.T) {
	c, _ := newTestCoordinator(t)
	ctx := context.Background()
	if err := c.WatchTarget(ctx, "dev:0.2", "", ""); err != nil {
		t.Fatal(err)
	}
	if err := c.WatchTarget(ctx, "dev:0.2", "", ""); err == nil {
		t.Fatal("expected duplicate watch to fail")
	}
}

func TestCoordinator_SubprocessOutputClassified(t *testing.T) {
	c, _ := newTestCoordinator(t)

	done := make(chan struct{})
	emit := func(line, language string) {
		c.classifyLine("dev:1.0", line, language)
	}
	onExit := func(error) { close(done) }

	_, err := startBuildWatcher(context.Background(), "dev:1.0",
		"echo 'main.go:3:1: undefined: frob'", "go", emit, onExit,
		slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	<-done

	waitFor(t, func() bool { return len(c.Recent("dev:1.0", 5)) > 0 })
	d := c.Recent("dev:1.0", 5)[0]
	if d.Language != "go" || d.File != "main.go" || d.Line != 3 {
		t.Fatalf("unexpected diagnostic: %+v", d)
	}
}

func TestCoordinator_SubprocessCrashRecorded(t *testing.T) {
	c, _ := newTestCoordinator(t)

	exited := make(chan error, 1)
	_, err := startBuildWatcher(context.Background(), "dev:1.1",
		"exit 3", "go",
		func(string, string) {},
		func(err error) {
			c.store(crashDiagnostic("dev:1.1", "exit 3", err))
			exited <- err
		},
		slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	select {
	case exitErr := <-exited:
		if exitErr == nil {
			t.Fatal("expected non-nil exit error for status 3")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("subprocess did not exit")
	}

	recent := c.Recent("dev:1.1", 5)
	if len(recent) != 1 || recent[0].Pattern != CrashPattern {
		t.Fatalf("expected crash diagnostic, got %+v", recent)
	}
	if !strings.Contains(recent[0].Message, "exit 3") {
		t.Fatalf("crash message missing command: %q", recent[0].Message)
	}
}

func TestCoordinator_ClearHistoryEmitsClear(t *testing.T) {
	c, b := newTestCoordinator(t)
	clears := b.SubscribeClears()

	c.Ingest(model.Diagnostic{Target: "dev:2.0", Kind: model.KindError, Message: "x"})
	c.ClearHistory("dev:2.0")

	select {
	case ev := <-clears:
		if ev.Target != "dev:2.0" {
			t.Fatalf("clear for %q", ev.Target)
		}
	case <-time.After(time.Second):
		t.Fatal("no clear event")
	}
	if got := c.Recent("dev:2.0", 5); len(got) != 0 {
		t.Fatalf("history survived clear: %v", got)
	}
}

func TestCoordinator_IngestFillsDefaults(t *testing.T) {
	c, _ := newTestCoordinator(t)
	c.Ingest(model.Diagnostic{Target: "dev:3.0", Kind: model.KindWarning, Message: "w"})

	got := c.Recent("dev:3.0", 1)
	if len(got) != 1 {
		t.Fatal("ingested diagnostic not stored")
	}
	if got[0].ID == "" || got[0].Timestamp.IsZero() {
		t.Fatalf("defaults not filled: %+v", got[0])
	}
}

package dashboard

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rixmerz/muxpilot/internal/bus"
	"github.com/rixmerz/muxpilot/internal/classify"
	"github.com/rixmerz/muxpilot/internal/model"
	"github.com/rixmerz/muxpilot/internal/safety"
	"github.com/rixmerz/muxpilot/internal/stream"
	"github.com/rixmerz/muxpilot/internal/tail"
)

// newTestModel builds a dashModel around a coordinator pre-loaded with
// diagnostics for two targets.
func newTestModel(t *testing.T) *dashModel {
	t.Helper()
	tl, err := tail.New()
	if err != nil {
		t.Fatalf("tailer: %v", err)
	}
	t.Cleanup(tl.StopAll)

	b := bus.New()
	t.Cleanup(b.Close)

	coord := stream.NewCoordinator(stream.Config{
		Engine: classify.NewEngine(),
		Tailer: tl,
		Bus:    b,
		Logger: slog.New(slog.DiscardHandler),
	})
	t.Cleanup(coord.StopAll)

	now := time.Now().UTC()
	coord.Ingest(model.Diagnostic{Target: "api:0.1", Message: "undefined: foo", Kind: model.KindError, File: "main.go", Line: 3, Timestamp: now})
	coord.Ingest(model.Diagnostic{Target: "api:0.1", Message: "deprecated API", Kind: model.KindWarning, Timestamp: now})
	coord.Ingest(model.Diagnostic{Target: "web:1.0", Message: "listening on :3000", Kind: model.KindInfo, Timestamp: now})

	m := &dashModel{
		coord:           coord,
		diags:           b.SubscribeDiagnostics(),
		triggers:        b.SubscribeTriggers(),
		refreshInterval: time.Second,
		st:              newStyles(DarkTheme()),
		window:          stream.WindowAll,
		ctx:             context.Background(),
		validator:       &safety.Validator{},
		input:           textinput.New(),
		width:           100,
		height:          40,
	}
	m.refresh()
	return m
}

func TestRefresh_SortsTargets(t *testing.T) {
	m := newTestModel(t)
	if len(m.targets) != 2 {
		t.Fatalf("expected 2 targets, got %v", m.targets)
	}
	if m.targets[0] != "api:0.1" || m.targets[1] != "web:1.0" {
		t.Fatalf("targets not sorted: %v", m.targets)
	}
}

func TestRefresh_KeepsCursorOnTarget(t *testing.T) {
	m := newTestModel(t)
	m.cursor = 1 // web:1.0
	m.coord.Ingest(model.Diagnostic{Target: "aaa:0.0", Message: "boom", Kind: model.KindError, Timestamp: time.Now().UTC()})
	m.refresh()

	if got := m.selectedTarget(); got != "web:1.0" {
		t.Fatalf("cursor lost its target: selected %q", got)
	}
}

func TestView_ShowsCountsAndRecent(t *testing.T) {
	m := newTestModel(t)
	out := m.View()

	if !strings.Contains(out, "api:0.1") || !strings.Contains(out, "web:1.0") {
		t.Fatalf("targets missing from view:\n%s", out)
	}
	if !strings.Contains(out, "undefined: foo") {
		t.Fatalf("recent diagnostics for selected target missing:\n%s", out)
	}
	if !strings.Contains(out, "main.go:3") {
		t.Fatalf("file location missing:\n%s", out)
	}
}

func TestKeyNavigation(t *testing.T) {
	m := newTestModel(t)
	if m.cursor != 0 {
		t.Fatalf("expected cursor at 0, got %d", m.cursor)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 1 {
		t.Fatalf("down: expected cursor 1, got %d", m.cursor)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 1 {
		t.Fatalf("down at end: expected cursor clamped at 1, got %d", m.cursor)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if m.cursor != 0 {
		t.Fatalf("up: expected cursor 0, got %d", m.cursor)
	}
}

func TestKeyClear_DropsSelectedTarget(t *testing.T) {
	m := newTestModel(t)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})

	if len(m.targets) != 1 || m.targets[0] != "web:1.0" {
		t.Fatalf("expected cleared target to drop from view, got %v", m.targets)
	}
}

func TestWindowCycle(t *testing.T) {
	if nextWindow(stream.WindowAll) != stream.WindowHour {
		t.Error("all -> hour")
	}
	if nextWindow(stream.WindowHour) != stream.WindowDay {
		t.Error("hour -> day")
	}
	if nextWindow(stream.WindowDay) != stream.WindowAll {
		t.Error("day -> all")
	}
}

func TestTriggerTickerBounded(t *testing.T) {
	m := newTestModel(t)
	for i := 0; i < tickerDepth+3; i++ {
		m.Update(triggerMsg(model.TriggerEvent{Category: "single_error", Target: "api:0.1", FiredAt: time.Now()}))
	}
	if len(m.triggerLog) != tickerDepth {
		t.Fatalf("expected ticker bounded at %d, got %d", tickerDepth, len(m.triggerLog))
	}
}

func TestSendPrompt_SendsToSelectedTarget(t *testing.T) {
	m := newTestModel(t)

	var gotTarget, gotCommand string
	m.send = func(_ context.Context, target, command string) error {
		gotTarget, gotCommand = target, command
		return nil
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	if !m.inputting {
		t.Fatal("expected send prompt to open")
	}

	m.input.SetValue("npm run build")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if m.inputting {
		t.Error("expected send prompt to close after enter")
	}
	if gotTarget != "api:0.1" {
		t.Errorf("expected send to api:0.1, got %q", gotTarget)
	}
	if gotCommand != "npm run build" {
		t.Errorf("expected command passed through, got %q", gotCommand)
	}
}

func TestSendPrompt_RejectsDangerousCommand(t *testing.T) {
	m := newTestModel(t)

	sent := false
	m.send = func(_ context.Context, _, _ string) error {
		sent = true
		return nil
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m.input.SetValue("rm -rf /")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if sent {
		t.Error("dangerous command must not be sent")
	}
	if !strings.Contains(m.message, "rejected") {
		t.Errorf("expected rejection message, got %q", m.message)
	}
}

func TestSendPrompt_HiddenWithoutSendFunc(t *testing.T) {
	m := newTestModel(t)
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	if m.inputting {
		t.Error("send prompt must stay closed when no send func is wired")
	}
}

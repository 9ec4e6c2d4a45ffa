package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rixmerz/muxpilot/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	return s
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec := model.SessionRecord{
		Name: "dev",
		Data: map[string]string{"project": "web", "branch": "main"},
	}
	if err := s.PutSession(ctx, rec); err != nil {
		t.Fatalf("put session: %v", err)
	}

	got, err := s.GetSession(ctx, "dev")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Name != "dev" || got.Data["project"] != "web" || got.Data["branch"] != "main" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatalf("updated_at not set")
	}
}

func TestPutSessionReplacesData(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.PutSession(ctx, model.SessionRecord{Name: "dev", Data: map[string]string{"a": "1", "b": "2"}}); err != nil {
		t.Fatalf("put session: %v", err)
	}
	if err := s.PutSession(ctx, model.SessionRecord{Name: "dev", Data: map[string]string{"a": "9"}}); err != nil {
		t.Fatalf("put session again: %v", err)
	}

	got, err := s.GetSession(ctx, "dev")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Data["a"] != "9" {
		t.Fatalf("data not replaced: %+v", got.Data)
	}
	if _, ok := got.Data["b"]; ok {
		t.Fatalf("stale key survived replacement: %+v", got.Data)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetSession(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.PutSession(ctx, model.SessionRecord{Name: "dev"}); err != nil {
		t.Fatalf("put session: %v", err)
	}
	if err := s.DeleteSession(ctx, "dev"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := s.GetSession(ctx, "dev"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteSession(ctx, "dev"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for second delete, got %v", err)
	}
}

func TestListSessionsOrdered(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := s.PutSession(ctx, model.SessionRecord{Name: name}); err != nil {
			t.Fatalf("put session %s: %v", name, err)
		}
	}

	got, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(got))
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("position %d: got %s, want %s", i, got[i].Name, name)
		}
	}
}

func TestDiagnosticsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Now().UTC()
	diags := []model.Diagnostic{
		{ID: "d1", Target: "dev:0.1", File: "main.go", Line: 3, Column: 1, Message: "undefined: foo", Kind: model.KindError, Language: "go", Pattern: "go-compile", Timestamp: now.Add(-time.Minute)},
		{ID: "d2", Target: "dev:0.1", Message: "deprecated API", Kind: model.KindWarning, Timestamp: now},
		{ID: "d3", Target: "dev:0.2", Message: "elsewhere", Kind: model.KindError, Timestamp: now},
	}
	if err := s.SaveDiagnostics(ctx, diags); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}

	got, err := s.ListDiagnostics(ctx, "dev:0.1", 0)
	if err != nil {
		t.Fatalf("list diagnostics: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 diagnostics for dev:0.1, got %d", len(got))
	}
	if got[0].ID != "d2" || got[1].ID != "d1" {
		t.Fatalf("expected newest first, got %s then %s", got[0].ID, got[1].ID)
	}
	if got[1].File != "main.go" || got[1].Line != 3 || got[1].Kind != model.KindError {
		t.Fatalf("fields lost on round trip: %+v", got[1])
	}

	limited, err := s.ListDiagnostics(ctx, "dev:0.1", 1)
	if err != nil {
		t.Fatalf("list diagnostics limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "d2" {
		t.Fatalf("limit not applied: %+v", limited)
	}
}

func TestPurgeDiagnostics(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Now().UTC()
	diags := []model.Diagnostic{
		{ID: "old", Target: "dev:0.1", Message: "stale", Kind: model.KindError, Timestamp: now.Add(-48 * time.Hour)},
		{ID: "new", Target: "dev:0.1", Message: "fresh", Kind: model.KindError, Timestamp: now},
	}
	if err := s.SaveDiagnostics(ctx, diags); err != nil {
		t.Fatalf("save diagnostics: %v", err)
	}
	if err := s.PurgeDiagnostics(ctx, now.Add(-24*time.Hour)); err != nil {
		t.Fatalf("purge diagnostics: %v", err)
	}

	got, err := s.ListDiagnostics(ctx, "dev:0.1", 0)
	if err != nil {
		t.Fatalf("list diagnostics: %v", err)
	}
	if len(got) != 1 || got[0].ID != "new" {
		t.Fatalf("expected only fresh diagnostic, got %+v", got)
	}
}

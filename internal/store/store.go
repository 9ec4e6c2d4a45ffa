// Package store persists session metadata and diagnostic snapshots in a
// local sqlite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rixmerz/muxpilot/internal/model"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	name TEXT PRIMARY KEY,
	data TEXT NOT NULL DEFAULT '{}',
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS diagnostics (
	id TEXT PRIMARY KEY,
	target TEXT NOT NULL,
	file TEXT NOT NULL DEFAULT '',
	line INTEGER NOT NULL DEFAULT 0,
	col INTEGER NOT NULL DEFAULT 0,
	message TEXT NOT NULL,
	kind TEXT NOT NULL,
	language TEXT NOT NULL DEFAULT '',
	pattern TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_diagnostics_target ON diagnostics(target, created_at);
`

// Open creates or opens the database at path, applying the schema. The
// parent directory is created if missing and the file is kept private.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		db.Close()
		return nil, fmt.Errorf("chmod db path: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// PutSession upserts a session record, replacing its data wholesale.
func (s *Store) PutSession(ctx context.Context, rec model.SessionRecord) error {
	if rec.Name == "" {
		return fmt.Errorf("session name is required")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	data := rec.Data
	if data == nil {
		data = map[string]string{}
	}
	buf, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO sessions(name, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	data=excluded.data,
	updated_at=excluded.updated_at
`, rec.Name, string(buf), ts(rec.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// GetSession returns the record for name, or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, name string) (model.SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT name, data, updated_at FROM sessions WHERE name = ?`, name)
	return scanSession(row)
}

// DeleteSession removes the record for name, or returns ErrNotFound.
func (s *Store) DeleteSession(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSessions returns all session records ordered by name.
func (s *Store) ListSessions(ctx context.Context) ([]model.SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, data, updated_at FROM sessions ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]model.SessionRecord, 0)
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iter sessions: %w", err)
	}
	return out, nil
}

// SaveDiagnostics appends a batch of diagnostics in one transaction.
func (s *Store) SaveDiagnostics(ctx context.Context, diags []model.Diagnostic) error {
	if len(diags) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin diagnostics tx: %w", err)
	}
	for _, d := range diags {
		if _, err := tx.ExecContext(ctx, `
INSERT OR REPLACE INTO diagnostics(id, target, file, line, col, message, kind, language, pattern, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, d.ID, d.Target, d.File, d.Line, d.Column, d.Message, string(d.Kind), d.Language, d.Pattern, ts(d.Timestamp)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert diagnostic: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit diagnostics tx: %w", err)
	}
	return nil
}

// ListDiagnostics returns the most recent diagnostics for a target,
// newest first. A limit of 0 means no limit.
func (s *Store) ListDiagnostics(ctx context.Context, target string, limit int) ([]model.Diagnostic, error) {
	query := `
SELECT id, target, file, line, col, message, kind, language, pattern, created_at
FROM diagnostics
WHERE target = ?
ORDER BY created_at DESC, id DESC
`
	args := []any{target}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list diagnostics: %w", err)
	}
	defer rows.Close()

	out := make([]model.Diagnostic, 0)
	for rows.Next() {
		var (
			d         model.Diagnostic
			kind      string
			createdAt string
		)
		if err := rows.Scan(&d.ID, &d.Target, &d.File, &d.Line, &d.Column, &d.Message, &kind, &d.Language, &d.Pattern, &createdAt); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		d.Kind = model.Kind(kind)
		d.Timestamp, err = parseTS(createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse diagnostic created_at: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iter diagnostics: %w", err)
	}
	return out, nil
}

// PurgeDiagnostics deletes diagnostics older than the cutoff.
func (s *Store) PurgeDiagnostics(ctx context.Context, cutoff time.Time) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM diagnostics WHERE created_at < ?`, ts(cutoff)); err != nil {
		return fmt.Errorf("purge diagnostics: %w", err)
	}
	return nil
}

func scanSession(scanner interface{ Scan(dest ...any) error }) (model.SessionRecord, error) {
	var (
		rec       model.SessionRecord
		data      string
		updatedAt string
	)
	if err := scanner.Scan(&rec.Name, &data, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.SessionRecord{}, ErrNotFound
		}
		return model.SessionRecord{}, fmt.Errorf("scan session: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &rec.Data); err != nil {
		return model.SessionRecord{}, fmt.Errorf("decode session data: %w", err)
	}
	var err error
	rec.UpdatedAt, err = parseTS(updatedAt)
	if err != nil {
		return model.SessionRecord{}, fmt.Errorf("parse session updated_at: %w", err)
	}
	return rec, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

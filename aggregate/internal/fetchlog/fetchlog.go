// Package fetchlog persists per-attempt fetch diagnostics to SQLite.
//
// The log is strictly observational: served items never come from here,
// and a failing write never affects a response. One row per live fetch
// state attempt, queried by the debug endpoint.
package fetchlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS fetch_log (
	id          TEXT PRIMARY KEY,
	module      TEXT NOT NULL,
	state       TEXT NOT NULL,
	status      TEXT NOT NULL,
	items       INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fetch_log_module ON fetch_log(module, created_at DESC);
`

// Entry is one fetch attempt record.
type Entry struct {
	ID         string `json:"id"`
	Module     string `json:"module"`
	State      string `json:"state"`
	Status     string `json:"status"` // ok | error | timeout | blocked
	Items      int    `json:"items"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	CreatedAt  int64  `json:"created_at"`
}

// Log writes and reads fetch diagnostics.
type Log struct {
	db *sql.DB
}

// Open opens (creating if needed) the log database at path and applies
// the production pragmas: WAL journaling and a busy timeout so concurrent
// module runs never fail a write on lock contention.
func Open(path string) (*Log, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("fetchlog: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("fetchlog: open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("fetchlog: %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("fetchlog: schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Insert records one attempt. The ID and timestamp are filled if unset.
func (l *Log) Insert(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = "fl_" + uuid.NewString()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO fetch_log (id, module, state, status, items, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Module, e.State, e.Status, e.Items, e.Error, e.DurationMs, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("fetchlog: insert: %w", err)
	}
	return nil
}

// Recent returns the newest entries, optionally filtered by module.
func (l *Log) Recent(ctx context.Context, module string, limit int) ([]*Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT id, module, state, status, items, error, duration_ms, created_at
		FROM fetch_log`
	args := []any{}
	if module != "" {
		query += ` WHERE module = ?`
		args = append(args, module)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetchlog: query: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.ID, &e.Module, &e.State, &e.Status, &e.Items,
			&e.Error, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("fetchlog: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Cleanup deletes entries older than the retention window.
func (l *Log) Cleanup(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().Add(-retention).Unix()
	if _, err := l.db.ExecContext(ctx,
		`DELETE FROM fetch_log WHERE created_at < ?`, cutoff); err != nil {
		return fmt.Errorf("fetchlog: cleanup: %w", err)
	}
	return nil
}

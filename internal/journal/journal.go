package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"pkt.systems/devdeck/schema"
	"pkt.systems/pslog"
)

// FileName is the journal database name inside the data directory.
const FileName = "activity.db"

const createTable = `
CREATE TABLE IF NOT EXISTS activity (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	at       INTEGER NOT NULL,
	kind     TEXT    NOT NULL,
	seconds  INTEGER NOT NULL DEFAULT 0,
	language TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS activity_at ON activity(at);
`

// Entry is one journaled activity event.
type Entry struct {
	ID       int64               `json:"id"`
	At       time.Time           `json:"at"`
	Kind     schema.ActivityKind `json:"kind"`
	Seconds  int64               `json:"seconds,omitempty"`
	Language schema.Language     `json:"language,omitempty"`
}

// Total aggregates entries of one kind.
type Total struct {
	Kind    schema.ActivityKind `json:"kind"`
	Count   int64               `json:"count"`
	Seconds int64               `json:"seconds"`
}

// Journal is an append-only activity log in SQLite.
type Journal struct {
	db   *sql.DB
	path string
	log  pslog.Logger
}

// Open creates or opens the journal database at path.
func Open(ctx context.Context, path string, logger pslog.Logger) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal path is required")
	}
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure journal: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	j := &Journal{db: db, path: path, log: logger.With("component", "journal", "path", path)}
	j.log.Debug("journal opened")
	return j, nil
}

// Path returns the database location.
func (j *Journal) Path() string {
	return j.path
}

// Close releases the database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append stores one entry.
func (j *Journal) Append(ctx context.Context, entry Entry) error {
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO activity (at, kind, seconds, language) VALUES (?, ?, ?, ?)",
		entry.At.UnixMilli(), string(entry.Kind), entry.Seconds, string(entry.Language))
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// ObserveActivity mirrors a recorded ledger event into the journal.
func (j *Journal) ObserveActivity(ctx context.Context, at time.Time, event schema.ActivityEvent) error {
	return j.Append(ctx, Entry{At: at, Kind: event.Type, Seconds: event.Seconds, Language: event.Language})
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		"SELECT id, at, kind, seconds, language FROM activity ORDER BY at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			at   int64
			kind string
			lang string
		)
		if err := rows.Scan(&e.ID, &at, &kind, &e.Seconds, &lang); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.At = time.UnixMilli(at)
		e.Kind = schema.ActivityKind(kind)
		e.Language = schema.Language(lang)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	return out, nil
}

// Totals aggregates entries at or after since, ordered by kind.
func (j *Journal) Totals(ctx context.Context, since time.Time) ([]Total, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT kind, COUNT(*), COALESCE(SUM(seconds), 0) FROM activity WHERE at >= ? GROUP BY kind ORDER BY kind",
		since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query journal totals: %w", err)
	}
	defer rows.Close()
	var out []Total
	for rows.Next() {
		var (
			t    Total
			kind string
		)
		if err := rows.Scan(&kind, &t.Count, &t.Seconds); err != nil {
			return nil, fmt.Errorf("scan journal totals: %w", err)
		}
		t.Kind = schema.ActivityKind(kind)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query journal totals: %w", err)
	}
	return out, nil
}

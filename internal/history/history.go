// Package history keeps a small SQLite ledger of AQI fetches and edge
// updates so operators can see what the updater did without reading logs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Kind identifies which step of the updater produced an entry.
type Kind string

const (
	KindFetch  Kind = "fetch"
	KindUpdate Kind = "update"
)

// Status is the outcome of a step.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Entry is one ledger row.
type Entry struct {
	ID       string        `json:"id"`
	Kind     Kind          `json:"kind"`
	Artifact string        `json:"artifact"`
	Status   Status        `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration"`

	// ValidRatio is the share of edges with a valid AQI value, set for
	// update entries only.
	ValidRatio float64 `json:"validRatio,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

const schema = `
CREATE TABLE IF NOT EXISTS updates (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	artifact    TEXT NOT NULL,
	status      TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	valid_ratio REAL NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_updates_created_at ON updates(created_at);
`

// Store is a ledger backed by a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the ledger at path. ":memory:" gives a
// private in-memory ledger.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db %s: %w", path, err)
	}
	// a single connection keeps :memory: databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialise history db %s: %w", path, err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores e, assigning an ID and timestamp when they are unset. The
// stored entry is returned.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.CreatedAt = e.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO updates (id, kind, artifact, status, detail, duration_ms, valid_ratio, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Kind), e.Artifact, string(e.Status), e.Detail,
		e.Duration.Milliseconds(), e.ValidRatio, e.CreatedAt.UnixNano())
	if err != nil {
		return e, fmt.Errorf("failed to record %s entry for %s: %w", e.Kind, e.Artifact, err)
	}
	return e, nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns every entry.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, artifact, status, detail, duration_ms, valid_ratio, created_at
		FROM updates
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e              Entry
			kind, status   string
			durMs, created int64
		)
		if err := rows.Scan(&e.ID, &kind, &e.Artifact, &status, &e.Detail, &durMs, &e.ValidRatio, &created); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Kind = Kind(kind)
		e.Status = Status(status)
		e.Duration = time.Duration(durMs) * time.Millisecond
		e.CreatedAt = time.Unix(0, created).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

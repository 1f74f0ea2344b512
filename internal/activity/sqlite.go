package activity

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// storeTimeLayout is fixed-width so text ordering matches time ordering.
const storeTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists entries in a sqlite database.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *rand.Rand
}

var _ Sink = (*Store)(nil)

// OpenStore opens or creates the database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("activity: create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("activity: open db: %w", err)
	}
	s := &Store{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("activity: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS activity (
		id       TEXT PRIMARY KEY,
		at       TEXT NOT NULL,
		event    TEXT NOT NULL,
		state    TEXT NOT NULL,
		kind     TEXT NOT NULL DEFAULT '',
		details  TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_activity_at ON activity(at DESC);
	CREATE INDEX IF NOT EXISTS idx_activity_event ON activity(event);
	`)
	return err
}

func (s *Store) newID(at time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), s.entropy).String()
}

// Record implements [Sink]. Entries without an ID get a ULID derived from
// their timestamp.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	if e.ID == "" {
		e.ID = s.newID(e.At)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO activity (id, at, event, state, kind, details) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.At.UTC().Format(storeTimeLayout), e.Event, e.State, e.Kind, e.Details)
	if err != nil {
		return fmt.Errorf("activity: insert %s: %w", e.Event, err)
	}
	return nil
}

// Query filters [Store.Recent].
type Query struct {
	// Limit caps the number of entries. Zero means 50.
	Limit int

	// Event, if set, keeps only entries of that type.
	Event string

	// Since, if set, keeps only entries at or after it.
	Since time.Time
}

// Recent returns matching entries, newest first.
func (s *Store) Recent(ctx context.Context, q Query) ([]Entry, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	query := `SELECT id, at, event, state, kind, details FROM activity WHERE 1=1`
	var args []any
	if q.Event != "" {
		query += ` AND event = ?`
		args = append(args, q.Event)
	}
	if !q.Since.IsZero() {
		query += ` AND at >= ?`
		args = append(args, q.Since.UTC().Format(storeTimeLayout))
	}
	query += ` ORDER BY at DESC, id DESC LIMIT ?`
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("activity: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			at string
		)
		if err := rows.Scan(&e.ID, &at, &e.Event, &e.State, &e.Kind, &e.Details); err != nil {
			return nil, fmt.Errorf("activity: scan: %w", err)
		}
		if e.At, err = time.Parse(storeTimeLayout, at); err != nil {
			return nil, fmt.Errorf("activity: parse time %q: %w", at, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

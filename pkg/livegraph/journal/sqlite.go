package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists the journal to SQLite.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates a journal database.
// The path should be a file path or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Each connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS applies (
			sequence INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			version INTEGER NOT NULL,
			success INTEGER NOT NULL,
			step TEXT NOT NULL,
			code TEXT NOT NULL,
			error TEXT NOT NULL,
			summary TEXT NOT NULL,
			started_at TEXT NOT NULL,
			duration_ns INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Record implements Store.
func (s *SQLiteStore) Record(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	summary, err := json.Marshal(entry.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO applies (id, version, success, step, code, error, summary, started_at, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			success = excluded.success,
			step = excluded.step,
			code = excluded.code,
			error = excluded.error,
			summary = excluded.summary,
			started_at = excluded.started_at,
			duration_ns = excluded.duration_ns
	`, entry.ID, int64(entry.Version), entry.Success, entry.Step, entry.Code, entry.Error,
		string(summary), entry.StartedAt.UTC().Format(time.RFC3339Nano), int64(entry.Duration))
	if err != nil {
		return fmt.Errorf("record apply: %w", err)
	}
	return nil
}

const selectColumns = `SELECT sequence, id, version, success, step, code, error, summary, started_at, duration_ns FROM applies`

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Entry{}, ErrStoreClosed
	}

	e, err := scanEntry(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("load apply: %w", err)
	}
	return e, nil
}

// List implements Store.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY sequence DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list applies: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan apply: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applies: %w", err)
	}
	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e         Entry
		version   int64
		summary   string
		startedAt string
		duration  int64
	)
	if err := row.Scan(&e.Sequence, &e.ID, &version, &e.Success, &e.Step, &e.Code, &e.Error,
		&summary, &startedAt, &duration); err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(summary), &e.Summary); err != nil {
		return Entry{}, fmt.Errorf("decode summary: %w", err)
	}
	e.Version = uint64(version)
	e.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	e.Duration = time.Duration(duration)
	return e, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

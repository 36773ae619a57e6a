package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store is the sqlite-backed row store for interviews, participants,
// transcripts, summaries, analytics and LLM request events.
type Store struct {
	db  *sql.DB
	b   *entsql.DialectBuilder
	seq *sequenceCounter

	// now is overridable in tests.
	now func() time.Time
}

// Open creates a new Store connected to the SQLite database at dsn.
// It applies recommended pragmas and creates missing tables.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite serializes writers anyway; one connection keeps pragmas
	// consistent and avoids shared-cache table locks.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := migrate(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	seq, err := newSequenceCounter(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:  db,
		b:   entsql.Dialect(dialect.SQLite),
		seq: seq,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EventRepo returns an EventRepo backed by this store.
func (s *Store) EventRepo() EventRepo {
	return &eventRepo{s: s}
}

// exec runs a built statement.
func (s *Store) exec(ctx context.Context, q querier) (sql.Result, error) {
	query, args := q.Query()
	return s.db.ExecContext(ctx, query, args...)
}

// queryRow runs a built single-row select.
func (s *Store) queryRow(ctx context.Context, q querier) *sql.Row {
	query, args := q.Query()
	return s.db.QueryRowContext(ctx, query, args...)
}

// query runs a built select. Callers must close the rows before issuing
// another statement since the pool holds a single connection.
func (s *Store) query(ctx context.Context, q querier) (*sql.Rows, error) {
	query, args := q.Query()
	return s.db.QueryContext(ctx, query, args...)
}

type querier interface {
	Query() (string, []any)
}

// applyPragmas configures SQLite for a single-process server.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. PARLEY_DB environment variable
// 2. $XDG_DATA_HOME/parley/parley.db
// 3. ~/.local/share/parley/parley.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("PARLEY_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "parley", "parley.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func decodeTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := decodeTime(ns.String)
	return &t
}

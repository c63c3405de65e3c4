package host

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

const storageSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT (unixepoch('subsec') * 1000)
);
`

type sqliteConfig struct {
	busyTimeout int
	synchronous string
}

// SQLiteOption customises OpenSQLiteStorage behaviour.
type SQLiteOption func(*sqliteConfig)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) SQLiteOption {
	return func(c *sqliteConfig) { c.busyTimeout = ms }
}

// WithSynchronous sets PRAGMA synchronous. Default: "NORMAL".
func WithSynchronous(mode string) SQLiteOption {
	return func(c *sqliteConfig) { c.synchronous = mode }
}

// SQLiteStorage persists the storage area in an SQLite database so saved
// scripts, styles, and edit records survive process restarts. Change
// watchers are process-local; mutations made by another process are not
// observed.
type SQLiteStorage struct {
	db       *sql.DB
	watchers watcherSet
}

// OpenSQLiteStorage opens (or creates) the database at path, creating
// parent directories and applying WAL-mode pragmas.
func OpenSQLiteStorage(path string, opts ...SQLiteOption) (*SQLiteStorage, error) {
	cfg := sqliteConfig{busyTimeout: 10_000, synchronous: "NORMAL"}
	for _, o := range opts {
		o(&cfg)
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("storage: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.synchronous),
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(storageSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// OpenMemorySQLite opens an in-memory database for testing. MaxOpenConns is
// pinned to 1 so every query hits the same in-memory database, and cleanup
// is registered on t.
func OpenMemorySQLite(t testing.TB, opts ...SQLiteOption) *SQLiteStorage {
	t.Helper()
	s, err := OpenSQLiteStorage(":memory:", opts...)
	if err != nil {
		t.Fatalf("OpenSQLiteStorage: %v", err)
	}
	s.db.SetMaxOpenConns(1)
	t.Cleanup(func() { s.Close() })
	return s
}

func (s *SQLiteStorage) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("storage: get %s: %w", key, err)
	}
	return json.RawMessage(value), true, nil
}

func (s *SQLiteStorage) Set(ctx context.Context, key string, value json.RawMessage) error {
	old, _, err := s.Get(ctx, key)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, unixepoch('subsec') * 1000)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, []byte(value))
	if err != nil {
		return fmt.Errorf("storage: set %s: %w", key, err)
	}

	s.watchers.notify(StorageChange{Key: key, OldValue: old, NewValue: cloneRaw(value)})
	return nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, key string) error {
	old, ok, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	if ok {
		s.watchers.notify(StorageChange{Key: key, OldValue: old})
	}
	return nil
}

func (s *SQLiteStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE key LIKE ? ESCAPE '\' ORDER BY key`, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("storage: keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("storage: keys: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStorage) Watch(fn func(StorageChange)) func() {
	return s.watchers.add(fn)
}

func (s *SQLiteStorage) Close() error { return s.db.Close() }

// likePrefix escapes LIKE metacharacters so a literal prefix match is safe
// for arbitrary keys.
func likePrefix(prefix string) string {
	replaced := ""
	for _, r := range prefix {
		switch r {
		case '%', '_', '\\':
			replaced += `\` + string(r)
		default:
			replaced += string(r)
		}
	}
	return replaced + "%"
}

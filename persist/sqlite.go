package persist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/waypoint/dbopen"
)

// Schema is the key-value table backing SQLite storage. updated_at is in
// Unix nanoseconds and doubles as the row version Watcher polls.
const Schema = `
CREATE TABLE IF NOT EXISTS tour_state (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SQLite stores records in an SQLite database. It is the durable backend
// for sessions driven outside a browser, where localStorage is not
// available.
type SQLite struct {
	DB *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies Schema.
// The caller must blank-import modernc.org/sqlite.
func OpenSQLite(path string, opts ...dbopen.Option) (*SQLite, error) {
	all := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)
	db, err := dbopen.Open(path, all...)
	if err != nil {
		return nil, err
	}
	return &SQLite{DB: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.DB.Close()
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM tour_state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("persist: sqlite get: %w", err)
	}
	return v, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	_, err := dbopen.Exec(ctx, s.DB, `
		INSERT INTO tour_state (key, value, updated_at) VALUES (?,?,?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("persist: sqlite set: %w", err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := dbopen.Exec(ctx, s.DB, `DELETE FROM tour_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("persist: sqlite delete: %w", err)
	}
	return nil
}

// Version returns the version of key: its updated_at, or 0 when absent.
func (s *SQLite) Version(ctx context.Context, key string) (int64, error) {
	var v int64
	err := s.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(updated_at), 0) FROM tour_state WHERE key = ?`, key).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("persist: sqlite version: %w", err)
	}
	return v, nil
}

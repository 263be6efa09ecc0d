package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS auth_tokens (
	key       TEXT PRIMARY KEY,
	value     TEXT NOT NULL,
	issued_at INTEGER NOT NULL
)`

// SQLiteStore keeps tokens in a SQLite table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (or creates) the database at path and ensures the
// schema exists. Use ":memory:" for a throwaway store.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening token db: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (AuthToken, bool, error) {
	var value string
	var issuedAt int64

	err := s.db.QueryRowContext(ctx,
		"SELECT value, issued_at FROM auth_tokens WHERE key = ?", key,
	).Scan(&value, &issuedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return AuthToken{}, false, nil
	}
	if err != nil {
		return AuthToken{}, false, fmt.Errorf("token get: %w", err)
	}
	return AuthToken{Value: value, IssuedAt: time.Unix(issuedAt, 0)}, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, tok AuthToken) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO auth_tokens (key, value, issued_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, issued_at = excluded.issued_at`,
		key, tok.Value, tok.IssuedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("token put: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM auth_tokens WHERE key = ?", key); err != nil {
		return fmt.Errorf("token delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM auth_tokens"); err != nil {
		return fmt.Errorf("token clear: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key FROM auth_tokens ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("token keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("token keys: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"indiflow/internal/storage"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS storage_entries (
	entry_key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	revision INTEGER NOT NULL DEFAULT 1,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteKV is the single-file store used for local runs.
type SQLiteKV struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteKV, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteKV{db: db}, nil
}

func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM storage_entries WHERE entry_key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return value, err
}

func (s *SQLiteKV) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO storage_entries (entry_key, value, revision, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(entry_key) DO UPDATE SET
			value = excluded.value,
			revision = storage_entries.revision + 1,
			updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	return err
}

func (s *SQLiteKV) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM storage_entries WHERE entry_key = ?", key)
	return err
}

func (s *SQLiteKV) Revision(ctx context.Context, key string) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, "SELECT revision FROM storage_entries WHERE entry_key = ?", key).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return rev, err
}

func (s *SQLiteKV) Close() error {
	return s.db.Close()
}

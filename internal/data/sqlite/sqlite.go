// Package sqlite implements data.KeyValue on a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"os"
	"path/filepath"
	"time"

	"assetsync/internal/data"
	apperrors "assetsync/internal/errors"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);`

// Repository persists key-value pairs in a single SQLite table.
type Repository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and bootstraps the schema.
func Open(ctx context.Context, path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeStorageGeneric, "failed to create database directory", err).
				WithModule("data.sqlite").
				WithOperation("Open").
				WithField("path", dir)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeStorageGeneric, "failed to open sqlite database", err).
			WithModule("data.sqlite").
			WithOperation("Open").
			WithField("path", path)
	}
	// One writer keeps SQLite from returning SQLITE_BUSY under concurrent use.
	db.SetMaxOpenConns(1)

	repo := NewRepository(db)
	if err := repo.Bootstrap(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// NewRepository wires a Repository around an existing handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Bootstrap creates the schema.
func (r *Repository) Bootstrap(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return apperrors.StorageError(apperrors.CodeStorageGeneric, "failed to create schema", err).
			WithModule("data.sqlite").
			WithOperation("Bootstrap")
	}
	return nil
}

// Persist upserts value under key in a single statement.
func (r *Repository) Persist(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixNano(),
	)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeStorageGeneric, "failed to persist key", err).
			WithModule("data.sqlite").
			WithOperation("Persist").
			WithField("key", key)
	}
	return nil
}

// Retrieve reads the value stored under key.
func (r *Repository) Retrieve(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if stdErrors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.StorageError(apperrors.CodeStorageGeneric, "failed to retrieve key", err).
			WithModule("data.sqlite").
			WithOperation("Retrieve").
			WithField("key", key)
	}
	return value, true, nil
}

// Delete removes key; deleting a missing key is not an error.
func (r *Repository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return apperrors.StorageError(apperrors.CodeStorageGeneric, "failed to delete key", err).
			WithModule("data.sqlite").
			WithOperation("Delete").
			WithField("key", key)
	}
	return nil
}

// Close releases the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

var _ data.KeyValue = (*Repository)(nil)

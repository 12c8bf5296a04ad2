// Package badger implements data.KeyValue on an embedded BadgerDB.
package badger

import (
	"context"
	stdErrors "errors"
	"fmt"
	"os"

	"assetsync/internal/data"
	apperrors "assetsync/internal/errors"
	"assetsync/internal/logger"

	dgbadger "github.com/dgraph-io/badger/v4"
)

// Config controls how the database is opened.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in memory, used by tests.
	InMemory   bool
	SyncWrites bool
	// Logger receives badger's internal messages; nil silences them.
	Logger logger.Logger
}

// DefaultConfig returns a durable configuration rooted at path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration with no disk persistence.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type badgerLogger struct {
	log logger.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error("badger: "+format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn("badger: "+format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug("badger: "+format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug("badger: "+format, args...)
}

// Repository persists key-value pairs in BadgerDB, one transaction per call.
type Repository struct {
	db *dgbadger.DB
}

// Open opens the database described by cfg.
func Open(cfg Config) (*Repository, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, apperrors.ConfigError(apperrors.CodeConfigGeneric, "badger path is required for a persistent database", nil).
			WithModule("data.badger").
			WithOperation("Open")
	}

	var opts dgbadger.Options
	if cfg.InMemory {
		opts = dgbadger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, apperrors.StorageError(apperrors.CodeStorageGeneric, "failed to create badger directory", err).
				WithModule("data.badger").
				WithOperation("Open").
				WithField("path", cfg.Path)
		}
		opts = dgbadger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{log: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, apperrors.StorageError(apperrors.CodeStorageGeneric, "failed to open badger database", err).
			WithModule("data.badger").
			WithOperation("Open").
			WithField("path", cfg.Path)
	}
	return &Repository{db: db}, nil
}

// Bootstrap is a no-op; badger needs no schema.
func (r *Repository) Bootstrap(ctx context.Context) error {
	return nil
}

func (r *Repository) Persist(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := r.db.Update(func(txn *dgbadger.Txn) error {
		return txn.Set([]byte(key), append([]byte{}, value...))
	})
	if err != nil {
		return apperrors.StorageError(apperrors.CodeStorageGeneric, "failed to persist key", err).
			WithModule("data.badger").
			WithOperation("Persist").
			WithField("key", key)
	}
	return nil
}

func (r *Repository) Retrieve(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	var value []byte
	err := r.db.View(func(txn *dgbadger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if stdErrors.Is(err, dgbadger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.StorageError(apperrors.CodeStorageGeneric, "failed to retrieve key", err).
			WithModule("data.badger").
			WithOperation("Retrieve").
			WithField("key", key)
	}
	return value, true, nil
}

func (r *Repository) Delete(ctx context.Context, key string) error {
	err := r.db.Update(func(txn *dgbadger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return apperrors.StorageError(apperrors.CodeStorageGeneric, fmt.Sprintf("failed to delete key %s", key), err).
			WithModule("data.badger").
			WithOperation("Delete")
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

var _ data.KeyValue = (*Repository)(nil)

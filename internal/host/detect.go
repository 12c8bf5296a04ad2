package host

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"assetsync/internal/data"
	"assetsync/internal/data/badger"
	"assetsync/internal/data/memory"
	"assetsync/internal/data/sqlite"
	apperrors "assetsync/internal/errors"
	"assetsync/internal/logger"

	"golang.org/x/sys/unix"
)

// Storage backends accepted by OpenKV.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
	BackendMemory = "memory"
)

// Options describes the environment Detect should build.
type Options struct {
	Backend string
	// Path is the sqlite file or the badger directory.
	Path string
	// BlobDir is where native hosts keep payload files. Empty forces the
	// storage-only host.
	BlobDir string
	HTTP    HTTPConfig

	TransportOptions []TransportOption
	FileSystem       FileSystem
}

// OpenKV opens the configured key-value backend.
func OpenKV(ctx context.Context, backend, path string, log logger.Logger) (data.KeyValue, error) {
	var (
		kv  data.KeyValue
		err error
	)

	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendSQLite:
		kv, err = sqlite.Open(ctx, path)
	case BackendBadger:
		cfg := badger.DefaultConfig(path)
		cfg.Logger = log
		kv, err = badger.Open(cfg)
	case BackendMemory:
		kv = memory.New()
	default:
		return nil, apperrors.ConfigError(apperrors.CodeConfigGeneric, "unknown storage backend", nil).
			WithModule("host").
			WithOperation("OpenKV").
			WithField("backend", backend)
	}
	if err != nil {
		return nil, err
	}

	if err := kv.Bootstrap(ctx); err != nil {
		_ = kv.Close()
		return nil, err
	}
	return kv, nil
}

// Detect opens the backend and picks the host implementation: native when
// the blob directory is writable, storage-only otherwise.
func Detect(ctx context.Context, opts Options, log logger.Logger) (Host, error) {
	transport, err := NewHTTPTransport(opts.HTTP, log, opts.TransportOptions...)
	if err != nil {
		return nil, err
	}

	kv, err := OpenKV(ctx, opts.Backend, opts.Path, log)
	if err != nil {
		return nil, err
	}

	if Writable(opts.BlobDir) {
		log.Debug("Using native host with blob directory %s", opts.BlobDir)
		return NewNative(transport, kv, opts.BlobDir, opts.FileSystem), nil
	}

	if opts.BlobDir != "" {
		log.Warn("Blob directory %s is not writable, falling back to storage-only host", opts.BlobDir)
	}
	return NewStorageOnly(transport, kv), nil
}

// Writable reports whether dir exists, or can be created, and accepts writes
// from this process.
func Writable(dir string) bool {
	if strings.TrimSpace(dir) == "" {
		return false
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	return unix.Access(abs, unix.W_OK) == nil
}

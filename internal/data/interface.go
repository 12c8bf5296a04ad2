// Package data defines the durable key-value contract the manifest store is
// built on. Backends live in the sqlite, badger and memory subpackages.
package data

import "context"

// KeyValue persists opaque blobs under string keys. A single Persist call is
// atomic: readers observe either the previous value or the new one.
type KeyValue interface {
	// Bootstrap prepares the backing store (schema, directories).
	Bootstrap(ctx context.Context) error
	Persist(ctx context.Context, key string, value []byte) error
	// Retrieve returns ok=false when key has never been persisted.
	Retrieve(ctx context.Context, key string) (value []byte, ok bool, err error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Package memory implements data.KeyValue in process memory.
package memory

import (
	"context"
	"sync"

	"assetsync/internal/data"
)

// Repository is a map guarded by a mutex. Values are copied on the way in
// and out so callers cannot alias stored data.
type Repository struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// New returns an empty Repository.
func New() *Repository {
	return &Repository{values: make(map[string][]byte)}
}

func (r *Repository) Bootstrap(context.Context) error { return nil }

func (r *Repository) Persist(_ context.Context, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = append([]byte{}, value...)
	return nil
}

func (r *Repository) Retrieve(_ context.Context, key string) ([]byte, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte{}, v...), true, nil
}

func (r *Repository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, key)
	return nil
}

func (r *Repository) Close() error { return nil }

// Len returns the number of stored keys.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.values)
}

var _ data.KeyValue = (*Repository)(nil)

// Package host abstracts the environment the updater runs in: how bytes are
// fetched from a URL, where key-value state lives and where downloaded
// payloads are kept.
package host

import (
	"context"

	"assetsync/internal/data"
	"assetsync/internal/manifest"
)

// Transport retrieves remote payloads.
type Transport interface {
	FetchText(ctx context.Context, url string) (string, error)
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// BlobStore keeps downloaded payloads keyed by class and identifier. Save
// returns a reference the application can use to reach the stored copy.
type BlobStore interface {
	Save(ctx context.Context, class manifest.Class, identifier string, payload []byte) (string, error)
	Load(ctx context.Context, class manifest.Class, identifier string) ([]byte, bool, error)
}

// Host is the capability set selected at startup.
type Host interface {
	Name() string
	Transport() Transport
	KV() data.KeyValue
	Blobs() BlobStore
	Close() error
}

const (
	NameNative      = "native"
	NameStorageOnly = "storage-only"
)

type environment struct {
	name      string
	transport Transport
	kv        data.KeyValue
	blobs     BlobStore
}

func (e *environment) Name() string         { return e.name }
func (e *environment) Transport() Transport { return e.transport }
func (e *environment) KV() data.KeyValue    { return e.kv }
func (e *environment) Blobs() BlobStore     { return e.blobs }

func (e *environment) Close() error {
	if e.kv == nil {
		return nil
	}
	return e.kv.Close()
}

// NewNative returns a host that keeps payloads as files under blobDir.
func NewNative(t Transport, kv data.KeyValue, blobDir string, fs FileSystem) Host {
	return &environment{name: NameNative, transport: t, kv: kv, blobs: NewFileBlobs(blobDir, fs)}
}

// NewStorageOnly returns a host that keeps payloads inside the KV backend.
func NewStorageOnly(t Transport, kv data.KeyValue) Host {
	return &environment{name: NameStorageOnly, transport: t, kv: kv, blobs: NewKVBlobs(kv)}
}

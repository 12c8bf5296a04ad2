// Package store persists the local manifest and downloaded payloads of one
// asset class.
package store

import (
	"context"
	"encoding/json"

	"assetsync/internal/data"
	apperrors "assetsync/internal/errors"
	"assetsync/internal/errors/logging"
	"assetsync/internal/host"
	"assetsync/internal/logger"
	"assetsync/internal/manifest"
)

// Store is the Manifest Store for a single class.
type Store struct {
	class  manifest.Class
	kv     data.KeyValue
	blobs  host.BlobStore
	logger logger.Logger
}

// New returns a Store for class backed by kv and blobs.
func New(class manifest.Class, kv data.KeyValue, blobs host.BlobStore, log logger.Logger) *Store {
	return &Store{class: class, kv: kv, blobs: blobs, logger: log}
}

// ManifestKey is the key under which the local manifest of class is stored.
func ManifestKey(class manifest.Class) string {
	return "manifest/" + string(class)
}

// Class returns the asset class served by the store.
func (s *Store) Class() manifest.Class {
	return s.class
}

// LoadLocalManifest returns the stored local manifest. Missing, unreadable
// or corrupt state yields an empty manifest at the default version.
func (s *Store) LoadLocalManifest(ctx context.Context) *manifest.Local {
	raw, ok, err := s.kv.Retrieve(ctx, ManifestKey(s.class))
	if err != nil {
		logging.Warn(ctx, s.logger, "local manifest unavailable, starting from empty state", err)
		return manifest.NewLocal(s.class)
	}
	if !ok || len(raw) == 0 {
		return manifest.NewLocal(s.class)
	}

	local, err := decodeLocal(s.class, raw)
	if err != nil {
		logging.Warn(ctx, s.logger, "local manifest is corrupt, starting from empty state",
			apperrors.ParseError(apperrors.CodeParseLocalState, "failed to decode local manifest", err).
				WithModule("store").
				WithOperation("LoadLocalManifest").
				WithField("class", string(s.class)))
		return manifest.NewLocal(s.class)
	}
	return local
}

// SaveLocalManifest writes local in a single Persist call, so readers see
// either the previous or the new manifest.
func (s *Store) SaveLocalManifest(ctx context.Context, local *manifest.Local) error {
	if local == nil {
		local = manifest.NewLocal(s.class)
	}
	local.Class = s.class

	raw, err := json.Marshal(local)
	if err != nil {
		return apperrors.StorageError(apperrors.CodeStorageGeneric, "failed to encode local manifest", err).
			WithModule("store").
			WithOperation("SaveLocalManifest").
			WithField("class", string(s.class))
	}

	if err := s.kv.Persist(ctx, ManifestKey(s.class), raw); err != nil {
		return apperrors.StorageError(apperrors.CodeStorageGeneric, "failed to persist local manifest", err).
			WithModule("store").
			WithOperation("SaveLocalManifest").
			WithField("class", string(s.class))
	}
	return nil
}

// LoadBlob returns the stored payload for identifier.
func (s *Store) LoadBlob(ctx context.Context, identifier string) ([]byte, bool, error) {
	return s.blobs.Load(ctx, s.class, identifier)
}

// SaveBlob stores payload for identifier and returns its local reference.
func (s *Store) SaveBlob(ctx context.Context, identifier string, payload []byte) (string, error) {
	return s.blobs.Save(ctx, s.class, identifier, payload)
}

func decodeLocal(class manifest.Class, raw []byte) (*manifest.Local, error) {
	var local manifest.Local
	if err := json.Unmarshal(raw, &local); err != nil {
		return nil, err
	}
	if local.Version == "" {
		local.Version = manifest.DefaultVersion
	}
	if local.Records == nil {
		local.Records = make(map[string]manifest.Record)
	}
	for id, r := range local.Records {
		if r.Identifier == "" {
			r.Identifier = id
			local.Records[id] = r
		}
	}
	local.Class = class
	return &local, nil
}

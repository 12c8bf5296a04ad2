package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"assetsync/internal/data/memory"
	"assetsync/internal/data/sqlite"
	"assetsync/internal/host"
	"assetsync/internal/logger"
	"assetsync/internal/manifest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryStore(class manifest.Class) (*Store, *memory.Repository, *logger.MockLogger) {
	kv := memory.New()
	log := logger.NewMockLogger()
	return New(class, kv, host.NewKVBlobs(kv), log), kv, log
}

func TestLoadLocalManifestDefaultsWhenMissing(t *testing.T) {
	s, _, _ := newMemoryStore(manifest.ClassContent)

	local := s.LoadLocalManifest(context.Background())
	assert.Equal(t, manifest.DefaultVersion, local.Version)
	assert.Empty(t, local.Records)
	assert.Equal(t, manifest.ClassContent, local.Class)
}

func TestLoadLocalManifestRecoversFromCorruption(t *testing.T) {
	ctx := context.Background()
	s, kv, log := newMemoryStore(manifest.ClassCode)
	require.NoError(t, kv.Persist(ctx, ManifestKey(manifest.ClassCode), []byte("{not json")))

	local := s.LoadLocalManifest(ctx)
	assert.Equal(t, manifest.DefaultVersion, local.Version)
	assert.Empty(t, local.Records)
	assert.True(t, log.HasEntry(logger.LevelWarn, "corrupt"))
}

func TestSaveAndLoadLocalManifest(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newMemoryStore(manifest.ClassCode)

	local := manifest.NewLocal(manifest.ClassCode)
	local.Version = "2.1.0"
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	local.Put(manifest.Record{Identifier: "js/app.js", Version: "1.0.1", Kind: manifest.KindScript, LocalRef: "store://code/js/app.js", AppliedAt: at})
	require.NoError(t, s.SaveLocalManifest(ctx, local))

	loaded := s.LoadLocalManifest(ctx)
	assert.Equal(t, "2.1.0", loaded.Version)
	rec, ok := loaded.Lookup("js/app.js")
	require.True(t, ok)
	assert.Equal(t, "1.0.1", rec.Version)
	assert.Equal(t, manifest.KindScript, rec.Kind)
	assert.True(t, at.Equal(rec.AppliedAt))
}

func TestBlobsAreIndependentOfManifest(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newMemoryStore(manifest.ClassCode)

	ref, err := s.SaveBlob(ctx, "js/app.js", []byte("v2"))
	require.NoError(t, err)
	assert.NotEmpty(t, ref)

	got, ok, err := s.LoadBlob(ctx, "js/app.js")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", string(got))

	assert.Empty(t, s.LoadLocalManifest(ctx).Records)

	_, ok, err = s.LoadBlob(ctx, "js/other.js")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClassesDoNotShareState(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	blobs := host.NewKVBlobs(kv)
	content := New(manifest.ClassContent, kv, blobs, logger.NewMockLogger())
	code := New(manifest.ClassCode, kv, blobs, logger.NewMockLogger())

	local := manifest.NewLocal(manifest.ClassContent)
	local.Version = "9.9.9"
	require.NoError(t, content.SaveLocalManifest(ctx, local))

	assert.Equal(t, manifest.DefaultVersion, code.LoadLocalManifest(ctx).Version)
	assert.Equal(t, "9.9.9", content.LoadLocalManifest(ctx).Version)
}

func TestStoreOnSQLite(t *testing.T) {
	ctx := context.Background()
	repo, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	defer repo.Close()

	s := New(manifest.ClassContent, repo, host.NewFileBlobs(t.TempDir(), nil), logger.NewMockLogger())
	local := manifest.NewLocal(manifest.ClassContent)
	local.Put(manifest.Record{Identifier: "documents/a", ContentHash: "H1", Kind: manifest.KindContent})
	require.NoError(t, s.SaveLocalManifest(ctx, local))

	rec, ok := s.LoadLocalManifest(ctx).Lookup("documents/a")
	require.True(t, ok)
	assert.Equal(t, "H1", rec.ContentHash)
}

package downloader

import (
	"context"
	"testing"
	"time"

	"assetsync/internal/data/memory"
	apperrors "assetsync/internal/errors"
	"assetsync/internal/fetcher"
	"assetsync/internal/host"
	"assetsync/internal/logger"
	"assetsync/internal/manifest"
	"assetsync/internal/metrics"
	"assetsync/internal/reconcile"
	"assetsync/internal/session"
	"assetsync/internal/store"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	payloads map[string]string
	calls    []string
}

func (f *fakeFetcher) FetchTransfer(_ context.Context, p manifest.PendingTransfer) (fetcher.Asset, error) {
	f.calls = append(f.calls, p.Identifier)
	body, ok := f.payloads[p.SourceURL]
	if !ok {
		return fetcher.Asset{}, apperrors.TransportError(apperrors.CodeTransportStatus, "unavailable", nil)
	}
	return fetcher.Asset{Data: []byte(body), Binary: p.Binary()}, nil
}

func newStore(class manifest.Class) *store.Store {
	kv := memory.New()
	return store.New(class, kv, host.NewKVBlobs(kv), logger.NewMockLogger())
}

func parse(t *testing.T, class manifest.Class, doc string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Parse(class, []byte(doc), "")
	require.NoError(t, err)
	return m
}

func TestFirstContentDownload(t *testing.T) {
	ctx := context.Background()
	st := newStore(manifest.ClassContent)
	remote := parse(t, manifest.ClassContent, `{"version":"1.0.0","baseUrl":"https://cdn","documents":{"a.pdf":{"file":"a.pdf","hash":"H1","size":100}}}`)

	pending := reconcile.Diff(st.LoadLocalManifest(ctx), remote).Pending
	require.Len(t, pending, 1)

	f := &fakeFetcher{payloads: map[string]string{"https://cdn/a.pdf": "%PDF-1.4"}}
	res := New(f, st, logger.NewMockLogger()).DownloadAll(ctx, pending, TargetOf(remote))

	assert.Equal(t, []string{"documents/a.pdf"}, res.Succeeded)
	assert.Empty(t, res.Failed)
	assert.NoError(t, res.Err())
	assert.True(t, res.VersionBumped)

	local := st.LoadLocalManifest(ctx)
	rec, ok := local.Lookup("documents/a.pdf")
	require.True(t, ok)
	assert.Equal(t, "H1", rec.ContentHash)
	assert.Equal(t, "store://content/documents/a.pdf", rec.LocalRef)
	assert.Equal(t, "1.0.0", local.Version)

	blob, ok, err := st.LoadBlob(ctx, "documents/a.pdf")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "%PDF-1.4", string(blob))
}

func TestPartialFailureKeepsVersion(t *testing.T) {
	ctx := context.Background()
	st := newStore(manifest.ClassContent)
	remote := parse(t, manifest.ClassContent, `{"version":"2.0.0","baseUrl":"https://cdn","documents":{
		"one":   {"file":"1.pdf","hash":"h1","size":10},
		"two":   {"file":"2.pdf","hash":"h2","size":20},
		"three": {"file":"3.pdf","hash":"h3","size":30}
	}}`)

	pending := reconcile.Diff(st.LoadLocalManifest(ctx), remote).Pending
	require.Len(t, pending, 3)

	f := &fakeFetcher{payloads: map[string]string{
		"https://cdn/1.pdf": "one",
		"https://cdn/3.pdf": "three",
	}}

	var snapshots []session.Progress
	m := metrics.New()
	o := New(f, st, logger.NewMockLogger(), WithMetrics(m), WithProgress(func(p session.Progress) {
		snapshots = append(snapshots, p)
	}))
	res := o.DownloadAll(ctx, pending, TargetOf(remote))

	assert.Equal(t, []string{"documents/one", "documents/three"}, res.Succeeded)
	assert.Equal(t, []string{"documents/two"}, res.Failed)
	assert.Equal(t, []string{"documents/one", "documents/two", "documents/three"}, f.calls)
	assert.Equal(t, 2, res.Progress.CompletedFiles)
	assert.Equal(t, 3, res.Progress.TotalFiles)
	assert.Equal(t, int64(40), res.Progress.DownloadedBytes)
	assert.Equal(t, int64(60), res.Progress.TotalBytes)
	assert.False(t, res.VersionBumped)

	err := res.Err()
	require.Error(t, err)
	cat, _ := apperrors.CategoryOf(err)
	assert.Equal(t, apperrors.ErrCategoryBatch, cat)
	assert.True(t, apperrors.IsTransport(res.Errors["documents/two"]))

	local := st.LoadLocalManifest(ctx)
	assert.Equal(t, manifest.DefaultVersion, local.Version)
	assert.Len(t, local.Records, 2)

	again := reconcile.Diff(local, remote).Pending
	require.Len(t, again, 1)
	assert.Equal(t, "documents/two", again[0].Identifier)

	for i := 1; i < len(snapshots); i++ {
		assert.GreaterOrEqual(t, snapshots[i].CompletedFiles, snapshots[i-1].CompletedFiles)
		assert.GreaterOrEqual(t, snapshots[i].DownloadedBytes, snapshots[i-1].DownloadedBytes)
	}
	assert.Empty(t, snapshots[len(snapshots)-1].CurrentFile)

	series, err := testutil.GatherAndCount(m.Registry(), "assetsync_download_files_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func TestFullyFailedBatchLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	st := newStore(manifest.ClassCode)
	remote := parse(t, manifest.ClassCode, `{"version":"1.2.0","baseUrl":"https://cdn","files":{"app.js":{"version":"1.2.0","url":"app.js"}}}`)
	pending := reconcile.Diff(st.LoadLocalManifest(ctx), remote).Pending

	res := New(&fakeFetcher{}, st, logger.NewMockLogger()).DownloadAll(ctx, pending, TargetOf(remote))
	assert.Empty(t, res.Succeeded)
	assert.Equal(t, []string{"app.js"}, res.Failed)
	assert.Equal(t, manifest.DefaultVersion, res.LocalVersion)
	assert.Equal(t, 0, res.Progress.CompletedFiles)

	local := st.LoadLocalManifest(ctx)
	assert.Equal(t, manifest.DefaultVersion, local.Version)
	assert.Empty(t, local.Records)
	assert.Len(t, reconcile.Diff(local, remote).Pending, 1)
}

func TestEmptyBatchBumpsVersion(t *testing.T) {
	ctx := context.Background()
	st := newStore(manifest.ClassCode)
	remote := manifest.New(manifest.ClassCode, "4.0.0")

	res := New(&fakeFetcher{}, st, logger.NewMockLogger()).DownloadAll(ctx, nil, TargetOf(remote))
	assert.True(t, res.VersionBumped)
	assert.Equal(t, "4.0.0", st.LoadLocalManifest(ctx).Version)
}

func TestDownloadPreservesExistingRecords(t *testing.T) {
	ctx := context.Background()
	st := newStore(manifest.ClassContent)

	local := manifest.NewLocal(manifest.ClassContent)
	local.Put(manifest.Record{Identifier: "documents/old", ContentHash: "h0", Kind: manifest.KindContent})
	require.NoError(t, st.SaveLocalManifest(ctx, local))

	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	p := manifest.PendingTransfer{Identifier: "documents/new", SourceURL: "u/new.pdf", ExpectedHash: "h1", Kind: manifest.KindContent}
	f := &fakeFetcher{payloads: map[string]string{"u/new.pdf": "payload"}}

	res := New(f, st, logger.NewMockLogger(), WithClock(func() time.Time { return fixed })).
		DownloadAll(ctx, []manifest.PendingTransfer{p}, Target{})
	require.Len(t, res.Records, 1)
	assert.Equal(t, fixed, res.Records[0].AppliedAt)
	assert.False(t, res.VersionBumped)
	assert.Equal(t, int64(7), res.Progress.DownloadedBytes)
	assert.Equal(t, int64(7), res.Progress.TotalBytes)

	stored := st.LoadLocalManifest(ctx)
	assert.Len(t, stored.Records, 2)
	assert.Equal(t, manifest.DefaultVersion, stored.Version)
}

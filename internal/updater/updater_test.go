package updater

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"assetsync/internal/apply"
	"assetsync/internal/data/memory"
	apperrors "assetsync/internal/errors"
	"assetsync/internal/fetcher"
	"assetsync/internal/host"
	"assetsync/internal/logger"
	"assetsync/internal/manifest"
	"assetsync/internal/metrics"
	"assetsync/internal/session"
	"assetsync/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	srv     *httptest.Server
	mu      sync.Mutex
	routes  map[string]string
	notices []Notice
	content *ClassUpdater
	code    *ClassUpdater
	updater *Updater
	engine  *apply.Engine
	kv      *memory.Repository
}

func (f *fixture) set(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[path] = body
}

func (f *fixture) drop(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.routes, path)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{routes: make(map[string]string)}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		body, ok := f.routes[r.URL.Path]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.srv.Close)

	log := logger.NewMockLogger()
	tr, err := host.NewHTTPTransport(host.HTTPConfig{MaxRetries: 1, CacheBust: true}, log)
	require.NoError(t, err)
	fetch := fetcher.New(tr, log)

	f.kv = memory.New()
	blobs := host.NewKVBlobs(f.kv)
	contentStore := store.New(manifest.ClassContent, f.kv, blobs, log)
	codeStore := store.New(manifest.ClassCode, f.kv, blobs, log)

	f.engine = apply.New(codeStore, log, apply.WithBaseline("1.0.0"))
	deps := Deps{
		Manifests: fetch,
		Assets:    fetch,
		Engine:    f.engine,
		Logger:    log,
		Metrics:   metrics.New(),
		Notify: func(n Notice) {
			f.mu.Lock()
			f.notices = append(f.notices, n)
			f.mu.Unlock()
		},
	}

	f.content = NewClass(ClassOptions{Class: manifest.ClassContent, ManifestURL: f.srv.URL + "/content/manifest.json", Interval: time.Hour, InitialDelay: time.Hour}, contentStore, deps)
	f.code = NewClass(ClassOptions{Class: manifest.ClassCode, ManifestURL: f.srv.URL + "/app/manifest.json", Interval: time.Hour, InitialDelay: time.Hour}, codeStore, deps)
	f.updater = New(f.engine, log, []*ClassUpdater{f.content, f.code})
	return f
}

func (f *fixture) noticeKinds() []NoticeKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]NoticeKind, 0, len(f.notices))
	for _, n := range f.notices {
		out = append(out, n.Kind)
	}
	return out
}

func TestCodeUpdateRequiresReload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	local := manifest.NewLocal(manifest.ClassCode)
	local.Put(manifest.Record{Identifier: "app.js", Version: "1.0.0", Kind: manifest.KindScript})
	require.NoError(t, f.code.Store().SaveLocalManifest(ctx, local))

	f.set("/app/manifest.json", `{"version":"1.0.1","files":{"app.js":{"version":"1.0.1","url":"app.js","type":"script"}}}`)
	f.set("/app/app.js", "console.log('v1.0.1')")

	assert.Equal(t, 1, f.code.CheckForUpdates(ctx, false))
	st := f.code.State()
	assert.Equal(t, session.PhaseAvailable, st.Phase)
	assert.Equal(t, 1, st.PendingCount)

	summary := f.code.DownloadUpdates(ctx)
	assert.Equal(t, []string{"app.js"}, summary.Succeeded)
	assert.Empty(t, summary.Failed)
	assert.True(t, summary.RequiresReload)

	blob, ok, err := f.code.Store().LoadBlob(ctx, "app.js")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "console.log('v1.0.1')", string(blob))

	st = f.code.State()
	assert.True(t, st.PendingReload)
	assert.Equal(t, session.PhaseIdle, st.Phase)
	assert.Equal(t, "1.0.1", st.LocalVersion)
	assert.Empty(t, f.engine.Snapshot().Scripts, "live code untouched until restart")

	assert.Equal(t, 0, f.code.CheckForUpdates(ctx, false))
	assert.Equal(t, []NoticeKind{NoticeAvailable, NoticeDownloaded, NoticeUpToDate}, f.noticeKinds())
}

func TestContentDownloadMergesIntoTree(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.set("/content/manifest.json", `{"version":"1.0.0","documents":{"a.pdf":{"file":"a.pdf","hash":"H1","size":8}}}`)
	f.set("/content/a.pdf", "%PDF-1.4")

	require.Equal(t, 1, f.content.CheckForUpdates(ctx, true))
	summary := f.content.DownloadUpdates(ctx)
	assert.Equal(t, []string{"documents/a.pdf"}, summary.Succeeded)
	assert.False(t, summary.RequiresReload)
	require.Len(t, summary.Applied, 1)
	assert.Equal(t, apply.StrategyMerge, summary.Applied[0].Strategy)

	doc, ok := f.engine.Document("documents/a.pdf")
	require.True(t, ok)
	assert.Equal(t, "store://content/documents/a.pdf", doc.LocalRef)

	rec, ok := f.content.Store().LoadLocalManifest(ctx).Lookup("documents/a.pdf")
	require.True(t, ok)
	assert.Equal(t, "H1", rec.ContentHash)
}

func TestPartialFailureRetriedOnNextCheck(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.set("/content/manifest.json", `{"version":"2.0.0","documents":{
		"one":{"file":"1.pdf","hash":"h1"},
		"two":{"file":"2.pdf","hash":"h2"},
		"three":{"file":"3.pdf","hash":"h3"}}}`)
	f.set("/content/1.pdf", "1")
	f.set("/content/3.pdf", "3")

	require.Equal(t, 3, f.content.CheckForUpdates(ctx, true))
	summary := f.content.DownloadUpdates(ctx)
	assert.Equal(t, 2, summary.Progress.CompletedFiles)
	assert.Equal(t, []string{"documents/two"}, summary.Failed)
	assert.Equal(t, manifest.DefaultVersion, f.content.State().LocalVersion)
	assert.Equal(t, 1, f.content.State().PendingCount)

	f.set("/content/2.pdf", "2")
	require.Equal(t, 1, f.content.CheckForUpdates(ctx, true))
	summary = f.content.DownloadUpdates(ctx)
	assert.Equal(t, []string{"documents/two"}, summary.Succeeded)
	assert.Equal(t, "2.0.0", f.content.State().LocalVersion)
}

func TestCheckFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.Equal(t, 0, f.code.CheckForUpdates(ctx, true))
	assert.Empty(t, f.noticeKinds(), "silent failures do not notify")

	assert.Equal(t, 0, f.code.CheckForUpdates(ctx, false))
	assert.Equal(t, []NoticeKind{NoticeFailed}, f.noticeKinds())

	st := f.code.State()
	assert.Equal(t, session.PhaseIdle, st.Phase)
	assert.NotEmpty(t, st.LastError)

	f.set("/app/manifest.json", `{"version": `)
	assert.Equal(t, 0, f.code.CheckForUpdates(ctx, false))
	f.drop("/app/manifest.json")
}

type blockingManifests struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingManifests) FetchManifest(ctx context.Context, class manifest.Class, _ string) (*manifest.Manifest, error) {
	close(b.entered)
	<-b.release
	return nil, apperrors.TransportError(apperrors.CodeTransportGeneric, "offline", nil)
}

func TestReentrantCheckIsNoop(t *testing.T) {
	kv := memory.New()
	log := logger.NewMockLogger()
	st := store.New(manifest.ClassCode, kv, host.NewKVBlobs(kv), log)
	blocker := &blockingManifests{entered: make(chan struct{}), release: make(chan struct{})}
	c := NewClass(ClassOptions{Class: manifest.ClassCode, ManifestURL: "https://x"}, st, Deps{Manifests: blocker, Logger: log})

	done := make(chan int)
	go func() { done <- c.CheckForUpdates(context.Background(), true) }()
	<-blocker.entered

	assert.Equal(t, 0, c.CheckForUpdates(context.Background(), true))
	assert.True(t, c.DownloadUpdates(context.Background()).Skipped)
	assert.True(t, c.State().Checking)

	close(blocker.release)
	assert.Equal(t, 0, <-done)
	assert.False(t, c.State().Checking)
}

func TestUpdaterAggregatesClasses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.set("/content/manifest.json", `{"version":"1.0.0","documents":{"a":{"file":"a.pdf","hash":"H1"}}}`)
	f.set("/content/a.pdf", "a")
	f.set("/app/manifest.json", `{"version":"1.1.0","files":{"main.css":{"version":"1.1.0","url":"main.css","type":"stylesheet"}}}`)
	f.set("/app/main.css", "body{}")

	assert.Equal(t, 2, f.updater.CheckForUpdates(ctx, true))
	summaries := f.updater.DownloadUpdates(ctx)
	require.Len(t, summaries, 2)
	assert.Equal(t, manifest.ClassContent, summaries[0].Class)
	assert.Equal(t, manifest.ClassCode, summaries[1].Class)
	assert.Len(t, f.engine.Snapshot().Styles, 1)

	states := f.updater.State()
	require.Len(t, states, 2)
	for _, st := range states {
		assert.Equal(t, session.PhaseIdle, st.Phase)
	}
}

func TestInitReplaysStoredStateAndSchedulesChecks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)

	codeLocal := manifest.NewLocal(manifest.ClassCode)
	codeLocal.Version = "1.5.0"
	codeLocal.Put(manifest.Record{Identifier: "app.js", Version: "1.5.0", Kind: manifest.KindScript, LocalRef: "store://code/app.js"})
	require.NoError(t, f.code.Store().SaveLocalManifest(ctx, codeLocal))

	tasks := f.updater.Tasks()
	require.Len(t, tasks, 2)
	assert.Equal(t, "check-content", tasks[0].Name)
	assert.Equal(t, time.Hour, tasks[1].Interval)

	f.updater.Init(ctx)
	defer f.updater.Stop()
	f.updater.Init(ctx)

	scripts := f.engine.Snapshot().Scripts
	require.Len(t, scripts, 1)
	assert.True(t, scripts[0].Stored)
	assert.Equal(t, "1.5.0", f.code.State().LocalVersion)

	f.set("/app/manifest.json", `{"version":"1.6.0","files":{"app.js":{"version":"1.6.0","url":"app.js"}}}`)
	tasks[1].RunOnce(ctx)
	assert.Equal(t, 1, f.code.State().PendingCount)
}

func TestAutoDownloadTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.updater = New(f.engine, logger.NewMockLogger(), []*ClassUpdater{f.content}, WithAutoDownload(true))
	f.set("/content/manifest.json", `{"version":"1.0.0","documents":{"a":{"file":"a.pdf","hash":"H1"}}}`)
	f.set("/content/a.pdf", "a")

	f.updater.Tasks()[0].RunOnce(ctx)
	_, ok := f.content.Store().LoadLocalManifest(ctx).Lookup("documents/a")
	assert.True(t, ok)
}

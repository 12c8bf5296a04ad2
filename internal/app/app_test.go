package app

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"assetsync/internal/config"
	apperrors "assetsync/internal/errors"
	"assetsync/internal/host"
	"assetsync/internal/logger"
	"assetsync/internal/updater"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func testServer(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)

	cfg.Content.ManifestURL = baseURL + "/content/manifest.json"
	cfg.Content.InitialDelay = time.Hour
	cfg.Code.ManifestURL = baseURL + "/app/manifest.json"
	cfg.Code.InitialDelay = time.Hour
	cfg.Storage.Backend = "memory"
	cfg.Storage.Path = ""
	cfg.Storage.BlobDir = filepath.Join(t.TempDir(), "blobs")
	cfg.HTTP.MaxRetries = 1
	cfg.HTTP.RetryWait = time.Millisecond
	return cfg
}

func TestNewWiresNativeHostAndUpdates(t *testing.T) {
	srv := testServer(t, map[string]string{
		"/content/manifest.json": `{"version":"1.0.0","documents":{"a.pdf":{"file":"a.pdf","hash":"H1","size":8}}}`,
		"/content/a.pdf":         "%PDF-1.4",
		"/app/manifest.json":     `{"version":"1.0.1","files":{"app.js":{"version":"1.0.1","url":"app.js","type":"script"}}}`,
		"/app/app.js":            "console.log('v1.0.1')",
	})

	var notices []updater.Notice
	var out bytes.Buffer
	a, err := New(context.Background(), testConfig(t, srv.URL), logger.NewMockLogger(),
		WithOutput(&out),
		WithNotifier(func(n updater.Notice) { notices = append(notices, n) }),
	)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, host.NameNative, a.Host().Name())

	ctx := context.Background()
	assert.Equal(t, 2, a.Updater().CheckForUpdates(ctx, true))

	summaries := a.Updater().DownloadUpdates(ctx)
	require.Len(t, summaries, 2)
	assert.Equal(t, []string{"documents/a.pdf"}, summaries[0].Succeeded)
	assert.True(t, summaries[1].RequiresReload)
	assert.True(t, a.Engine().PendingReload())

	doc, ok := a.Engine().Document("documents/a.pdf")
	require.True(t, ok)
	assert.Contains(t, doc.LocalRef, "file://")

	assert.Equal(t, 0, a.Updater().CheckForUpdates(ctx, true))
	assert.NotEmpty(t, notices)
}

func TestRestartReleasesStorageBeforeExec(t *testing.T) {
	srv := testServer(t, map[string]string{})
	cfg := testConfig(t, srv.URL)
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "state.db")

	a, err := New(context.Background(), cfg, logger.NewMockLogger(), WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	var persistErr error
	a.exec = func() error {
		persistErr = a.Host().KV().Persist(context.Background(), "after-close", []byte("x"))
		return errors.New("exec disabled")
	}

	require.EqualError(t, a.restart(), "exec disabled")
	assert.Error(t, persistErr, "storage must be closed before exec")
	assert.NoError(t, a.Close())
}

func TestNewRejectsInvalidManifestURL(t *testing.T) {
	cfg := testConfig(t, "http://example.test")
	cfg.Content.ManifestURL = "not a url"

	_, err := New(context.Background(), cfg, logger.NewMockLogger(), WithOutput(&bytes.Buffer{}))
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCategoryConfig, appErr.Category)
	assert.Equal(t, "validator.validateManifestURLs", appErr.Operation)
}

func TestNewRequiresAnEnabledClass(t *testing.T) {
	cfg := testConfig(t, "http://example.test")
	disabled := false
	cfg.Content.Enabled = &disabled
	cfg.Code.Enabled = &disabled

	_, err := New(context.Background(), cfg, logger.NewMockLogger(), WithOutput(&bytes.Buffer{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no asset class is enabled")
}

func TestValidatorDiskSpace(t *testing.T) {
	cfg := testConfig(t, "http://example.test")
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.Path = filepath.Join(t.TempDir(), "state.db")

	v := NewEnvironmentValidator(cfg, logger.NewMockLogger())
	v.statfs = func(string, *unix.Statfs_t) error {
		return nil
	}
	err := v.Validate()
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCategorySystem, appErr.Category)
	assert.Equal(t, "insufficient disk space", appErr.Message)

	v.statfs = func(_ string, st *unix.Statfs_t) error {
		st.Bavail = 1 << 20
		st.Bsize = 4096
		return nil
	}
	assert.NoError(t, v.Validate())
}

func TestPipelineStopsAtFirstFailure(t *testing.T) {
	var ran []string
	step := func(name string, err error) Step {
		return Step{Name: name, Operation: "test." + name, Category: apperrors.ErrCategoryStorage, Fn: func(context.Context) error {
			ran = append(ran, name)
			return err
		}}
	}

	p := NewPipeline(nil, logger.NewMockLogger(), []Step{
		step("one", nil),
		step("two", errors.New("boom")),
		step("three", nil),
	}, func(s Step, err error) error { return wrapStepError(s, err) })

	err := p.Execute(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"one", "two"}, ran)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeStorageGeneric, appErr.Code)
	assert.Equal(t, "test.two", appErr.Operation)
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	log.Debug("hello %s", "json")
	assert.Contains(t, buf.String(), `"hello json"`)

	buf.Reset()
	log = NewLogger(config.LogConfig{Level: "warn", Format: "text"}, &buf)
	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

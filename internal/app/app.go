// Package app wires configuration, storage, transport and the update
// pipeline into a runnable client.
package app

import (
	"context"
	"io"
	"os"
	"sync"

	"assetsync/internal/apply"
	"assetsync/internal/config"
	apperrors "assetsync/internal/errors"
	"assetsync/internal/fetcher"
	"assetsync/internal/host"
	"assetsync/internal/logger"
	"assetsync/internal/manifest"
	"assetsync/internal/menu"
	"assetsync/internal/metrics"
	"assetsync/internal/store"
	"assetsync/internal/ui"
	"assetsync/internal/updater"
)

// App is a fully wired update client.
type App struct {
	config  *config.Config
	logger  logger.Logger
	console *ui.Console
	output  io.Writer

	host    host.Host
	metrics *metrics.Metrics
	engine  *apply.Engine
	updater *updater.Updater

	transportOpts []host.TransportOption
	notify        updater.Notifier
	progress      bool
	autoDownload  bool
	version       string
	exec          func() error

	closeOnce sync.Once
	closeErr  error
}

// Option customises App construction.
type Option func(*App)

// WithOutput redirects plain UI output.
func WithOutput(w io.Writer) Option {
	return func(a *App) {
		a.output = w
	}
}

// WithTransportOptions passes options to the HTTP transport.
func WithTransportOptions(opts ...host.TransportOption) Option {
	return func(a *App) {
		a.transportOpts = append(a.transportOpts, opts...)
	}
}

// WithNotifier replaces the console notifier.
func WithNotifier(n updater.Notifier) Option {
	return func(a *App) {
		a.notify = n
	}
}

// WithProgressBar renders download progress on the output.
func WithProgressBar(enabled bool) Option {
	return func(a *App) {
		a.progress = enabled
	}
}

// WithAutoDownload makes passive checks download what they find.
func WithAutoDownload(enabled bool) Option {
	return func(a *App) {
		a.autoDownload = enabled
	}
}

// WithVersion sets the build version shown by the UI.
func WithVersion(v string) Option {
	return func(a *App) {
		a.version = v
	}
}

// New validates the environment and builds every component.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, apperrors.ConfigError(apperrors.CodeConfigGeneric, "configuration is required", nil).
			WithModule("app").
			WithOperation("New")
	}
	if log == nil {
		log = NewLogger(cfg.Log, nil)
	}

	a := &App{
		config:  cfg,
		logger:  log,
		output:  os.Stdout,
		metrics: metrics.New(),
		exec:    menu.ExecSelf,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.console = ui.NewConsole(log, a.output)
	if a.notify == nil {
		a.notify = a.console.Notice
	}

	steps := []Step{
		{"Validate environment", "app.validate", apperrors.ErrCategoryConfig, a.validate},
		{"Open storage", "app.openHost", apperrors.ErrCategoryStorage, a.openHost},
		{"Build update pipeline", "app.buildUpdater", apperrors.ErrCategorySystem, a.buildUpdater},
	}
	pipeline := NewPipeline(nil, log, steps, func(step Step, err error) error {
		return wrapStepError(step, err)
	})
	if err := pipeline.Execute(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) validate(context.Context) error {
	return NewEnvironmentValidator(a.config, a.logger).Validate()
}

func (a *App) openHost(ctx context.Context) error {
	transportOpts := append([]host.TransportOption(nil), a.transportOpts...)
	if a.progress {
		transportOpts = append(transportOpts, host.WithProgressReporter(ui.NewProgressBar(a.output)))
	}

	h, err := host.Detect(ctx, host.Options{
		Backend: a.config.Storage.Backend,
		Path:    a.config.Storage.Path,
		BlobDir: a.config.Storage.BlobDir,
		HTTP: host.HTTPConfig{
			Timeout:    a.config.HTTP.Timeout,
			MaxRetries: a.config.HTTP.MaxRetries,
			RetryWait:  a.config.HTTP.RetryWait,
			UserAgent:  a.config.HTTP.UserAgent,
			CacheBust:  a.config.HTTP.CacheBustEnabled(),
		},
		TransportOptions: transportOpts,
	}, a.logger)
	if err != nil {
		return err
	}
	a.logger.Info("Using %s host", h.Name())
	a.host = h
	return nil
}

func (a *App) buildUpdater(context.Context) error {
	f := fetcher.New(a.host.Transport(), a.logger, fetcher.WithHashVerification(a.config.ShouldVerifyHashes()))

	contentStore := store.New(manifest.ClassContent, a.host.KV(), a.host.Blobs(), a.logger)
	codeStore := store.New(manifest.ClassCode, a.host.KV(), a.host.Blobs(), a.logger)

	a.engine = apply.New(codeStore, a.logger,
		apply.WithBaseline(a.config.Code.BaselineVersion),
		apply.WithMetrics(a.metrics),
	)

	deps := updater.Deps{
		Manifests: f,
		Assets:    f,
		Engine:    a.engine,
		Logger:    a.logger,
		Metrics:   a.metrics,
		Notify:    a.notify,
	}
	if a.progress {
		deps.Progress = ui.NewProgressBar(a.output).OnBatch
	}

	var classes []*updater.ClassUpdater
	if a.config.Content.IsEnabled() {
		classes = append(classes, updater.NewClass(classOptions(manifest.ClassContent, a.config.Content), contentStore, deps))
	}
	if a.config.Code.IsEnabled() {
		classes = append(classes, updater.NewClass(classOptions(manifest.ClassCode, a.config.Code), codeStore, deps))
	}
	if len(classes) == 0 {
		return apperrors.ConfigError(apperrors.CodeConfigGeneric, "no asset class is enabled", nil)
	}

	a.updater = updater.New(a.engine, a.logger, classes, updater.WithAutoDownload(a.autoDownload))
	return nil
}

func classOptions(class manifest.Class, cc config.ClassConfig) updater.ClassOptions {
	return updater.ClassOptions{
		Class:        class,
		ManifestURL:  cc.ManifestURL,
		InitialDelay: cc.InitialDelay,
		Interval:     cc.CheckInterval,
	}
}

// Updater exposes the update surface.
func (a *App) Updater() *updater.Updater {
	return a.updater
}

// Engine exposes the applied state.
func (a *App) Engine() *apply.Engine {
	return a.engine
}

// Host exposes the detected host.
func (a *App) Host() host.Host {
	return a.host
}

// Start replays stored updates, schedules passive checks and, when an
// address is configured, serves metrics until ctx ends.
func (a *App) Start(ctx context.Context) {
	a.updater.Init(ctx)

	if addr := a.config.Metrics.Addr; addr != "" {
		go func() {
			a.logger.Info("Serving metrics on %s", addr)
			if err := a.metrics.Serve(ctx, addr); err != nil {
				a.logger.Error("Metrics server stopped: %v", err)
			}
		}()
	}
}

// RunMenu starts the client and shows the interactive menu.
func (a *App) RunMenu(ctx context.Context) error {
	a.Start(ctx)
	m := menu.NewMenu(ctx, a.updater, a.console,
		menu.WithVersion(a.version),
		menu.WithReloader(a.restart),
	)
	return m.ShowMainMenu()
}

// restart releases storage and scheduled work, then re-executes the binary.
func (a *App) restart() error {
	if err := a.Close(); err != nil {
		a.logger.Warn("Failed to close storage before restart: %v", err)
	}
	return a.exec()
}

// Watch starts the client and blocks until ctx ends.
func (a *App) Watch(ctx context.Context) error {
	a.Start(ctx)
	<-ctx.Done()
	a.logger.Info("Stopping passive checks")
	return nil
}

// Close stops scheduled work and releases storage. Later calls return the
// first result.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		if a.updater != nil {
			a.updater.Stop()
		}
		if a.host != nil {
			a.closeErr = a.host.Close()
		}
	})
	return a.closeErr
}

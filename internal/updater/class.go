// Package updater exposes the update operations used by the host UI:
// checking for updates, downloading them, reading session state and
// starting the periodic passive check.
package updater

import (
	"context"
	"time"

	"assetsync/internal/apply"
	"assetsync/internal/downloader"
	"assetsync/internal/errors/logging"
	"assetsync/internal/logger"
	"assetsync/internal/manifest"
	"assetsync/internal/metrics"
	"assetsync/internal/reconcile"
	"assetsync/internal/session"
	"assetsync/internal/store"
)

// ManifestFetcher retrieves a remote manifest.
type ManifestFetcher interface {
	FetchManifest(ctx context.Context, class manifest.Class, url string) (*manifest.Manifest, error)
}

// ClassOptions configures one asset class.
type ClassOptions struct {
	Class        manifest.Class
	ManifestURL  string
	InitialDelay time.Duration
	Interval     time.Duration
}

// Deps are the collaborators shared by the class updaters.
type Deps struct {
	Manifests ManifestFetcher
	Assets    downloader.AssetFetcher
	Engine    *apply.Engine
	Logger    logger.Logger
	Metrics   *metrics.Metrics
	Notify    Notifier
	// Progress, when set, also receives batch progress.
	Progress downloader.ProgressFunc
}

// Summary is the outcome of DownloadUpdates.
type Summary struct {
	Class     manifest.Class   `json:"class"`
	Succeeded []string         `json:"succeeded"`
	Failed    []string         `json:"failed"`
	Applied   []apply.Outcome  `json:"-"`
	Progress  session.Progress `json:"progress"`
	// RequiresReload is set when downloaded code takes effect after a restart.
	RequiresReload bool `json:"requiresReload"`
	// Skipped is set when another check or download was already running.
	Skipped bool `json:"skipped,omitempty"`
}

// ClassUpdater drives the update lifecycle of one class.
type ClassUpdater struct {
	opts         ClassOptions
	manifests    ManifestFetcher
	store        *store.Store
	reconciler   *reconcile.Reconciler
	orchestrator *downloader.Orchestrator
	engine       *apply.Engine
	session      *session.Session
	logger       logger.Logger
	metrics      *metrics.Metrics
	notify       Notifier
	now          func() time.Time
}

// NewClass wires a ClassUpdater for opts.Class over st.
func NewClass(opts ClassOptions, st *store.Store, deps Deps) *ClassUpdater {
	sess := session.New(opts.Class)

	progress := func(p session.Progress) {
		sess.UpdateProgress(p)
		if deps.Progress != nil {
			deps.Progress(p)
		}
	}

	return &ClassUpdater{
		opts:       opts,
		manifests:  deps.Manifests,
		store:      st,
		reconciler: reconcile.New(deps.Logger),
		orchestrator: downloader.New(deps.Assets, st, deps.Logger,
			downloader.WithMetrics(deps.Metrics),
			downloader.WithProgress(progress),
		),
		engine:  deps.Engine,
		session: sess,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		notify:  deps.Notify,
		now:     time.Now,
	}
}

// Class returns the asset class.
func (c *ClassUpdater) Class() manifest.Class {
	return c.opts.Class
}

// Session returns the session handle of the class.
func (c *ClassUpdater) Session() *session.Session {
	return c.session
}

// Store returns the Manifest Store of the class.
func (c *ClassUpdater) Store() *store.Store {
	return c.store
}

// CheckForUpdates fetches the remote manifest, reconciles it against the
// local one and returns the number of pending transfers. A check that is
// already running makes this a no-op returning the current pending count.
// Failures yield zero. Silent checks only notify when updates are found.
func (c *ClassUpdater) CheckForUpdates(ctx context.Context, silent bool) int {
	class := string(c.opts.Class)
	if !c.session.BeginCheck() {
		c.metrics.ObserveCheck(class, metrics.ResultSkipped, 0, 0)
		return c.session.Snapshot().PendingCount
	}

	ctx = logger.ContextWithTrace(ctx, logger.NewTrace(class, "check"))
	started := c.now()

	local := c.store.LoadLocalManifest(ctx)
	remote, err := c.manifests.FetchManifest(ctx, c.opts.Class, c.opts.ManifestURL)
	if err != nil {
		c.session.EndCheck(local.Version, nil, nil, err)
		c.metrics.ObserveCheck(class, metrics.ResultFailed, 0, c.now().Sub(started))
		if silent {
			logging.Debug(ctx, c.logger, "update check failed", err)
		} else {
			logging.Warn(ctx, c.logger, "update check failed", err)
			c.emit(Notice{Class: c.opts.Class, Kind: NoticeFailed, Err: err})
		}
		return 0
	}

	pending := c.reconciler.Reconcile(ctx, local, remote)
	c.session.EndCheck(local.Version, remote, pending, nil)

	result := metrics.ResultUpToDate
	if len(pending) > 0 {
		result = metrics.ResultAvailable
	}
	c.metrics.ObserveCheck(class, result, len(pending), c.now().Sub(started))

	c.logger.InfoContext(ctx, "update check finished",
		logger.String("local_version", local.Version),
		logger.String("remote_version", remote.Version),
		logger.Int("pending", len(pending)),
	)

	switch {
	case len(pending) > 0:
		c.emit(Notice{Class: c.opts.Class, Kind: NoticeAvailable, Count: len(pending), Critical: c.session.Snapshot().Critical})
	case !silent:
		c.emit(Notice{Class: c.opts.Class, Kind: NoticeUpToDate})
	}
	return len(pending)
}

// DownloadUpdates downloads the transfers found by the last check and
// applies the ones that succeeded. A running check or download makes
// this a no-op with Skipped set.
func (c *ClassUpdater) DownloadUpdates(ctx context.Context) Summary {
	summary := Summary{Class: c.opts.Class}

	pending, remote, ok := c.session.BeginDownload()
	if !ok {
		summary.Skipped = true
		return summary
	}

	ctx = logger.ContextWithTrace(ctx, logger.NewTrace(string(c.opts.Class), "download"))

	target := downloader.TargetOf(remote)
	result := c.orchestrator.DownloadAll(ctx, pending, target)

	if c.engine != nil {
		summary.Applied = c.engine.Apply(ctx, result.Records)
	}
	for _, out := range summary.Applied {
		if out.Strategy == apply.StrategyReloadRequired {
			summary.RequiresReload = true
		}
	}
	if summary.RequiresReload {
		c.session.MarkPendingReload()
	}

	c.session.EndDownload(result.LocalVersion, result.FailedTransfers)

	summary.Succeeded = result.Succeeded
	summary.Failed = result.Failed
	summary.Progress = result.Progress

	if err := result.Err(); err != nil {
		logging.Warn(ctx, c.logger, "download batch incomplete", err)
	}
	c.emit(Notice{
		Class:          c.opts.Class,
		Kind:           NoticeDownloaded,
		Count:          len(result.Succeeded),
		Failed:         len(result.Failed),
		RequiresReload: summary.RequiresReload,
	})
	return summary
}

// State returns a read-only snapshot of the session.
func (c *ClassUpdater) State() session.State {
	return c.session.Snapshot()
}

func (c *ClassUpdater) emit(n Notice) {
	if c.notify != nil {
		c.notify(n)
	}
}

// Package downloader executes pending transfers for one asset class and
// records the successful ones in the Manifest Store.
package downloader

import (
	"context"
	"time"

	apperrors "assetsync/internal/errors"
	"assetsync/internal/errors/logging"
	"assetsync/internal/fetcher"
	"assetsync/internal/logger"
	"assetsync/internal/manifest"
	"assetsync/internal/metrics"
	"assetsync/internal/session"
)

// AssetFetcher downloads the payload of a pending transfer.
type AssetFetcher interface {
	FetchTransfer(ctx context.Context, p manifest.PendingTransfer) (fetcher.Asset, error)
}

// ManifestStore is the persistence the orchestrator writes to.
type ManifestStore interface {
	Class() manifest.Class
	LoadLocalManifest(ctx context.Context) *manifest.Local
	SaveLocalManifest(ctx context.Context, local *manifest.Local) error
	SaveBlob(ctx context.Context, identifier string, payload []byte) (string, error)
}

// ProgressFunc receives progress after every state change of a batch.
type ProgressFunc func(session.Progress)

// Target is the remote manifest state a batch moves towards.
type Target struct {
	Version     string
	LastUpdated string
}

// TargetOf returns the target for remote. A nil manifest yields a target
// that never bumps the local version.
func TargetOf(remote *manifest.Manifest) Target {
	if remote == nil {
		return Target{}
	}
	return Target{Version: remote.Version, LastUpdated: remote.LastUpdated}
}

// Result summarises a batch.
type Result struct {
	Succeeded []string `json:"succeeded"`
	Failed    []string `json:"failed"`

	// Records holds the stored record of every succeeded transfer, in batch order.
	Records []manifest.Record `json:"-"`
	// FailedTransfers are the transfers to retry.
	FailedTransfers []manifest.PendingTransfer `json:"-"`
	Errors          map[string]error           `json:"-"`

	Progress      session.Progress `json:"progress"`
	LocalVersion  string           `json:"localVersion"`
	VersionBumped bool             `json:"versionBumped"`
	// SaveErr is set when the local manifest could not be written.
	SaveErr error `json:"-"`
}

// Err summarises the failed transfers as a BATCH error, or nil.
func (r Result) Err() error {
	if r.SaveErr != nil {
		return r.SaveErr
	}
	if len(r.Failed) == 0 {
		return nil
	}
	return apperrors.BatchError(apperrors.CodeBatchPartial, "some transfers failed", nil).
		WithModule("downloader").
		WithFields(apperrors.Metadata{
			"succeeded": len(r.Succeeded),
			"failed":    len(r.Failed),
		})
}

// Orchestrator runs download batches one transfer at a time.
type Orchestrator struct {
	fetcher  AssetFetcher
	store    ManifestStore
	logger   logger.Logger
	metrics  *metrics.Metrics
	progress ProgressFunc
	now      func() time.Time
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics records per-file outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) {
		o.progress = fn
	}
}

// WithClock overrides the clock used for AppliedAt.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New returns an Orchestrator.
func New(f AssetFetcher, s ManifestStore, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher: f,
		store:   s,
		logger:  log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// DownloadAll fetches and stores every transfer in order, tolerating
// per-item failures. Blobs are saved as each item completes; the local
// manifest is written once at the end. The local version moves to
// target.Version only when no transfer failed.
func (o *Orchestrator) DownloadAll(ctx context.Context, pending []manifest.PendingTransfer, target Target) Result {
	class := string(o.store.Class())
	result := Result{Errors: make(map[string]error)}

	progress := session.Progress{TotalFiles: len(pending)}
	for _, p := range pending {
		if p.SizeBytes > 0 {
			progress.TotalBytes += p.SizeBytes
		}
	}
	o.report(progress)

	local := o.store.LoadLocalManifest(ctx).Clone()

	for i, p := range pending {
		progress.CurrentFile = p.Identifier
		o.report(progress)

		record, size, err := o.transfer(ctx, p)
		if err != nil {
			result.Failed = append(result.Failed, p.Identifier)
			result.FailedTransfers = append(result.FailedTransfers, p)
			result.Errors[p.Identifier] = err
			o.metrics.ObserveDownload(class, metrics.StatusFailed, 0)
			logging.Warn(ctx, o.logger, "transfer failed, continuing with batch", err)
			continue
		}

		local.Put(record)
		result.Succeeded = append(result.Succeeded, p.Identifier)
		result.Records = append(result.Records, record)
		o.metrics.ObserveDownload(class, metrics.StatusSucceeded, size)

		progress.CompletedFiles++
		if p.SizeBytes > 0 {
			progress.DownloadedBytes += p.SizeBytes
		} else {
			progress.DownloadedBytes += size
			progress.TotalBytes += size
		}
		o.logger.DebugContext(ctx, "transfer stored",
			logger.String("identifier", p.Identifier),
			logger.Int("index", i+1),
			logger.Int("total", len(pending)),
			logger.Int64("bytes", size),
		)
	}

	progress.CurrentFile = ""
	o.report(progress)
	result.Progress = progress

	if len(result.Failed) == 0 && target.Version != "" {
		result.VersionBumped = local.Version != target.Version
		local.Version = target.Version
		if target.LastUpdated != "" {
			local.LastUpdated = target.LastUpdated
		}
	}
	result.LocalVersion = local.Version

	if len(result.Succeeded) > 0 || result.VersionBumped {
		if err := o.store.SaveLocalManifest(ctx, local); err != nil {
			result.SaveErr = err
			result.VersionBumped = false
			result.LocalVersion = o.store.LoadLocalManifest(ctx).Version
			logging.Error(ctx, o.logger, "failed to persist local manifest after batch", err)
		}
	}

	o.logger.InfoContext(ctx, "download batch finished",
		logger.String("class", class),
		logger.Int("succeeded", len(result.Succeeded)),
		logger.Int("failed", len(result.Failed)),
		logger.String("local_version", result.LocalVersion),
	)
	return result
}

func (o *Orchestrator) transfer(ctx context.Context, p manifest.PendingTransfer) (manifest.Record, int64, error) {
	asset, err := o.fetcher.FetchTransfer(ctx, p)
	if err != nil {
		return manifest.Record{}, 0, err
	}

	ref, err := o.store.SaveBlob(ctx, p.Identifier, asset.Data)
	if err != nil {
		return manifest.Record{}, 0, err
	}
	return p.Record(ref, o.now()), int64(len(asset.Data)), nil
}

func (o *Orchestrator) report(p session.Progress) {
	if o.progress != nil {
		o.progress(p)
	}
}

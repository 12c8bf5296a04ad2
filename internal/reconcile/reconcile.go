// Package reconcile computes the transfers needed to bring a local record set
// up to a remote manifest.
package reconcile

import (
	"context"
	"strings"

	"assetsync/internal/logger"
	"assetsync/internal/manifest"
	"assetsync/internal/version"
)

// Reason explains why a leaf became pending.
type Reason string

const (
	ReasonNew          Reason = "new"
	ReasonHashChanged  Reason = "hash-changed"
	ReasonNewerVersion Reason = "newer-version"
)

// Skipped is a remote leaf that could not be reconciled.
type Skipped struct {
	Identifier string
	Reason     string
}

// Plan is the outcome of comparing a remote manifest with local records.
type Plan struct {
	Pending []manifest.PendingTransfer
	Reasons map[string]Reason
	Skipped []Skipped
}

// Diff walks remote depth-first in insertion order and returns the pending
// transfers. Local entries missing remotely are left alone.
func Diff(local manifest.RecordSet, remote *manifest.Manifest) Plan {
	plan := Plan{Reasons: make(map[string]Reason)}
	if remote == nil {
		return plan
	}

	seen := make(map[string]struct{})
	remote.Walk(func(path []string, e *manifest.Entry) {
		id := e.Identifier
		if id == "" {
			id = manifest.Identifier(remote.Class, path)
		}

		if !e.HasFingerprint() {
			plan.Skipped = append(plan.Skipped, Skipped{Identifier: id, Reason: "entry has neither hash nor version"})
			return
		}
		if strings.TrimSpace(e.SourceURL) == "" {
			plan.Skipped = append(plan.Skipped, Skipped{Identifier: id, Reason: "entry has no source url"})
			return
		}
		if _, dup := seen[id]; dup {
			plan.Skipped = append(plan.Skipped, Skipped{Identifier: id, Reason: "duplicate identifier"})
			return
		}
		seen[id] = struct{}{}

		var existing manifest.Record
		var ok bool
		if local != nil {
			existing, ok = local.Lookup(id)
		}

		reason, pending := compare(e, existing, ok)
		if !pending {
			return
		}

		p := manifest.PendingFromEntry(e)
		p.Identifier = id
		plan.Pending = append(plan.Pending, p)
		plan.Reasons[id] = reason
	})

	return plan
}

// compare applies the per-kind rules: content assets are equal when their
// hashes match, code assets are pending only for a strictly newer version.
// Each kind falls back to the other fingerprint when its own is missing.
func compare(remote *manifest.Entry, local manifest.Record, present bool) (Reason, bool) {
	if !present {
		return ReasonNew, true
	}

	remoteHash := strings.TrimSpace(remote.ContentHash)
	remoteVersion := strings.TrimSpace(remote.Version)

	if remote.Kind == manifest.KindContent {
		if remoteHash != "" {
			return ReasonHashChanged, remoteHash != strings.TrimSpace(local.ContentHash)
		}
		return ReasonNewerVersion, version.Newer(remoteVersion, local.Version)
	}

	if remoteVersion != "" {
		return ReasonNewerVersion, version.Newer(remoteVersion, local.Version)
	}
	return ReasonHashChanged, remoteHash != strings.TrimSpace(local.ContentHash)
}

// Reconciler wraps Diff with diagnostics.
type Reconciler struct {
	logger logger.Logger
}

// New returns a Reconciler that reports skipped entries to log.
func New(log logger.Logger) *Reconciler {
	return &Reconciler{logger: log}
}

// Reconcile returns the ordered pending transfers for remote against local.
func (r *Reconciler) Reconcile(ctx context.Context, local manifest.RecordSet, remote *manifest.Manifest) []manifest.PendingTransfer {
	plan := Diff(local, remote)

	if r.logger != nil {
		for _, s := range plan.Skipped {
			r.logger.WarnContext(ctx, "skipping manifest entry",
				logger.String("identifier", s.Identifier),
				logger.String("reason", s.Reason),
			)
		}
		for _, p := range plan.Pending {
			r.logger.DebugContext(ctx, "pending transfer",
				logger.String("identifier", p.Identifier),
				logger.String("reason", string(plan.Reasons[p.Identifier])),
			)
		}
	}

	return plan.Pending
}

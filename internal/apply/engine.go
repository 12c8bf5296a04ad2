// Package apply integrates downloaded assets into the running process.
//
// Stylesheets are hot-applied as overlays, content documents are merged into
// the live document tree and scripts are stored for the next start. On
// startup ApplyStoredUpdates replays everything that is stored; replaying
// the same set twice leaves the same state.
package apply

import (
	"context"
	"sort"
	"strings"
	"sync"

	apperrors "assetsync/internal/errors"
	"assetsync/internal/errors/logging"
	"assetsync/internal/logger"
	"assetsync/internal/manifest"
	"assetsync/internal/metrics"
	"assetsync/internal/version"
)

// Strategy is how an asset takes effect.
type Strategy string

const (
	StrategyHotApply       Strategy = "hot-apply"
	StrategyReloadRequired Strategy = "reload-required"
	StrategyMerge          Strategy = "merge"
	// StrategyActivate marks a stored script chosen as this process's code.
	StrategyActivate Strategy = "activate"
	// StrategyBaseline marks a stored script ignored because the bundled
	// code is as new or newer.
	StrategyBaseline Strategy = "baseline"
)

// Outcome is the result of applying one record.
type Outcome struct {
	Identifier string
	Kind       manifest.AssetKind
	Strategy   Strategy
	Critical   bool
	Err        error
}

// BlobLoader reads stored payloads.
type BlobLoader interface {
	LoadBlob(ctx context.Context, identifier string) ([]byte, bool, error)
}

// ActiveScript is the code a process runs for one identifier.
type ActiveScript struct {
	Identifier string
	Version    string
	// Stored is true when the code comes from a downloaded blob rather than
	// the bundled build.
	Stored bool
	Ref    string
}

// Snapshot is a read-only view of applied state.
type Snapshot struct {
	Documents     []manifest.Record
	Styles        []Overlay
	Disabled      []string
	Scripts       []ActiveScript
	PendingReload bool
	// CriticalReload is set when a critical script waits for a restart.
	CriticalReload bool
}

// Engine holds the live applied state.
type Engine struct {
	mu sync.Mutex

	code     BlobLoader
	baseline string
	docs     *manifest.Manifest
	styles   *StyleSet
	scripts  map[string]ActiveScript

	pendingReload  bool
	criticalReload bool

	logger  logger.Logger
	metrics *metrics.Metrics
}

// Option customises an Engine.
type Option func(*Engine)

// WithBaseline sets the version of the code bundled with this build.
func WithBaseline(v string) Option {
	return func(e *Engine) {
		e.baseline = v
	}
}

// WithDocuments seeds the live document tree.
func WithDocuments(m *manifest.Manifest) Option {
	return func(e *Engine) {
		if m != nil {
			e.docs = m
		}
	}
}

// WithMetrics records apply decisions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New returns an Engine reading code payloads from code.
func New(code BlobLoader, log logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		code:     code,
		baseline: manifest.DefaultVersion,
		docs:     manifest.New(manifest.ClassContent, manifest.DefaultVersion),
		styles:   NewStyleSet(),
		scripts:  make(map[string]ActiveScript),
		logger:   log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply integrates records that were just downloaded in this session.
func (e *Engine) Apply(ctx context.Context, records []manifest.Record) []Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	outcomes := make([]Outcome, 0, len(records))
	for _, r := range records {
		var out Outcome
		switch r.Kind {
		case manifest.KindContent:
			out = e.merge(ctx, r)
		case manifest.KindStylesheet:
			out = e.hotApply(ctx, r)
		default:
			out = e.requireReload(r)
		}
		e.record(ctx, out)
		outcomes = append(outcomes, out)
	}
	e.metrics.SetPendingReload(e.pendingReload)
	return outcomes
}

// ApplyStoredUpdates replays the stored state of both classes: content is
// merged, stylesheets are hot-applied and scripts newer than the baseline
// become the active code. Either argument may be nil.
func (e *Engine) ApplyStoredUpdates(ctx context.Context, content, code *manifest.Local) []Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	var outcomes []Outcome
	if content != nil {
		for _, r := range content.Sorted() {
			out := e.merge(ctx, r)
			e.record(ctx, out)
			outcomes = append(outcomes, out)
		}
	}
	if code != nil {
		for _, r := range code.Sorted() {
			var out Outcome
			if r.Kind == manifest.KindStylesheet {
				out = e.hotApply(ctx, r)
			} else {
				out = e.activate(r)
			}
			e.record(ctx, out)
			outcomes = append(outcomes, out)
		}
	}
	return outcomes
}

func (e *Engine) merge(ctx context.Context, r manifest.Record) Outcome {
	path := r.Path
	if len(path) < 2 {
		path = strings.Split(r.Identifier, "/")
	}
	out := Outcome{Identifier: r.Identifier, Kind: manifest.KindContent, Strategy: StrategyMerge}
	if len(path) < 2 {
		out.Err = apperrors.ValidationError(apperrors.CodeValidationGeneric, "content record has no category path", nil).
			WithModule("apply").
			WithOperation("merge").
			WithField("identifier", r.Identifier)
		return out
	}

	displaced := e.docs.Upsert(path, manifest.Entry{
		Identifier:  r.Identifier,
		File:        r.File,
		ContentHash: r.ContentHash,
		Version:     r.Version,
		SizeBytes:   r.SizeBytes,
		SourceURL:   r.LocalRef,
		Kind:        manifest.KindContent,
		Path:        append([]string(nil), path...),
	})
	if displaced && e.logger != nil {
		e.logger.WarnContext(ctx, "content entry replaced a node of another kind in the document tree",
			logger.String("identifier", r.Identifier),
			logger.String("path", strings.Join(path, "/")),
		)
	}
	return out
}

func (e *Engine) hotApply(ctx context.Context, r manifest.Record) Outcome {
	out := Outcome{Identifier: r.Identifier, Kind: manifest.KindStylesheet, Strategy: StrategyHotApply, Critical: r.Critical}

	css, ok, err := e.code.LoadBlob(ctx, r.Identifier)
	if err == nil && !ok {
		err = apperrors.StorageError(apperrors.CodeStorageBlob, "stored stylesheet is missing", nil)
	}
	if err != nil {
		out.Err = err
		return out
	}

	e.styles.Inject(Overlay{Identifier: r.Identifier, Version: r.Version, CSS: string(css)})
	return out
}

func (e *Engine) requireReload(r manifest.Record) Outcome {
	e.pendingReload = true
	if r.Critical {
		e.criticalReload = true
	}
	return Outcome{Identifier: r.Identifier, Kind: manifest.KindScript, Strategy: StrategyReloadRequired, Critical: r.Critical}
}

func (e *Engine) activate(r manifest.Record) Outcome {
	out := Outcome{Identifier: r.Identifier, Kind: manifest.KindScript, Critical: r.Critical}
	if version.Newer(r.Version, e.baseline) {
		e.scripts[r.Identifier] = ActiveScript{Identifier: r.Identifier, Version: r.Version, Stored: true, Ref: r.LocalRef}
		out.Strategy = StrategyActivate
		return out
	}
	e.scripts[r.Identifier] = ActiveScript{Identifier: r.Identifier, Version: e.baseline}
	out.Strategy = StrategyBaseline
	return out
}

func (e *Engine) record(ctx context.Context, out Outcome) {
	if out.Err != nil {
		logging.Warn(ctx, e.logger, "failed to apply asset", out.Err)
		return
	}
	e.metrics.ObserveApply(string(out.Kind), string(out.Strategy))
	if e.logger != nil {
		e.logger.DebugContext(ctx, "asset applied",
			logger.String("identifier", out.Identifier),
			logger.String("strategy", string(out.Strategy)),
		)
	}
}

// PendingReload reports whether downloaded code waits for a restart.
func (e *Engine) PendingReload() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pendingReload
}

// Snapshot returns a copy of the applied state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	var docs []manifest.Record
	e.docs.Walk(func(_ []string, entry *manifest.Entry) {
		docs = append(docs, documentRecord(entry))
	})

	scripts := make([]ActiveScript, 0, len(e.scripts))
	for _, s := range e.scripts {
		scripts = append(scripts, s)
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].Identifier < scripts[j].Identifier })

	return Snapshot{
		Documents:      docs,
		Styles:         e.styles.Overlays(),
		Disabled:       e.styles.DisabledOriginals(),
		Scripts:        scripts,
		PendingReload:  e.pendingReload,
		CriticalReload: e.criticalReload,
	}
}

// Document returns the live entry for identifier.
func (e *Engine) Document(identifier string) (manifest.Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		found manifest.Record
		ok    bool
	)
	e.docs.Walk(func(_ []string, entry *manifest.Entry) {
		if ok || entry.Identifier != identifier {
			return
		}
		found, ok = documentRecord(entry), true
	})
	return found, ok
}

func documentRecord(entry *manifest.Entry) manifest.Record {
	return manifest.Record{
		Identifier:  entry.Identifier,
		File:        entry.File,
		ContentHash: entry.ContentHash,
		Version:     entry.Version,
		Kind:        entry.Kind,
		SizeBytes:   entry.SizeBytes,
		Path:        append([]string(nil), entry.Path...),
		LocalRef:    entry.SourceURL,
	}
}

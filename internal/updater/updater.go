package updater

import (
	"context"
	"sync"

	"assetsync/internal/apply"
	"assetsync/internal/logger"
	"assetsync/internal/manifest"
	"assetsync/internal/scheduler"
	"assetsync/internal/session"
)

// Updater groups the class updaters of one process. Classes are
// independent and may check concurrently.
type Updater struct {
	classes      []*ClassUpdater
	engine       *apply.Engine
	scheduler    *scheduler.Scheduler
	logger       logger.Logger
	autoDownload bool

	initOnce sync.Once
}

// Option customises an Updater.
type Option func(*Updater)

// WithAutoDownload makes passive checks download what they find.
func WithAutoDownload(enabled bool) Option {
	return func(u *Updater) {
		u.autoDownload = enabled
	}
}

// New returns an Updater over classes.
func New(engine *apply.Engine, log logger.Logger, classes []*ClassUpdater, opts ...Option) *Updater {
	u := &Updater{
		classes:   classes,
		engine:    engine,
		scheduler: scheduler.New(log),
		logger:    log,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Class returns the updater of class.
func (u *Updater) Class(class manifest.Class) (*ClassUpdater, bool) {
	for _, c := range u.classes {
		if c.Class() == class {
			return c, true
		}
	}
	return nil, false
}

// Classes returns the class updaters in configuration order.
func (u *Updater) Classes() []*ClassUpdater {
	return append([]*ClassUpdater(nil), u.classes...)
}

// Engine returns the apply engine.
func (u *Updater) Engine() *apply.Engine {
	return u.engine
}

// CheckForUpdates checks every class concurrently and returns the total
// pending count.
func (u *Updater) CheckForUpdates(ctx context.Context, silent bool) int {
	counts := make([]int, len(u.classes))

	var wg sync.WaitGroup
	for i, c := range u.classes {
		wg.Add(1)
		go func(i int, c *ClassUpdater) {
			defer wg.Done()
			counts[i] = c.CheckForUpdates(ctx, silent)
		}(i, c)
	}
	wg.Wait()

	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

// DownloadUpdates downloads every class in turn.
func (u *Updater) DownloadUpdates(ctx context.Context) []Summary {
	out := make([]Summary, 0, len(u.classes))
	for _, c := range u.classes {
		out = append(out, c.DownloadUpdates(ctx))
	}
	return out
}

// State returns a snapshot of every class session.
func (u *Updater) State() []session.State {
	out := make([]session.State, 0, len(u.classes))
	for _, c := range u.classes {
		out = append(out, c.State())
	}
	return out
}

// ApplyStoredUpdates replays the stored state of every class into the
// apply engine and returns the outcomes.
func (u *Updater) ApplyStoredUpdates(ctx context.Context) []apply.Outcome {
	var content, code *manifest.Local
	for _, c := range u.classes {
		local := c.Store().LoadLocalManifest(ctx)
		c.Session().SetLocalVersion(local.Version)
		switch c.Class() {
		case manifest.ClassContent:
			content = local
		case manifest.ClassCode:
			code = local
		}
	}
	if u.engine == nil {
		return nil
	}
	return u.engine.ApplyStoredUpdates(ctx, content, code)
}

// Tasks returns the passive check task of every class.
func (u *Updater) Tasks() []scheduler.Task {
	tasks := make([]scheduler.Task, 0, len(u.classes))
	for _, c := range u.classes {
		c := c
		tasks = append(tasks, scheduler.Task{
			Name:         "check-" + string(c.Class()),
			InitialDelay: c.opts.InitialDelay,
			Interval:     c.opts.Interval,
			Run: func(ctx context.Context) {
				if c.CheckForUpdates(ctx, true) > 0 && u.autoDownload {
					c.DownloadUpdates(ctx)
				}
			},
		})
	}
	return tasks
}

// Init replays stored updates and starts the periodic passive checks. Only
// the first call has an effect; checks stop when ctx ends or Stop is called.
func (u *Updater) Init(ctx context.Context) {
	u.initOnce.Do(func() {
		outcomes := u.ApplyStoredUpdates(ctx)
		u.logger.Debug("Replayed %d stored assets", len(outcomes))

		for _, t := range u.Tasks() {
			u.scheduler.Add(ctx, t)
		}
	})
}

// Stop cancels the passive checks.
func (u *Updater) Stop() {
	u.scheduler.StopAll()
}

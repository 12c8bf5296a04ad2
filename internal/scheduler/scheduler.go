// Package scheduler runs periodic tasks with cancellable handles.
package scheduler

import (
	"context"
	"sync"
	"time"

	"assetsync/internal/logger"
)

// Task is a named body run after InitialDelay and then every Interval. A
// zero Interval runs the body once.
type Task struct {
	Name         string
	InitialDelay time.Duration
	Interval     time.Duration
	Run          func(ctx context.Context)
}

// RunOnce invokes the task body directly.
func (t Task) RunOnce(ctx context.Context) {
	if t.Run != nil {
		t.Run(ctx)
	}
}

// Handle controls a scheduled task.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop cancels the task and waits for a running body to return.
func (h *Handle) Stop() {
	h.once.Do(h.cancel)
	<-h.done
}

// Done is closed once the task loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Schedule starts t on its own goroutine. Runs never overlap.
func Schedule(ctx context.Context, t Task, log logger.Logger) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)

		if !sleep(ctx, t.InitialDelay) {
			return
		}
		for {
			if log != nil {
				log.Debug("Running scheduled task %s", t.Name)
			}
			t.RunOnce(ctx)

			if t.Interval <= 0 || !sleep(ctx, t.Interval) {
				return
			}
		}
	}()

	return h
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Scheduler owns a set of scheduled tasks.
type Scheduler struct {
	mu      sync.Mutex
	handles []*Handle
	logger  logger.Logger
}

// New returns an empty Scheduler.
func New(log logger.Logger) *Scheduler {
	return &Scheduler{logger: log}
}

// Add schedules t and returns its handle.
func (s *Scheduler) Add(ctx context.Context, t Task) *Handle {
	h := Schedule(ctx, t, s.logger)
	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()
	return h
}

// StopAll stops every task added so far.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}

// Len returns the number of tasks not yet stopped through StopAll.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

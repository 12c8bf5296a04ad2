// Package session tracks the update lifecycle of one asset class.
package session

import (
	"sync"
	"time"

	"assetsync/internal/manifest"
)

// Phase is a step of the update lifecycle.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseChecking    Phase = "checking"
	PhaseAvailable   Phase = "available"
	PhaseDownloading Phase = "downloading"
)

// Progress describes a running or finished download batch.
type Progress struct {
	CompletedFiles  int    `json:"completedFiles"`
	TotalFiles      int    `json:"totalFiles"`
	DownloadedBytes int64  `json:"downloadedBytes"`
	TotalBytes      int64  `json:"totalBytes"`
	CurrentFile     string `json:"currentFile,omitempty"`
}

// State is a read-only snapshot of a session.
type State struct {
	Class         manifest.Class `json:"class"`
	Phase         Phase          `json:"phase"`
	Checking      bool           `json:"checking"`
	Downloading   bool           `json:"downloading"`
	PendingCount  int            `json:"pendingCount"`
	LocalVersion  string         `json:"localVersion"`
	RemoteVersion string         `json:"remoteVersion,omitempty"`
	LastCheck     time.Time      `json:"lastCheck"`
	LastError     string         `json:"lastError,omitempty"`
	Progress      Progress       `json:"progress"`
	PendingReload bool           `json:"pendingReload"`
	Critical      bool           `json:"critical"`
}

// Session is the UpdateSessionState of one class. The checking and
// downloading flags are claimed with check-and-set so a second caller
// observes "already in progress" instead of starting work.
type Session struct {
	mu      sync.Mutex
	state   State
	pending []manifest.PendingTransfer
	remote  *manifest.Manifest
	now     func() time.Time
}

// New returns an idle session for class.
func New(class manifest.Class) *Session {
	return &Session{
		state: State{Class: class, Phase: PhaseIdle, LocalVersion: manifest.DefaultVersion},
		now:   time.Now,
	}
}

// SetClock overrides the clock used for LastCheck.
func (s *Session) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// BeginCheck claims the checking flag. It returns false when a check or a
// download is already running.
func (s *Session) BeginCheck() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Checking || s.state.Downloading {
		return false
	}
	s.state.Checking = true
	s.state.Phase = PhaseChecking
	return true
}

// EndCheck releases the checking flag and moves to available when pending is
// non-empty, idle otherwise. A failed check keeps no remote manifest.
func (s *Session) EndCheck(localVersion string, remote *manifest.Manifest, pending []manifest.PendingTransfer, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Checking = false
	s.state.LastCheck = s.now()
	if localVersion != "" {
		s.state.LocalVersion = localVersion
	}

	if err != nil {
		s.state.LastError = err.Error()
		s.remote = nil
		s.pending = nil
		s.state.PendingCount = 0
		s.state.RemoteVersion = ""
		s.state.Critical = false
		s.state.Phase = PhaseIdle
		return
	}

	s.state.LastError = ""
	s.remote = remote
	s.pending = append([]manifest.PendingTransfer(nil), pending...)
	s.state.PendingCount = len(pending)
	s.state.RemoteVersion = ""
	if remote != nil {
		s.state.RemoteVersion = remote.Version
	}
	s.state.Critical = false
	for _, p := range pending {
		if p.Critical {
			s.state.Critical = true
			break
		}
	}

	if len(pending) > 0 {
		s.state.Phase = PhaseAvailable
	} else {
		s.state.Phase = PhaseIdle
	}
}

// BeginDownload claims the downloading flag and hands out the pending set
// and remote manifest of the last check.
func (s *Session) BeginDownload() ([]manifest.PendingTransfer, *manifest.Manifest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Checking || s.state.Downloading {
		return nil, nil, false
	}
	s.state.Downloading = true
	s.state.Phase = PhaseDownloading
	s.state.Progress = Progress{}
	return append([]manifest.PendingTransfer(nil), s.pending...), s.remote, true
}

// UpdateProgress records the latest batch progress.
func (s *Session) UpdateProgress(p Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Progress = p
}

// EndDownload releases the downloading flag. Failed transfers stay pending
// until the next check recomputes the set.
func (s *Session) EndDownload(localVersion string, failed []manifest.PendingTransfer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Downloading = false
	s.state.Progress.CurrentFile = ""
	if localVersion != "" {
		s.state.LocalVersion = localVersion
	}
	s.pending = append([]manifest.PendingTransfer(nil), failed...)
	s.state.PendingCount = len(failed)
	s.state.Phase = PhaseIdle
}

// MarkPendingReload records that downloaded code waits for a restart.
func (s *Session) MarkPendingReload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.PendingReload = true
}

// SetLocalVersion records the version of the stored local manifest.
func (s *Session) SetLocalVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LocalVersion = v
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending returns a copy of the pending set of the last check.
func (s *Session) Pending() []manifest.PendingTransfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]manifest.PendingTransfer(nil), s.pending...)
}

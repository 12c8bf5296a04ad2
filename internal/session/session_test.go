package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"assetsync/internal/manifest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycle(t *testing.T) {
	s := New(manifest.ClassCode)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })

	assert.Equal(t, PhaseIdle, s.Snapshot().Phase)

	require.True(t, s.BeginCheck())
	assert.Equal(t, PhaseChecking, s.Snapshot().Phase)
	assert.False(t, s.BeginCheck(), "second check must be rejected")
	_, _, ok := s.BeginDownload()
	assert.False(t, ok, "download must wait for the check")

	remote := manifest.New(manifest.ClassCode, "1.0.1")
	pending := []manifest.PendingTransfer{{Identifier: "app.js", Critical: true}}
	s.EndCheck("1.0.0", remote, pending, nil)

	st := s.Snapshot()
	assert.Equal(t, PhaseAvailable, st.Phase)
	assert.Equal(t, 1, st.PendingCount)
	assert.Equal(t, "1.0.1", st.RemoteVersion)
	assert.Equal(t, "1.0.0", st.LocalVersion)
	assert.True(t, st.Critical)
	assert.Equal(t, fixed, st.LastCheck)

	got, gotRemote, ok := s.BeginDownload()
	require.True(t, ok)
	assert.Equal(t, pending, got)
	assert.Same(t, remote, gotRemote)
	assert.Equal(t, PhaseDownloading, s.Snapshot().Phase)
	assert.False(t, s.BeginCheck())
	_, _, ok = s.BeginDownload()
	assert.False(t, ok)

	s.UpdateProgress(Progress{CompletedFiles: 1, TotalFiles: 1, CurrentFile: "app.js"})
	s.EndDownload("1.0.1", nil)

	st = s.Snapshot()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.False(t, st.Downloading)
	assert.Equal(t, 0, st.PendingCount)
	assert.Equal(t, "1.0.1", st.LocalVersion)
	assert.Equal(t, 1, st.Progress.CompletedFiles)
	assert.Empty(t, st.Progress.CurrentFile)
}

func TestFailedCheckReturnsToIdle(t *testing.T) {
	s := New(manifest.ClassContent)
	require.True(t, s.BeginCheck())
	s.EndCheck("", nil, nil, errors.New("offline"))

	st := s.Snapshot()
	assert.Equal(t, PhaseIdle, st.Phase)
	assert.Equal(t, "offline", st.LastError)
	assert.Equal(t, manifest.DefaultVersion, st.LocalVersion)
	assert.Empty(t, s.Pending())
}

func TestFailedTransfersStayPending(t *testing.T) {
	s := New(manifest.ClassContent)
	require.True(t, s.BeginCheck())
	s.EndCheck("", nil, []manifest.PendingTransfer{{Identifier: "a"}, {Identifier: "b"}}, nil)

	_, _, ok := s.BeginDownload()
	require.True(t, ok)
	s.EndDownload("", []manifest.PendingTransfer{{Identifier: "b"}})

	assert.Equal(t, 1, s.Snapshot().PendingCount)
	assert.Equal(t, "b", s.Pending()[0].Identifier)
}

func TestConcurrentBeginCheckAdmitsOne(t *testing.T) {
	s := New(manifest.ClassCode)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.BeginCheck() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, admitted)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New(manifest.ClassCode)
	st := s.Snapshot()
	st.Phase = PhaseDownloading
	assert.Equal(t, PhaseIdle, s.Snapshot().Phase)

	s.MarkPendingReload()
	assert.True(t, s.Snapshot().PendingReload)
}

package menu

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"assetsync/internal/logger"
	"assetsync/internal/manifest"
	"assetsync/internal/session"
	"assetsync/internal/ui"
	"assetsync/internal/updater"

	"github.com/manifoldco/promptui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	states    []session.State
	summaries []updater.Summary
	checks    int
	downloads int
	silent    []bool
}

func (f *fakeController) CheckForUpdates(_ context.Context, silent bool) int {
	f.checks++
	f.silent = append(f.silent, silent)
	total := 0
	for _, st := range f.states {
		total += st.PendingCount
	}
	return total
}

func (f *fakeController) DownloadUpdates(context.Context) []updater.Summary {
	f.downloads++
	return f.summaries
}

func (f *fakeController) State() []session.State {
	return f.states
}

type scriptedPrompter struct {
	selections []int
	confirm    bool
	labels     [][]string
	waits      int
}

func (s *scriptedPrompter) Select(_ string, items []string) (int, error) {
	s.labels = append(s.labels, items)
	if len(s.selections) == 0 {
		return -1, promptui.ErrInterrupt
	}
	next := s.selections[0]
	s.selections = s.selections[1:]
	return next, nil
}

func (s *scriptedPrompter) Confirm(string) (bool, error) {
	return s.confirm, nil
}

func (s *scriptedPrompter) Wait(string) {
	s.waits++
}

func newTestMenu(t *testing.T, ctrl Controller, p Prompter, reload func() error) (*Menu, *bytes.Buffer, *logger.MockLogger) {
	t.Helper()
	var buf bytes.Buffer
	log := logger.NewMockLogger()
	m := NewMenu(context.Background(), ctrl, ui.NewConsole(log, &buf),
		WithPrompter(p),
		WithPrinter(ui.NewPrinterTo(&buf, false)),
		WithReloader(reload),
		WithVersion("test"),
	)
	m.clear = false
	return m, &buf, log
}

func TestFormatMenuItemsSkipsDisabled(t *testing.T) {
	options := []MenuOption{
		{Label: "1. Check", Color: "green", Enabled: true},
		{Label: "2. Download", Color: "yellow", Enabled: false},
		{Label: "10. Status", Color: "cyan", Enabled: true},
	}

	items, indexes := formatMenuItems(options)
	require.Len(t, items, 2)
	assert.Equal(t, []int{0, 2}, indexes)
	assert.True(t, strings.HasSuffix(items[0], " 1. Check"))
	assert.True(t, strings.HasSuffix(items[1], "10. Status"))
	assert.True(t, strings.HasPrefix(items[0], "🟢"))
}

func TestMenuOptionsFollowState(t *testing.T) {
	ctrl := &fakeController{states: []session.State{{Class: manifest.ClassContent}}}
	m, _, _ := newTestMenu(t, ctrl, &scriptedPrompter{}, nil)

	options := m.buildMenuOptions()
	assert.True(t, options[0].Enabled)
	assert.False(t, options[1].Enabled)
	assert.False(t, options[3].Enabled)

	ctrl.states = []session.State{
		{Class: manifest.ClassContent, PendingCount: 2},
		{Class: manifest.ClassCode, PendingReload: true},
	}
	options = m.buildMenuOptions()
	assert.True(t, options[1].Enabled)
	assert.Contains(t, options[1].Label, "2 pending")
	assert.True(t, options[3].Enabled)
}

func TestMenuCheckRunsLoudCheck(t *testing.T) {
	ctrl := &fakeController{states: []session.State{{Class: manifest.ClassContent, PendingCount: 3}}}
	prompter := &scriptedPrompter{selections: []int{0}}
	m, _, log := newTestMenu(t, ctrl, prompter, nil)

	require.NoError(t, m.ShowMainMenu())
	assert.Equal(t, 1, ctrl.checks)
	assert.Equal(t, []bool{false}, ctrl.silent)
	assert.True(t, log.HasEntry(logger.LevelInfo, "3 update(s) available"))
	assert.True(t, log.HasEntry(logger.LevelInfo, "User cancelled operation"))
}

func TestMenuDownloadOffersReload(t *testing.T) {
	ctrl := &fakeController{
		states: []session.State{{Class: manifest.ClassCode, PendingCount: 1}},
		summaries: []updater.Summary{{
			Class:          manifest.ClassCode,
			Succeeded:      []string{"app.js"},
			RequiresReload: true,
		}},
	}
	prompter := &scriptedPrompter{selections: []int{1}, confirm: true}
	reloaded := 0
	m, buf, _ := newTestMenu(t, ctrl, prompter, func() error {
		reloaded++
		return nil
	})

	require.NoError(t, m.ShowMainMenu())
	assert.Equal(t, 1, ctrl.downloads)
	assert.Equal(t, 1, reloaded)
	assert.Contains(t, buf.String(), "code: 1 downloaded, 0 failed")
}

func TestMenuStopsWhenRestartFails(t *testing.T) {
	ctrl := &fakeController{
		states: []session.State{{Class: manifest.ClassCode, PendingCount: 1, PendingReload: true}},
	}
	// Restart is the fourth option; a second selection must never be read.
	prompter := &scriptedPrompter{selections: []int{3, 0}}
	m, _, _ := newTestMenu(t, ctrl, prompter, func() error {
		return errors.New("exec format error")
	})

	err := m.ShowMainMenu()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRestartFailed))
	assert.Contains(t, err.Error(), "exec format error")
	assert.Equal(t, 0, ctrl.checks)
	assert.Len(t, prompter.selections, 1)
}

func TestMenuDownloadFailureIsReported(t *testing.T) {
	ctrl := &fakeController{
		states: []session.State{{Class: manifest.ClassContent, PendingCount: 2}},
		summaries: []updater.Summary{{
			Class:     manifest.ClassContent,
			Succeeded: []string{"documents/a"},
			Failed:    []string{"documents/b"},
		}},
	}
	prompter := &scriptedPrompter{selections: []int{1}}
	m, _, log := newTestMenu(t, ctrl, prompter, nil)

	require.NoError(t, m.ShowMainMenu())
	assert.True(t, log.HasEntry(logger.LevelError, "1 file(s) failed to download"))
	assert.Equal(t, 2, prompter.waits)
}

func TestMenuStatusPrintsEveryClass(t *testing.T) {
	ctrl := &fakeController{states: []session.State{
		{Class: manifest.ClassContent, LocalVersion: "1.0.0"},
		{Class: manifest.ClassCode, LocalVersion: "2.0.0", LastError: "boom"},
	}}
	prompter := &scriptedPrompter{selections: []int{1}}
	m, buf, _ := newTestMenu(t, ctrl, prompter, nil)

	require.NoError(t, m.ShowMainMenu())
	out := buf.String()
	assert.Contains(t, out, "Content assets")
	assert.Contains(t, out, "Code assets")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "last check failed")
}

func TestMenuStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	prompter := &scriptedPrompter{selections: []int{0}}
	m := NewMenu(ctx, &fakeController{}, nil, WithPrompter(prompter))

	require.NoError(t, m.ShowMainMenu())
	assert.Empty(t, prompter.labels)
}

func TestFormatMenuItemsAlignsDescriptions(t *testing.T) {
	items, _ := formatMenuItems([]MenuOption{
		{Label: "1. Check", Description: "fetch manifests", Color: "green", Enabled: true},
		{Label: "2. Show status", Description: "print state", Color: "cyan", Enabled: true},
	})
	require.Len(t, items, 2)
	assert.True(t, strings.HasSuffix(items[0], "Check        fetch manifests"))
	assert.True(t, strings.HasSuffix(items[1], "Show status  print state"))
}

package menu

import (
	"github.com/pkg/errors"
)

func (m *Menu) handleCheck() error {
	m.startProgress("Checking for updates")
	count := m.ctrl.CheckForUpdates(m.ctx, false)
	m.stopProgress("Checking for updates")

	for _, st := range m.ctrl.State() {
		if st.LastError != "" {
			m.logger.Warn("%s check failed: %s", st.Class, st.LastError)
		}
	}

	if count == 0 {
		m.logger.Info("Everything is up to date")
	} else {
		m.logger.Info("%d update(s) available", count)
	}
	m.prompter.Wait("\nPress Enter to continue...")
	return nil
}

func (m *Menu) handleDownload() error {
	summaries := m.ctrl.DownloadUpdates(m.ctx)

	failed, reload := 0, false
	for _, s := range summaries {
		if s.Skipped {
			m.logger.Warn("%s: another operation is already running", s.Class)
			continue
		}
		m.printer.PrintSummary(string(s.Class), s.Succeeded, s.Failed, s.RequiresReload)
		failed += len(s.Failed)
		reload = reload || s.RequiresReload
	}

	if reload {
		ok, err := m.prompter.Confirm("Restart now to run the downloaded code")
		if err == nil && ok {
			return m.handleReload()
		}
	}

	m.prompter.Wait("\nPress Enter to continue...")
	if failed > 0 {
		return errors.Errorf("%d file(s) failed to download, they stay pending", failed)
	}
	return nil
}

func (m *Menu) handleStatus() error {
	for _, st := range m.ctrl.State() {
		m.printer.PrintState(st)
	}
	m.prompter.Wait("\nPress Enter to continue...")
	return nil
}

// ErrRestartFailed ends the menu: the reloader may already have released
// resources the remaining options need.
var ErrRestartFailed = errors.New("restart failed")

func (m *Menu) handleReload() error {
	if m.reload == nil {
		return errors.New("reload handler is not configured")
	}
	m.logger.Info("Restarting to load downloaded code...")
	if err := m.reload(); err != nil {
		return errors.Wrap(ErrRestartFailed, err.Error())
	}
	return nil
}

func (m *Menu) startProgress(op string) {
	if m.console != nil {
		m.console.StartProgress(op)
	}
}

func (m *Menu) stopProgress(op string) {
	if m.console != nil {
		m.console.StopProgress(op)
	}
}

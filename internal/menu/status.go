package menu

import "assetsync/internal/session"

func (m *Menu) displayStatus() {
	states := m.ctrl.State()
	for _, st := range states {
		m.writeLine("%s %-8s %s", statusPrefix(stateColor(st)), st.Class, stateLabel(st))
	}
	if len(states) > 0 {
		m.printer.PrintSeparator("-", 64)
	}
}

func stateColor(st session.State) string {
	switch {
	case st.LastError != "":
		return "red"
	case st.PendingReload, st.PendingCount > 0:
		return "yellow"
	case st.Checking, st.Downloading:
		return "cyan"
	default:
		return "green"
	}
}

func stateLabel(st session.State) string {
	switch {
	case st.Downloading:
		return "downloading"
	case st.Checking:
		return "checking"
	case st.PendingCount > 0:
		label := "updates available"
		if st.Critical {
			label += " (critical)"
		}
		return label
	case st.PendingReload:
		return "restart required"
	case st.LastError != "":
		return "last check failed"
	default:
		return "up to date (" + st.LocalVersion + ")"
	}
}

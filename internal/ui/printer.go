package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"assetsync/internal/session"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// Printer renders rich terminal UI fragments used by the CLI.
type Printer struct {
	out     io.Writer
	success *color.Color
	info    *color.Color
	warn    *color.Color
	error   *color.Color
	now     func() time.Time
}

// NewPrinter constructs a Printer writing to stdout with colour enabled for TTYs.
func NewPrinter() *Printer {
	return NewPrinterTo(os.Stdout, supportsColor(os.Stdout) && os.Getenv("NO_COLOR") == "")
}

// NewPrinterTo constructs a Printer writing to w.
func NewPrinterTo(w io.Writer, colorEnabled bool) *Printer {
	p := &Printer{
		out:     w,
		success: color.New(color.FgGreen, color.Bold),
		info:    color.New(color.FgBlue, color.Bold),
		warn:    color.New(color.FgYellow, color.Bold),
		error:   color.New(color.FgRed, color.Bold),
		now:     time.Now,
	}

	if colorEnabled {
		for _, c := range []*color.Color{p.success, p.info, p.warn, p.error} {
			c.EnableColor()
		}
	} else {
		for _, c := range []*color.Color{p.success, p.info, p.warn, p.error} {
			c.DisableColor()
		}
	}

	return p
}

// PrintBanner renders the application banner.
func (p *Printer) PrintBanner(version string) {
	lines := []string{
		"=========================================================",
		"   ____ _____ ________  ______  ___________  ________",
		"  / __ `/ ___/ ___/ _ \\/ __/ / / / __ \\/ ___/",
		" / /_/ (__  |__  )  __/ /_/ /_/ / / / / /__  ",
		" \\__,_/____/____/\\___/\\__/\\__, /_/ /_/\\___/  ",
		"                         /____/               ",
		"",
		"Incremental content and code updates  " + version,
		"=========================================================",
	}

	for _, line := range lines {
		p.success.Fprintln(p.out, line)
	}
}

// PrintSeparator prints a repeated character separator.
func (p *Printer) PrintSeparator(char string, length int) {
	if length <= 0 {
		return
	}
	fmt.Fprintln(p.out, strings.Repeat(char, length))
}

// PrintState renders the status block of one class.
func (p *Printer) PrintState(st session.State) {
	p.PrintSeparator("-", 50)
	p.success.Fprintf(p.out, "%s assets\n", titleCase(string(st.Class)))
	fmt.Fprintln(p.out)

	p.row("Phase:", p.phase(st.Phase))
	p.row("Version:", p.versionText(st))
	p.row("Pending:", p.pendingText(st))
	p.row("Checked:", p.lastCheckText(st.LastCheck))

	if st.Progress.TotalFiles > 0 {
		p.row("Progress:", FormatProgress(st.Progress))
	}
	if st.PendingReload {
		p.row("Reload:", p.warn.Sprint("restart required to run downloaded code"))
	}
	if st.LastError != "" {
		p.row("Error:", p.error.Sprint(st.LastError))
	}
	p.PrintSeparator("-", 50)
}

// PrintSummary renders the outcome of a download batch.
func (p *Printer) PrintSummary(class string, succeeded, failed []string, requiresReload bool) {
	mark := p.success.Sprint("✓")
	if len(failed) > 0 {
		mark = p.warn.Sprint("!")
	}
	fmt.Fprintf(p.out, "[ %s ] %s: %d downloaded, %d failed\n", mark, class, len(succeeded), len(failed))
	for _, id := range failed {
		fmt.Fprintf(p.out, "      %s %s\n", p.error.Sprint("✕"), id)
	}
	if requiresReload {
		fmt.Fprintf(p.out, "      %s\n", p.warn.Sprint("restart to run the downloaded code"))
	}
}

func (p *Printer) row(label, value string) {
	fmt.Fprintf(p.out, "%s %s\n", p.info.Sprintf("%-10s", label), value)
}

func (p *Printer) phase(ph session.Phase) string {
	switch ph {
	case session.PhaseAvailable:
		return p.warn.Sprint(string(ph))
	case session.PhaseChecking, session.PhaseDownloading:
		return p.info.Sprint(string(ph))
	default:
		return p.success.Sprint(string(ph))
	}
}

func (p *Printer) versionText(st session.State) string {
	if st.RemoteVersion == "" || st.RemoteVersion == st.LocalVersion {
		return st.LocalVersion
	}
	return fmt.Sprintf("%s -> %s", st.LocalVersion, p.warn.Sprint(st.RemoteVersion))
}

func (p *Printer) pendingText(st session.State) string {
	if st.PendingCount == 0 {
		return "none"
	}
	text := fmt.Sprintf("%d file(s)", st.PendingCount)
	if st.Critical {
		text += " " + p.error.Sprint("(critical)")
	}
	return text
}

func (p *Printer) lastCheckText(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, p.now(), "ago", "from now")
}

// FormatProgress renders file and byte counters, e.g. "2/3 files, 1.2 MB / 4.0 MB".
func FormatProgress(pr session.Progress) string {
	text := fmt.Sprintf("%d/%d files", pr.CompletedFiles, pr.TotalFiles)
	if pr.TotalBytes > 0 {
		text += fmt.Sprintf(", %s / %s", humanize.Bytes(uint64(pr.DownloadedBytes)), humanize.Bytes(uint64(pr.TotalBytes)))
	}
	return text
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func supportsColor(w *os.File) bool {
	return term.IsTerminal(int(w.Fd()))
}

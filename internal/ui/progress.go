package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"assetsync/internal/session"

	"github.com/dustin/go-humanize"
)

const barWidth = 30

// ProgressBar renders transfer progress to a writer. It implements the host
// transport's ProgressReporter for single payloads and accepts batch
// progress through OnBatch.
type ProgressBar struct {
	mu         sync.Mutex
	writer     io.Writer
	lastUpdate time.Time
	interval   time.Duration
}

// NewProgressBar constructs a ProgressBar writing to w (stdout when nil).
func NewProgressBar(w io.Writer) *ProgressBar {
	if w == nil {
		w = os.Stdout
	}
	return &ProgressBar{writer: w, interval: 200 * time.Millisecond}
}

func (b *ProgressBar) OnStart(name string, totalSize int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastUpdate = time.Now()
	if totalSize > 0 {
		fmt.Fprintf(b.writer, "  %s: starting download (%s)\n", shortName(name), humanize.Bytes(uint64(totalSize)))
	}
}

func (b *ProgressBar) OnProgress(name string, current, total int64, speed float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if now.Sub(b.lastUpdate) < b.interval {
		return
	}
	b.lastUpdate = now

	if total > 0 {
		percentage := float64(current) / float64(total) * 100
		fmt.Fprintf(b.writer, "\r  %s: [%s] %.1f%% (%s/%s) %s/s",
			shortName(name),
			bar(percentage),
			percentage,
			humanize.Bytes(uint64(current)),
			humanize.Bytes(uint64(total)),
			humanize.Bytes(uint64(speed)),
		)
		return
	}
	fmt.Fprintf(b.writer, "\r  %s: %s downloaded", shortName(name), humanize.Bytes(uint64(current)))
}

func (b *ProgressBar) OnComplete(name string, totalSize int64, elapsed time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	speed := 0.0
	if elapsed.Seconds() > 0 {
		speed = float64(totalSize) / elapsed.Seconds()
	}
	fmt.Fprintf(b.writer, "\r  %s: [%s] 100.0%% (%s) %s/s\n",
		shortName(name),
		strings.Repeat("=", barWidth),
		humanize.Bytes(uint64(totalSize)),
		humanize.Bytes(uint64(speed)),
	)
}

// OnBatch renders the batch counters after every item.
func (b *ProgressBar) OnBatch(p session.Progress) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p.TotalFiles == 0 {
		return
	}
	percentage := float64(p.CompletedFiles) / float64(p.TotalFiles) * 100
	line := fmt.Sprintf("  [%s] %s", bar(percentage), FormatProgress(p))
	if p.CurrentFile != "" {
		line += "  " + p.CurrentFile
	}
	fmt.Fprintln(b.writer, line)
}

func bar(percentage float64) string {
	filled := int(float64(barWidth) * percentage / 100)
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	out := strings.Repeat("=", filled)
	if filled < barWidth {
		out += ">"
		out += strings.Repeat(" ", barWidth-filled-1)
	}
	return out
}

// shortName trims query strings and leading path from a URL for display.
func shortName(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "/"); i >= 0 && i < len(name)-1 {
		name = name[i+1:]
	}
	return name
}

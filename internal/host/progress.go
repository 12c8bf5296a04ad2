package host

import (
	"io"
	"time"
)

// ProgressReporter receives transfer progress for a single URL.
type ProgressReporter interface {
	OnStart(name string, totalSize int64)
	OnProgress(name string, current, total int64, speed float64)
	OnComplete(name string, totalSize int64, elapsed time.Duration)
}

// NoopProgressReporter discards all progress events.
type NoopProgressReporter struct{}

func (NoopProgressReporter) OnStart(string, int64)                    {}
func (NoopProgressReporter) OnProgress(string, int64, int64, float64) {}
func (NoopProgressReporter) OnComplete(string, int64, time.Duration)  {}

// ProgressReader wraps a reader to emit progress updates.
type ProgressReader struct {
	reader    io.Reader
	total     int64
	current   int64
	reporter  ProgressReporter
	name      string
	startTime time.Time
}

// NewProgressReader constructs a progress tracking reader and fires OnStart.
func NewProgressReader(reader io.Reader, total int64, reporter ProgressReporter, name string) *ProgressReader {
	if reporter == nil {
		reporter = NoopProgressReporter{}
	}

	pr := &ProgressReader{
		reader:    reader,
		total:     total,
		reporter:  reporter,
		name:      name,
		startTime: time.Now(),
	}
	reporter.OnStart(name, total)
	return pr
}

// Read implements io.Reader and relays progress.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.current += int64(n)
		elapsed := time.Since(pr.startTime).Seconds()
		if elapsed <= 0 {
			elapsed = 0.001
		}
		speed := float64(pr.current) / elapsed
		pr.reporter.OnProgress(pr.name, pr.current, pr.total, speed)
	}
	return n, err
}

// Current returns the number of bytes read so far.
func (pr *ProgressReader) Current() int64 {
	return pr.current
}

// Finish notifies the reporter that the transfer has completed. Unknown
// totals are replaced by the byte count actually read.
func (pr *ProgressReader) Finish() {
	total := pr.total
	if total <= 0 {
		total = pr.current
	}
	pr.reporter.OnComplete(pr.name, total, time.Since(pr.startTime))
}

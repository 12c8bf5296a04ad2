package logger

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Progress describes progress indicators that can be started and stopped.
type Progress interface {
	Start(operation string)
	Stop(operation string)
}

// SpinnerProgress renders a spinner while an operation of unknown length runs.
type SpinnerProgress struct {
	mu      sync.Mutex
	output  io.Writer
	frames  []string
	index   int
	stopCh  chan struct{}
	running bool
}

// NewSpinnerProgress creates a progress spinner writing to the provided output.
func NewSpinnerProgress(output io.Writer) *SpinnerProgress {
	if output == nil {
		output = io.Discard
	}

	return &SpinnerProgress{
		output: output,
		frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	}
}

// Start begins rendering the spinner. A second Start before Stop is ignored.
func (p *SpinnerProgress) Start(message string) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	stopCh := make(chan struct{})
	p.stopCh = stopCh
	p.mu.Unlock()

	go func() {
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				p.mu.Lock()
				if p.stopCh != stopCh || !p.running {
					p.mu.Unlock()
					return
				}
				frame := p.frames[p.index%len(p.frames)]
				p.index++
				fmt.Fprintf(p.output, "\r%s %s", frame, message)
				p.mu.Unlock()
			}
		}
	}()
}

// Stop terminates the spinner and prints the final message.
func (p *SpinnerProgress) Stop(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	close(p.stopCh)
	p.running = false

	fmt.Fprintf(p.output, "\r✓ %s\n", message)
}

package menu

import (
	"context"
	"errors"
	"fmt"
	"io"

	"assetsync/internal/logger"
	"assetsync/internal/ui"

	"github.com/manifoldco/promptui"
)

// Menu coordinates the interactive update workflow.
type Menu struct {
	ctx      context.Context
	ctrl     Controller
	console  *ui.Console
	logger   logger.Logger
	printer  *ui.Printer
	prompter Prompter
	reload   func() error
	version  string
	clear    bool
}

// Option customises a Menu.
type Option func(*Menu)

// WithPrompter replaces the promptui based prompter.
func WithPrompter(p Prompter) Option {
	return func(m *Menu) {
		m.prompter = p
	}
}

// WithPrinter replaces the stdout printer.
func WithPrinter(p *ui.Printer) Option {
	return func(m *Menu) {
		m.printer = p
	}
}

// WithReloader replaces the self re-exec used to pick up downloaded code.
func WithReloader(fn func() error) Option {
	return func(m *Menu) {
		m.reload = fn
	}
}

// WithVersion sets the version shown in the banner.
func WithVersion(v string) Option {
	return func(m *Menu) {
		m.version = v
	}
}

// NewMenu creates a new menu manager instance.
func NewMenu(ctx context.Context, ctrl Controller, console *ui.Console, opts ...Option) *Menu {
	var log logger.Logger = logger.NewStandardLogger()
	if console != nil && console.Logger() != nil {
		log = console.Logger()
	}

	m := &Menu{
		ctx:      ctx,
		ctrl:     ctrl,
		console:  console,
		logger:   log,
		printer:  ui.NewPrinter(),
		prompter: promptuiPrompter{},
		reload:   ExecSelf,
		clear:    true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ShowMainMenu displays the interactive menu until the user quits.
func (m *Menu) ShowMainMenu() error {
	for {
		if m.ctx.Err() != nil {
			return nil
		}
		m.clearScreen()
		m.printer.PrintBanner(m.version)
		m.displayStatus()

		options := m.buildMenuOptions()
		items, indexes := formatMenuItems(options)

		selected, err := m.prompter.Select("Please select an operation", items)
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, io.EOF) {
				m.logger.Info("User cancelled operation")
				return nil
			}
			return fmt.Errorf("failed to process user input: %w", err)
		}
		if selected < 0 || selected >= len(indexes) {
			return errors.New("invalid selection")
		}

		if err := options[indexes[selected]].Handler(); err != nil {
			if errors.Is(err, ErrRestartFailed) {
				return err
			}
			m.logger.Error("Operation failed: %v", err)
			m.prompter.Wait("\nPress Enter to continue...")
		}
	}
}

func (m *Menu) buildMenuOptions() []MenuOption {
	pending, reload := 0, false
	for _, st := range m.ctrl.State() {
		pending += st.PendingCount
		reload = reload || st.PendingReload
	}

	downloadColor := "cyan"
	if pending > 0 {
		downloadColor = "yellow"
	}

	return []MenuOption{
		{
			Label:       "1. Check for updates",
			Description: "Fetch remote manifests and list changed files",
			Handler:     m.handleCheck,
			Color:       "green",
			Enabled:     true,
		},
		{
			Label:       fmt.Sprintf("2. Download updates (%d pending)", pending),
			Description: "Download and apply every pending file",
			Handler:     m.handleDownload,
			Color:       downloadColor,
			Enabled:     pending > 0,
		},
		{
			Label:       "3. Show status",
			Description: "Print per class update state",
			Handler:     m.handleStatus,
			Color:       "cyan",
			Enabled:     true,
		},
		{
			Label:       "4. Restart to run downloaded code",
			Description: "Re-executes the binary so new script files take effect",
			Handler:     m.handleReload,
			Color:       "red",
			Enabled:     reload,
		},
	}
}

func (m *Menu) clearScreen() {
	if m.clear {
		m.writeLine("\033[H\033[2J")
	}
}

func (m *Menu) writeLine(format string, args ...interface{}) {
	if m.console != nil {
		m.console.WriteLine(format, args...)
		return
	}
	m.logger.Info(format, args...)
}

// Package ui renders terminal output for the assetsync CLI.
package ui

import (
	"fmt"
	"io"
	"os"

	"assetsync/internal/logger"
	"assetsync/internal/updater"
)

// Console routes update notices, spinner progress and plain text to one
// output. Notices go through the logger so they honour its level and format.
type Console struct {
	logger   logger.Logger
	progress logger.Progress
	output   io.Writer
}

// NewConsole builds a Console bound to the provided logger. A nil output
// writes to stdout.
func NewConsole(log logger.Logger, output io.Writer) *Console {
	if output == nil {
		output = os.Stdout
	}
	if log == nil {
		log = logger.NewStandardLogger(logger.WithOutput(output))
	}
	return &Console{
		logger:   log,
		output:   output,
		progress: logger.NewSpinnerProgress(output),
	}
}

func (c *Console) Logger() logger.Logger {
	return c.logger
}

func (c *Console) Output() io.Writer {
	return c.output
}

// Success logs a success message with a consistent prefix.
func (c *Console) Success(format string, args ...interface{}) {
	c.logger.Info("✓ "+format, args...)
}

// Notice surfaces an update notice. It satisfies updater.Notifier.
func (c *Console) Notice(n updater.Notice) {
	switch n.Kind {
	case updater.NoticeAvailable:
		if n.Critical {
			c.logger.Warn("%s: %d critical update(s) available", n.Class, n.Count)
			return
		}
		c.logger.Info("%s: %d update(s) available", n.Class, n.Count)
	case updater.NoticeUpToDate:
		c.Success("%s is up to date", n.Class)
	case updater.NoticeFailed:
		c.logger.Error("%s: update check failed: %v", n.Class, n.Err)
	case updater.NoticeDownloaded:
		msg := "%s: downloaded %d file(s)"
		args := []interface{}{n.Class, n.Count}
		if n.Failed > 0 {
			msg += ", %d failed"
			args = append(args, n.Failed)
		}
		if n.RequiresReload {
			msg += ", restart to run the new code"
		}
		if n.Failed > 0 {
			c.logger.Warn(msg, args...)
			return
		}
		c.Success(msg, args...)
	}
}

func (c *Console) StartProgress(operation string) {
	c.progress.Start(operation)
}

func (c *Console) StopProgress(operation string) {
	c.progress.Stop(operation)
}

// WriteLine outputs formatted text without involving the logger.
func (c *Console) WriteLine(format string, args ...interface{}) {
	fmt.Fprintf(c.output, format+"\n", args...)
}

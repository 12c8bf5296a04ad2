package app

import (
	"io"
	"os"
	"strings"
	"time"

	"assetsync/internal/config"
	"assetsync/internal/logger"
)

// NewLogger builds the process logger described by cfg. Format is one of
// color (default), text or json.
func NewLogger(cfg config.LogConfig, w io.Writer) logger.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := []logger.Option{
		logger.WithLevel(logger.ParseLevel(cfg.Level)),
		logger.WithOutput(w),
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		opts = append(opts, logger.WithFormatter(&logger.JSONFormatter{TimestampFormat: time.RFC3339}))
		return logger.NewStandardLogger(opts...)
	case "text":
		opts = append(opts, logger.WithFormatter(&logger.TextFormatter{TimestampFormat: time.RFC3339, DisableColors: true}))
		return logger.NewStandardLogger(opts...)
	default:
		return logger.NewColoredLogger(opts...)
	}
}

package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"
)

// StandardLogger writes formatted entries to a single writer.
type StandardLogger struct {
	mu           *sync.Mutex
	level        Level
	output       io.Writer
	formatter    Formatter
	fields       []Field
	reportCaller bool
}

// Option configures a StandardLogger during construction.
type Option func(*StandardLogger)

// NewStandardLogger constructs a StandardLogger configured by the provided options.
func NewStandardLogger(options ...Option) *StandardLogger {
	log := &StandardLogger{
		mu:        &sync.Mutex{},
		level:     LevelInfo,
		output:    os.Stdout,
		formatter: &TextFormatter{TimestampFormat: time.RFC3339},
	}

	for _, opt := range options {
		if opt != nil {
			opt(log)
		}
	}

	if log.output == nil {
		log.output = os.Stdout
	}
	if log.formatter == nil {
		log.formatter = &TextFormatter{TimestampFormat: time.RFC3339}
	}
	if tf, ok := log.formatter.(*TextFormatter); ok && tf.Output == nil {
		tf.Output = log.output
	}

	return log
}

// WithLevel sets the minimum Level that will be emitted by the logger.
func WithLevel(level Level) Option {
	return func(l *StandardLogger) {
		l.level = level
	}
}

// WithOutput redirects log output to the provided writer.
func WithOutput(w io.Writer) Option {
	return func(l *StandardLogger) {
		l.output = w
	}
}

// WithFormatter overrides the formatter used to render log entries.
func WithFormatter(formatter Formatter) Option {
	return func(l *StandardLogger) {
		l.formatter = formatter
	}
}

// WithFields registers default fields for all subsequent log entries.
func WithFields(fields ...Field) Option {
	return func(l *StandardLogger) {
		l.fields = append(l.fields, fields...)
	}
}

// WithCaller enables caller reporting for each log entry.
func WithCaller() Option {
	return func(l *StandardLogger) {
		l.reportCaller = true
	}
}

func (l *StandardLogger) Debug(format string, args ...interface{}) {
	l.log(context.Background(), LevelDebug, fmt.Sprintf(format, args...), nil)
}

func (l *StandardLogger) Info(format string, args ...interface{}) {
	l.log(context.Background(), LevelInfo, fmt.Sprintf(format, args...), nil)
}

func (l *StandardLogger) Warn(format string, args ...interface{}) {
	l.log(context.Background(), LevelWarn, fmt.Sprintf(format, args...), nil)
}

func (l *StandardLogger) Error(format string, args ...interface{}) {
	l.log(context.Background(), LevelError, fmt.Sprintf(format, args...), nil)
}

func (l *StandardLogger) DebugContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelDebug, msg, fields)
}

func (l *StandardLogger) InfoContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelInfo, msg, fields)
}

func (l *StandardLogger) WarnContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelWarn, msg, fields)
}

func (l *StandardLogger) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelError, msg, fields)
}

// With derives a logger sharing output and lock, enriched with the provided fields.
func (l *StandardLogger) With(fields ...Field) Logger {
	l.mu.Lock()
	defer l.mu.Unlock()

	return &StandardLogger{
		mu:           l.mu,
		level:        l.level,
		output:       l.output,
		formatter:    l.formatter,
		reportCaller: l.reportCaller,
		fields:       append(append([]Field{}, l.fields...), fields...),
	}
}

// SetLevel adjusts the minimum log level emitted.
func (l *StandardLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current minimum log level.
func (l *StandardLogger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *StandardLogger) log(ctx context.Context, level Level, msg string, fields []Field) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	all := make([]Field, 0, len(l.fields)+len(fields)+3)
	all = append(all, l.fields...)
	all = append(all, fields...)
	all = append(all, traceFieldsFromContext(ctx)...)

	entry := &Entry{
		Time:    time.Now(),
		Level:   level,
		Message: msg,
		Fields:  all,
	}

	if l.reportCaller {
		entry.Caller = getCaller()
	}

	l.write(entry)
}

func (l *StandardLogger) write(entry *Entry) {
	bytes, err := l.formatter.Format(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to format log entry: %v\n", err)
		return
	}

	if _, err := l.output.Write(bytes); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write log entry: %v\n", err)
	}
}

func getCaller() *Caller {
	// skip: getCaller, log, exported method
	pc, file, line, ok := runtime.Caller(3)
	if !ok {
		return nil
	}

	call := &Caller{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		call.Function = fn.Name()
	}
	return call
}

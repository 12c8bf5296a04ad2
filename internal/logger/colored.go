package logger

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// ColoredLogger renders log messages using colours when the output is a terminal.
type ColoredLogger struct {
	*StandardLogger
}

// NewColoredLogger returns a logger configured for colourful terminal output when possible.
func NewColoredLogger(options ...Option) *ColoredLogger {
	std := NewStandardLogger(options...)

	std.formatter = &ColoredFormatter{
		timestampFormat: "15:04:05",
		enableColors:    isTerminal(std.output) && os.Getenv("NO_COLOR") == "",
	}

	return &ColoredLogger{StandardLogger: std}
}

// ColoredFormatter renders log entries with coloured levels and faint
// fields. Trace fields collapse into a "class/phase#id" tag after the level.
type ColoredFormatter struct {
	timestampFormat string
	enableColors    bool
}

// Format converts the Entry into a coloured textual representation.
func (f *ColoredFormatter) Format(entry *Entry) ([]byte, error) {
	timestamp := entry.Time.Format(f.timestampFormat)

	level := entry.Level.String()
	if f.enableColors {
		if c := levelColors[entry.Level]; c != nil {
			level = c.Sprint(level)
		}
	}

	tag, rest := splitTrace(entry.Fields)
	if tag != "" {
		if f.enableColors {
			tag = color.New(color.FgCyan).Sprint(tag)
		}
		level += "] [" + tag
	}

	faint := color.New(color.Faint)
	fieldText := func(field Field) string {
		text := fmt.Sprintf("%s=%v", field.Key, field.Value)
		if f.enableColors {
			return faint.Sprint(text)
		}
		return text
	}

	trimmed := *entry
	trimmed.Fields = rest
	return formatEntry(&trimmed, timestamp, level, fieldText), nil
}

// splitTrace pulls trace fields out of fields and renders them as a tag.
func splitTrace(fields []Field) (string, []Field) {
	var (
		trace TraceContext
		rest  = make([]Field, 0, len(fields))
	)
	for _, field := range fields {
		value, _ := field.Value.(string)
		switch field.Key {
		case "trace_id":
			trace.TraceID = value
		case "class":
			trace.Class = value
		case "phase":
			trace.Phase = value
		default:
			rest = append(rest, field)
		}
	}
	return trace.Tag(), rest
}

// Tag renders the trace as "class/phase#abcd1234". Empty parts are omitted.
func (t TraceContext) Tag() string {
	var b strings.Builder
	b.WriteString(t.Class)
	if t.Phase != "" {
		if b.Len() > 0 {
			b.WriteString("/")
		}
		b.WriteString(t.Phase)
	}
	if id := t.TraceID; id != "" {
		if len(id) > 8 {
			id = id[:8]
		}
		b.WriteString("#")
		b.WriteString(id)
	}
	return b.String()
}

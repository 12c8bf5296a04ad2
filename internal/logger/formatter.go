package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Formatter converts log entries to their textual or structured representation.
type Formatter interface {
	Format(entry *Entry) ([]byte, error)
}

// Entry represents a single log record.
type Entry struct {
	Time    time.Time
	Level   Level
	Message string
	Fields  []Field
	Caller  *Caller
}

// Caller carries caller information when caller reporting is enabled.
type Caller struct {
	File     string
	Line     int
	Function string
}

var levelColors = map[Level]*color.Color{
	LevelDebug: color.New(color.FgCyan),
	LevelInfo:  color.New(color.FgBlue),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed),
}

// TextFormatter renders log entries as a single "time [LEVEL] msg k=v" line.
type TextFormatter struct {
	TimestampFormat  string
	DisableColors    bool
	DisableTimestamp bool
	FullTimestamp    bool
	ForceColors      bool
	Output           io.Writer
}

// Format converts the Entry into a textual representation.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var timestamp string
	if !f.DisableTimestamp {
		if f.FullTimestamp {
			format := f.TimestampFormat
			if format == "" {
				format = time.RFC3339
			}
			timestamp = entry.Time.Format(format)
		} else {
			timestamp = entry.Time.Format("15:04:05")
		}
	}

	levelText := entry.Level.String()
	if f.shouldColorize() {
		if c := levelColors[entry.Level]; c != nil {
			levelText = c.Sprint(levelText)
		}
	}
	return formatEntry(entry, timestamp, levelText, nil), nil
}

func (f *TextFormatter) shouldColorize() bool {
	if f.ForceColors {
		return true
	}
	if f.DisableColors {
		return false
	}
	writer := f.Output
	if writer == nil {
		writer = os.Stdout
	}
	return isTerminal(writer) && os.Getenv("NO_COLOR") == ""
}

func isTerminal(w io.Writer) bool {
	if file, ok := w.(*os.File); ok {
		return term.IsTerminal(int(file.Fd()))
	}
	return false
}

// JSONFormatter renders log entries as JSON objects, one per line.
type JSONFormatter struct {
	TimestampFormat string
	PrettyPrint     bool
}

// Format converts the Entry into JSON.
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	data := make(map[string]interface{}, len(entry.Fields)+4)

	format := f.TimestampFormat
	if format == "" {
		format = time.RFC3339
	}

	data["time"] = entry.Time.Format(format)
	data["level"] = entry.Level.String()
	data["msg"] = entry.Message

	for _, field := range entry.Fields {
		data[field.Key] = field.Value
	}

	if entry.Caller != nil {
		data["caller"] = fmt.Sprintf("%s:%d", entry.Caller.File, entry.Caller.Line)
	}

	var (
		out []byte
		err error
	)
	if f.PrettyPrint {
		out, err = json.MarshalIndent(data, "", "  ")
	} else {
		out, err = json.Marshal(data)
	}
	if err != nil {
		return nil, err
	}

	return append(out, '\n'), nil
}

type fieldFormatter func(Field) string

func defaultFieldFormatter(field Field) string {
	return fmt.Sprintf("%s=%v", field.Key, field.Value)
}

func formatEntry(entry *Entry, timestamp, levelText string, formatter fieldFormatter) []byte {
	if formatter == nil {
		formatter = defaultFieldFormatter
	}

	var buf bytes.Buffer

	if timestamp != "" {
		buf.WriteString(timestamp)
		buf.WriteString(" ")
	}

	buf.WriteString("[")
	buf.WriteString(levelText)
	buf.WriteString("] ")
	buf.WriteString(entry.Message)

	for _, field := range entry.Fields {
		buf.WriteString(" ")
		buf.WriteString(formatter(field))
	}

	if entry.Caller != nil {
		fmt.Fprintf(&buf, " caller=%s:%d", entry.Caller.File, entry.Caller.Line)
	}

	buf.WriteString("\n")
	return buf.Bytes()
}

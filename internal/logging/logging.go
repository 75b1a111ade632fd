// Package logging provides the leveled, structured logger shared by every
// component of the service.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/apex/log"
	jsonhandler "github.com/apex/log/handlers/json"
	texthandler "github.com/apex/log/handlers/text"
)

// Level is the minimum severity a Logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) apex() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Field attaches structured context to a single log line.
type Field func(log.Fields)

// WithField adds one key/value pair.
func WithField(key string, value interface{}) Field {
	return func(f log.Fields) {
		f[key] = value
	}
}

// WithFields adds every pair in fields.
func WithFields(fields map[string]interface{}) Field {
	return func(f log.Fields) {
		for k, v := range fields {
			f[k] = v
		}
	}
}

// Logger wraps an apex logger with the field-option call style used here.
// A nil *Logger discards everything.
type Logger struct {
	base *log.Logger
}

// New creates a JSON logger writing to stderr.
func New(level Level) *Logger {
	return NewWithWriter(level, "json", os.Stderr)
}

// NewWithWriter creates a logger with an explicit format ("json" or "text") and sink.
func NewWithWriter(level Level, format string, w io.Writer) *Logger {
	var handler log.Handler
	if strings.EqualFold(format, "text") {
		handler = texthandler.New(w)
	} else {
		handler = jsonhandler.New(w)
	}

	return &Logger{
		base: &log.Logger{
			Handler: handler,
			Level:   level.apex(),
		},
	}
}

func (l *Logger) entry(fields []Field) *log.Entry {
	f := log.Fields{}
	for _, apply := range fields {
		if apply != nil {
			apply(f)
		}
	}
	return l.base.WithFields(f)
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, fields ...Field) {
	if l == nil {
		return
	}
	l.entry(fields).Debug(msg)
}

// Info logs at info level.
func (l *Logger) Info(msg string, fields ...Field) {
	if l == nil {
		return
	}
	l.entry(fields).Info(msg)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields ...Field) {
	if l == nil {
		return
	}
	l.entry(fields).Warn(msg)
}

// Error logs at error level.
func (l *Logger) Error(msg string, fields ...Field) {
	if l == nil {
		return
	}
	l.entry(fields).Error(msg)
}

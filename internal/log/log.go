// Package log provides a leveled logging interface.
// The log messages are intended to be user-facing
// similar to the standard library's log package.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Level specifies the level of logging.
type Level = slog.Level

// Supported log levels.
const (
	Debug = slog.LevelDebug
	Info  = slog.LevelInfo
	Error = slog.LevelError
)

// Logger logs messages at different levels.
type Logger struct {
	sl *slog.Logger
	h  *handler
}

// New builds a logger that writes to the given writer.
// The logger defaults to level Info; use WithLevel to change it.
func New(w io.Writer) *Logger {
	h := &handler{W: w, Level: Info}
	return &Logger{sl: slog.New(h), h: h}
}

// WithLevel builds a new logger that logs messages at or above the given
// level. The receiver is unchanged.
func (l *Logger) WithLevel(lvl Level) *Logger {
	h := l.h.withLevel(lvl)
	return &Logger{sl: slog.New(h), h: h}
}

// WithName builds a new logger with the provided name. The returned logger is
// safe to use concurrently with this logger.
func (l *Logger) WithName(name string) *Logger {
	h := l.h.WithGroup(name).(*handler)
	return &Logger{sl: slog.New(h), h: h}
}

// Log logs a printf-style message at the given level.
func (l *Logger) Log(lvl Level, format string, args ...interface{}) {
	if !l.h.Enabled(context.Background(), lvl) {
		return
	}
	l.sl.Log(context.Background(), lvl, fmt.Sprintf(format, args...))
}

// Debugf logs a message at the debug level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.Log(Debug, format, args...)
}

// Infof logs a message at the info level.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Log(Info, format, args...)
}

// Errorf logs a message at the error level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Log(Error, format, args...)
}

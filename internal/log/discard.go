package log

import (
	"context"
	"log/slog"
)

// Discard is a logger that discards all its operations.
var Discard = newDiscard()

func newDiscard() *Logger {
	// The real handler would write to a nil writer; give the Logger a
	// handler whose level no record can reach so Enabled stays false.
	return &Logger{sl: slog.New(&discardHandler{}), h: &handler{Level: slog.Level(1 << 16)}}
}

type discardHandler struct{}

func (*discardHandler) Enabled(context.Context, slog.Level) bool {
	return false
}

func (*discardHandler) Handle(context.Context, slog.Record) error {
	return nil
}

func (h *discardHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *discardHandler) WithGroup(name string) slog.Handler {
	return h
}

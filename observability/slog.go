package observability

import (
	"context"
	"log/slog"
)

// SlogLogger adapts a *slog.Logger to the engine's Logger interface,
// converting typed attributes to slog key-value pairs.
type SlogLogger struct {
	logger *slog.Logger
}

// Compile-time check that SlogLogger implements Logger.
var _ Logger = (*SlogLogger)(nil)

// NewSlogLogger wraps the given slog logger. A nil argument wraps
// slog.Default().
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

// Default returns a Logger backed by the process-wide slog default.
func Default() Logger {
	return NewSlogLogger(nil)
}

func (l *SlogLogger) Debug(msg string, attrs ...Attribute) {
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, msg, toSlogAttrs(attrs)...)
}

func (l *SlogLogger) Info(msg string, attrs ...Attribute) {
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, msg, toSlogAttrs(attrs)...)
}

func (l *SlogLogger) Warn(msg string, attrs ...Attribute) {
	l.logger.LogAttrs(context.Background(), slog.LevelWarn, msg, toSlogAttrs(attrs)...)
}

func (l *SlogLogger) Error(msg string, attrs ...Attribute) {
	l.logger.LogAttrs(context.Background(), slog.LevelError, msg, toSlogAttrs(attrs)...)
}

// toSlogAttrs converts engine attributes to slog attributes.
func toSlogAttrs(attrs []Attribute) []slog.Attr {
	converted := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		converted = append(converted, slog.Any(attr.Key, attr.Value))
	}
	return converted
}

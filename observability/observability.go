package observability

import (
	"time"
)

// Logger provides structured logging capabilities for the execution engine.
// Implementations must be safe for concurrent use: nodes at the same workflow
// level log from separate goroutines.
type Logger interface {
	Debug(msg string, attrs ...Attribute)
	Info(msg string, attrs ...Attribute)
	Warn(msg string, attrs ...Attribute)
	Error(msg string, attrs ...Attribute)
}

// --- ATTRIBUTES (Key-Value pairs) ---

// Attribute represents a key-value pair for structured log metadata.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int creates an integer attribute
func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Float64 creates a float64 attribute
func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value}
}

// Error creates an error attribute
func Error(err error) Attribute {
	if err == nil {
		return Attribute{Key: "error", Value: ""}
	}
	return Attribute{Key: "error", Value: err.Error()}
}

// Common attribute keys used across the engine.
const (
	AttrNodeID   = "node.id"
	AttrNodeName = "node.name"
	AttrDuration = "duration"
	AttrAttempt  = "attempt"
	AttrLoop     = "loop"
)

// --- NOOP ---

// Noop returns a Logger that discards everything. It is the default for
// nodes constructed without an explicit logger in tests.
func Noop() Logger {
	return noopLogger{}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...Attribute) {}
func (noopLogger) Info(string, ...Attribute)  {}
func (noopLogger) Warn(string, ...Attribute)  {}
func (noopLogger) Error(string, ...Attribute) {}

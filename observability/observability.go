// Package observability is the structured logging surface shared by every
// pdfpages component. Library code receives a Logger explicitly and falls
// back to NopLogger; only the command layer builds a real one.
package observability

import "time"

// Logger is the structured logging surface used throughout the module.
// Implementations must be safe for concurrent use.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

type Field interface {
	Key() string
	Value() any
}

type field struct {
	key string
	val any
}

func (f field) Key() string { return f.key }
func (f field) Value() any  { return f.val }

func String(key, value string) Field      { return field{key, value} }
func Int(key string, value int) Field     { return field{key, value} }
func Int64(key string, value int64) Field { return field{key, value} }
func Bool(key string, value bool) Field   { return field{key, value} }

// Duration renders the value with time.Duration.String.
func Duration(key string, value time.Duration) Field { return field{key, value.String()} }

// Error carries err itself; a nil err yields a field with a nil value.
func Error(key string, err error) Field {
	if err == nil {
		return field{key, nil}
	}
	return field{key, err}
}

type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (NopLogger) With(...Field) Logger   { return NopLogger{} }

// OrNop returns l, or a NopLogger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

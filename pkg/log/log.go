// Package log defines the structured logging interface used across
// gnssrelay. The command wiring backs it with zerolog; library code only
// sees the Logger interface, and tests use Nop.
package log

import "time"

// Logger is implemented by all logging backends.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is one key/value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// Str creates a string field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Dur creates a duration field.
func Dur(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Err creates an error field with the key "error".
func Err(err error) Field { return Field{Key: "error", Value: err} }

// Any creates a field holding an arbitrary value.
func Any(key string, value any) Field { return Field{Key: key, Value: value} }

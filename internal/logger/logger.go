// Package logger provides a structured, module-aware logging system built on log/slog.
//
// Components receive a Logger scoped to their module and log with typed
// fields instead of formatted strings:
//
//	log := logger.Global().Module("sources")
//	log.Info("connected",
//	    logger.String("transport", "tcp"),
//	    logger.String("address", addr),
//	    logger.Duration("elapsed", time.Since(start)))
//
// Module loggers nest ("sources" → "sources.tcp") and accumulate fields
// with With. Per-module levels come from LoggingConfig.ModuleLevels.
//
// Tests use a discard logger:
//
//	log := logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, nil)
package logger

import (
	"context"
	"time"
	"unique"
)

// LogLevel represents log severity levels
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

// internKey returns an interned version of the key string so repeated keys
// share one allocation.
func internKey(key string) string {
	return unique.Make(key).Value()
}

var errorKey = internKey("error")

// Logger is the centralized logging interface for dependency injection
type Logger interface {
	// Module returns a logger scoped to a specific module
	Module(name string) Logger

	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger

	// Log with explicit level
	Log(level LogLevel, msg string, fields ...Field)

	// Flush ensures all buffered logs are written
	Flush() error
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: internKey(key), Value: value}
}

// Int creates an integer field for counts, sizes and ports.
func Int(key string, value int) Field {
	return Field{Key: internKey(key), Value: value}
}

// Int64 creates a 64-bit integer field.
func Int64(key string, value int64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Uint64 creates an unsigned 64-bit integer field, used for byte counters.
func Uint64(key string, value uint64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Float32 creates a 32-bit float field.
func Float32(key string, value float32) Field {
	return Field{Key: internKey(key), Value: value}
}

// Float64 creates a 64-bit float field, used for confidences and rates.
//
// Example:
//
//	log.Info("event started",
//	    logger.String("label", ev.Label),
//	    logger.Float64("confidence", ev.Confidence))
func Float64(key string, value float64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Bool creates a boolean field.
func Bool(key string, value bool) Field {
	return Field{Key: internKey(key), Value: value}
}

// Error creates an error field. The key is always "error"; a nil error
// yields a nil value.
func Error(err error) Field {
	if err == nil {
		return Field{Key: errorKey, Value: nil}
	}
	return Field{Key: errorKey, Value: err.Error()}
}

// Duration creates a duration field rendered as a string ("1.5s", "200ms").
func Duration(key string, value time.Duration) Field {
	return Field{Key: internKey(key), Value: value.String()}
}

// Time creates a time field.
func Time(key string, value time.Time) Field {
	return Field{Key: internKey(key), Value: value}
}

// Any creates a field with any JSON-serializable value. Prefer the typed
// constructors for simple values.
func Any(key string, value any) Field {
	return Field{Key: internKey(key), Value: value}
}

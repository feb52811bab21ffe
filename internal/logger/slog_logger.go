package logger

import (
	"io"
	"log/slog"
	"time"
)

// NewSlogLogger creates a JSON Logger writing to w. It is meant for tests and
// tools that want a logger without a CentralLogger; pass io.Discard to silence
// output.
func NewSlogLogger(w io.Writer, level LogLevel, tz *time.Location) Logger {
	l := parseSlogLevel(level)
	return &moduleLogger{
		logger: slog.New(newJSONHandler(w, l, tz)),
		level:  l,
	}
}

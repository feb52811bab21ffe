// Package analysis wires a pipeline session to its consumers and runs it,
// either live against the configured transport or offline over a file.
package analysis

import (
	"github.com/sawring/sawring/internal/logger"
)

// GetLogger returns the analysis package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("analysis")
}

// Package spectrogram computes the rolling log-mel display image and the
// instantaneous magnitude spectrum from normalized samples.
package spectrogram

import (
	"github.com/sawring/sawring/internal/logger"
)

// GetLogger returns the spectrogram package logger scoped to the spectrogram module.
// Fetched dynamically to ensure it uses the current centralized logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("spectrogram")
}

package pipeline

import (
	"sync"

	"github.com/sawring/sawring/internal/logger"
)

var (
	pkgLogger     logger.Logger
	pkgLoggerOnce sync.Once
)

// GetLogger returns the pipeline package logger.
func GetLogger() logger.Logger {
	pkgLoggerOnce.Do(func() {
		pkgLogger = logger.Global().Module("pipeline")
	})
	return pkgLogger
}

package sources

import (
	"sync"

	"github.com/sawring/sawring/internal/logger"
)

var (
	sourcesLogger     logger.Logger
	sourcesLoggerOnce sync.Once
)

// GetLogger returns the sources module logger
func GetLogger() logger.Logger {
	sourcesLoggerOnce.Do(func() {
		sourcesLogger = logger.Global().Module("sources")
	})
	return sourcesLogger
}

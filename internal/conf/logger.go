package conf

import (
	"sync"

	"github.com/sawring/sawring/internal/logger"
)

var (
	confLogger     logger.Logger
	confLoggerOnce sync.Once
)

// GetLogger returns the configuration module logger
func GetLogger() logger.Logger {
	confLoggerOnce.Do(func() {
		confLogger = logger.Global().Module("conf")
	})
	return confLogger
}

package classifier

import (
	"sync"

	"github.com/sawring/sawring/internal/logger"
)

var (
	classifierLogger     logger.Logger
	classifierLoggerOnce sync.Once
)

// GetLogger returns the classifier module logger
func GetLogger() logger.Logger {
	classifierLoggerOnce.Do(func() {
		classifierLogger = logger.Global().Module("classifier")
	})
	return classifierLogger
}

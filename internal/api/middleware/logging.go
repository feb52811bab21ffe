// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sawring/sawring/internal/logger"
)

// NewRequestLogger logs one line per request. Websocket upgrades and
// metrics scrapes are logged at debug level.
func NewRequestLogger(log logger.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if log == nil {
				return nil
			}

			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}

			switch {
			case v.Status >= 500:
				log.Error("request", fields...)
			case c.Path() == "/metrics" || c.Path() == "/ws/display":
				log.Debug("request", fields...)
			default:
				log.Info("request", fields...)
			}
			return nil
		},
	})
}

// NewCORS allows the configured origins to read the API.
func NewCORS(allowedOrigins []string) echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{echo.GET, echo.HEAD, echo.OPTIONS},
	})
}

// Package api serves the session state over HTTP: JSON snapshots under
// /api/v1, a live display stream on /ws/display and Prometheus /metrics.
package api

import (
	"time"

	"github.com/sawring/sawring/internal/conf"
	"github.com/sawring/sawring/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultDisplayRate is the websocket repaint rate in frames per second.
	DefaultDisplayRate = 10
	// MaxDisplayRate caps the rate a client may request.
	MaxDisplayRate = 60
	// DefaultEventLimit is the number of events /api/v1/events returns.
	DefaultEventLimit = 50
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen          string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RecentTTL       time.Duration // how long events stay listed
	SampleRate      int
	MetricsEnabled  bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "127.0.0.1:8090",
		AllowedOrigins:  []string{"*"},
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		RecentTTL:       10 * time.Minute,
		SampleRate:      24000,
		MetricsEnabled:  true,
	}
}

// ConfigFromSettings builds a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	if settings.WebServer.Listen != "" {
		cfg.Listen = settings.WebServer.Listen
	}
	if settings.Events.RecentTTL > 0 {
		cfg.RecentTTL = settings.Events.RecentTTL
	}
	if settings.Frame.SampleRate > 0 {
		cfg.SampleRate = settings.Frame.SampleRate
	}
	cfg.MetricsEnabled = settings.Telemetry.Enabled
	return cfg
}

// Package mqtt publishes gesture events and session status to an MQTT
// broker.
package mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sawring/sawring/internal/conf"
	"github.com/sawring/sawring/internal/logger"
)

// Client defines the interface for MQTT client operations.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	// It returns an error if the connection fails.
	Connect(ctx context.Context) error

	// Publish sends a message to the specified topic on the MQTT broker.
	// It returns an error if the publish operation fails.
	Publish(ctx context.Context, topic string, payload string) error

	// IsConnected returns true if the client is currently connected to the MQTT broker.
	IsConnected() bool

	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker            string
	ClientID          string
	Username          string
	Password          string
	Topic             string // base topic, events go to <Topic>/events
	QoS               byte
	Retain            bool // retain event messages at the broker
	ReconnectCooldown time.Duration
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		QoS:               1,
		ReconnectCooldown: 5 * time.Second,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// ConfigFromSettings fills DefaultConfig from the mqtt settings section.
// An empty client ID gets a random suffix so two receivers can share a broker.
func ConfigFromSettings(s conf.MQTTSettings) Config {
	cfg := DefaultConfig()
	cfg.Broker = s.Broker
	cfg.ClientID = s.ClientID
	if cfg.ClientID == "" {
		cfg.ClientID = "sawring-" + uuid.NewString()[:8]
	}
	cfg.Username = s.Username
	cfg.Password = s.Password
	cfg.Topic = s.Topic
	cfg.QoS = byte(s.QoS)
	cfg.Retain = s.Retain
	return cfg
}

// EventsTopic returns the topic events are published to.
func (c Config) EventsTopic() string {
	return c.Topic + "/events"
}

// StatusTopic returns the retained online/offline topic.
func (c Config) StatusTopic() string {
	return c.Topic + "/status"
}

var (
	pkgLogger     logger.Logger
	pkgLoggerOnce sync.Once
)

// GetLogger returns the mqtt package logger.
func GetLogger() logger.Logger {
	pkgLoggerOnce.Do(func() {
		pkgLogger = logger.Global().Module("mqtt")
	})
	return pkgLogger
}

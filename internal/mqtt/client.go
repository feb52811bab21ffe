package mqtt

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/logger"
	"github.com/sawring/sawring/internal/observability/metrics"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// client implements the Client interface on paho.
type client struct {
	config          Config
	internalClient  mqtt.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	metrics         *metrics.MQTTMetrics
	log             logger.Logger
}

// NewClient creates a new MQTT client. A nil m records into a private
// registry.
func NewClient(cfg Config, m *metrics.MQTTMetrics) (Client, error) {
	if m == nil {
		var err error
		if m, err = metrics.NewMQTTMetrics(prometheus.NewRegistry()); err != nil {
			return nil, err
		}
	}
	return &client{
		config:  cfg,
		metrics: m,
		log:     GetLogger().With(logger.String("broker", cfg.Broker)),
	}, nil
}

func connectError(err error, broker string) error {
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryMQTTConnect).
		Context("broker", broker).
		Build()
}

// Connect resolves the broker host and connects. paho reconnects on its own
// after a later connection loss.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastConnAttempt); since < c.config.ReconnectCooldown {
		return connectError(errors.Newf("connection attempt too recent, last attempt was %v ago", since).Build(), c.config.Broker)
	}
	c.lastConnAttempt = time.Now()

	u, err := url.Parse(c.config.Broker)
	if err != nil {
		return connectError(err, c.config.Broker)
	}
	if u.Hostname() == "" {
		return connectError(errors.NewStd("broker URL has no host"), c.config.Broker)
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return connectError(err, c.config.Broker)
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetWill(c.config.StatusTopic(), statusOffline, c.config.QoS, true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.internalClient = mqtt.NewClient(opts)

	token := c.internalClient.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return connectError(ctx.Err(), c.config.Broker)
	case <-time.After(c.config.ConnectTimeout):
		return connectError(errors.NewStd("connection timeout"), c.config.Broker)
	}
	if err := token.Error(); err != nil {
		c.metrics.IncrementErrors()
		return connectError(err, c.config.Broker)
	}

	c.metrics.UpdateConnectionStatus(true)
	return nil
}

// Publish sends payload to topic and waits for the broker acknowledgement.
func (c *client) Publish(ctx context.Context, topic, payload string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	timer := c.metrics.StartPublishTimer()
	token := c.internalClient.Publish(topic, c.config.QoS, c.config.Retain, payload)

	var err error
	select {
	case <-token.Done():
		err = token.Error()
	case <-ctx.Done():
		err = ctx.Err()
	case <-time.After(c.config.PublishTimeout):
		err = errors.NewStd("publish timeout")
	}
	if err != nil {
		c.metrics.IncrementErrors()
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	timer.ObserveDuration()
	c.metrics.IncrementMessagesDelivered()
	c.metrics.ObserveMessageSize(float64(len(payload)))
	c.log.Debug("published", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect marks the receiver offline and closes the connection. It also
// stops a connect that is still retrying in the background.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.internalClient == nil {
		return
	}
	if c.internalClient.IsConnected() {
		token := c.internalClient.Publish(c.config.StatusTopic(), c.config.QoS, true, statusOffline)
		token.WaitTimeout(c.config.DisconnectTimeout)
	}
	c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
	c.metrics.UpdateConnectionStatus(false)
}

func (c *client) onConnect(cl mqtt.Client) {
	c.log.Info("connected to MQTT broker")
	c.metrics.UpdateConnectionStatus(true)
	// Runs on paho's goroutine; the status is best effort.
	cl.Publish(c.config.StatusTopic(), c.config.QoS, true, statusOnline)
}

func (c *client) onConnectionLost(_ mqtt.Client, err error) {
	c.log.Warn("connection to MQTT broker lost", logger.Error(err))
	c.metrics.UpdateConnectionStatus(false)
	c.metrics.IncrementErrors()
}

func (c *client) onReconnecting(mqtt.Client, *mqtt.ClientOptions) {
	c.metrics.IncrementReconnectAttempts()
	c.log.Debug("reconnecting to MQTT broker")
}

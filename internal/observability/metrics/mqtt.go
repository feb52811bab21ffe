package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics contains all Prometheus metrics related to MQTT publishing.
type MQTTMetrics struct {
	ConnectionStatus  prometheus.Gauge
	MessagesDelivered prometheus.Counter
	Errors            prometheus.Counter
	ReconnectAttempts prometheus.Counter
	LastConnectTime   prometheus.Gauge
	MessageSize       prometheus.Histogram
	PublishLatency    prometheus.Histogram
	registry          *prometheus.Registry
}

// NewMQTTMetrics creates MQTT metrics and registers them with registry.
func NewMQTTMetrics(registry *prometheus.Registry) (*MQTTMetrics, error) {
	m := &MQTTMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

func (m *MQTTMetrics) initMetrics() {
	m.ConnectionStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sawring_mqtt_connection_status",
		Help: "Current MQTT broker connection status (1 connected, 0 disconnected)",
	})
	m.MessagesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sawring_mqtt_messages_delivered_total",
		Help: "Total number of MQTT messages acknowledged by the broker",
	})
	m.Errors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sawring_mqtt_errors_total",
		Help: "Total number of MQTT connect and publish errors",
	})
	m.ReconnectAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sawring_mqtt_reconnect_attempts_total",
		Help: "Total number of MQTT reconnection attempts",
	})
	m.LastConnectTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sawring_mqtt_last_connect_time_seconds",
		Help: "Unix time of the last successful MQTT connection",
	})
	m.MessageSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sawring_mqtt_message_size_bytes",
		Help:    "Size of published MQTT payloads in bytes",
		Buckets: prometheus.ExponentialBuckets(BucketStart64B, BucketFactor2, BucketCount10),
	})
	m.PublishLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sawring_mqtt_publish_latency_seconds",
		Help:    "Time from publish to broker acknowledgement",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
	})
}

// UpdateConnectionStatus records a connection state change.
func (m *MQTTMetrics) UpdateConnectionStatus(connected bool) {
	if connected {
		m.ConnectionStatus.Set(1)
		m.LastConnectTime.SetToCurrentTime()
		return
	}
	m.ConnectionStatus.Set(0)
}

// IncrementMessagesDelivered counts one acknowledged message.
func (m *MQTTMetrics) IncrementMessagesDelivered() {
	m.MessagesDelivered.Inc()
}

// IncrementErrors counts one connect or publish failure.
func (m *MQTTMetrics) IncrementErrors() {
	m.Errors.Inc()
}

// IncrementReconnectAttempts counts one reconnection attempt.
func (m *MQTTMetrics) IncrementReconnectAttempts() {
	m.ReconnectAttempts.Inc()
}

// ObserveMessageSize records a payload size.
func (m *MQTTMetrics) ObserveMessageSize(sizeBytes float64) {
	m.MessageSize.Observe(sizeBytes)
}

// StartPublishTimer starts measuring one publish round trip.
func (m *MQTTMetrics) StartPublishTimer() *PublishTimer {
	return &PublishTimer{startTime: time.Now(), metrics: m}
}

// PublishTimer measures publish latency.
type PublishTimer struct {
	startTime time.Time
	metrics   *MQTTMetrics
}

// ObserveDuration stops the timer and records the elapsed time.
func (pt *PublishTimer) ObserveDuration() {
	pt.metrics.PublishLatency.Observe(time.Since(pt.startTime).Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ConnectionStatus.Describe(ch)
	m.MessagesDelivered.Describe(ch)
	m.Errors.Describe(ch)
	m.ReconnectAttempts.Describe(ch)
	m.LastConnectTime.Describe(ch)
	m.MessageSize.Describe(ch)
	m.PublishLatency.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ConnectionStatus.Collect(ch)
	m.MessagesDelivered.Collect(ch)
	m.Errors.Collect(ch)
	m.ReconnectAttempts.Collect(ch)
	m.LastConnectTime.Collect(ch)
	m.MessageSize.Collect(ch)
	m.PublishLatency.Collect(ch)
}

package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sawring/sawring/internal/logger"
)

// Numeric codes exported by sawring_source_connection_state.
var connectionStateCodes = map[string]float64{
	"disconnected": 0,
	"connecting":   1,
	"connected":    2,
	"lost":         3,
	"failed":       4,
}

// SourceMetrics covers the byte transports and the producer queue.
type SourceMetrics struct {
	ConnectionState *prometheus.GaugeVec   // by source
	BytesReceived   *prometheus.CounterVec // by source
	Reconnects      *prometheus.CounterVec // by source
	QueueDropped    prometheus.Counter
	QueueDepth      prometheus.Gauge
	UDPLossRate     prometheus.Gauge
	registry        *prometheus.Registry
}

// NewSourceMetrics creates transport metrics and registers them with registry.
func NewSourceMetrics(registry *prometheus.Registry) (*SourceMetrics, error) {
	m := &SourceMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register source metrics: %w", err)
	}
	return m, nil
}

func (m *SourceMetrics) initMetrics() {
	m.ConnectionState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sawring_source_connection_state",
		Help: "Connection state by source (0 disconnected, 1 connecting, 2 connected, 3 lost, 4 failed)",
	}, []string{"source"})
	m.BytesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sawring_source_bytes_received_total",
		Help: "Total bytes read from the transport",
	}, []string{"source"})
	m.Reconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sawring_source_connect_attempts_total",
		Help: "Total number of connect attempts by source",
	}, []string{"source"})
	m.QueueDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sawring_queue_dropped_chunks_total",
		Help: "Chunks discarded because the consumer fell behind",
	})
	m.QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sawring_queue_depth",
		Help: "Chunks waiting in the producer queue",
	})
	m.UDPLossRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sawring_udp_loss_ratio",
		Help: "Estimated fraction of expected UDP bytes that did not arrive",
	})
}

// SetConnectionState exports the state of source. Unknown states are logged
// and ignored.
func (m *SourceMetrics) SetConnectionState(source, state string) {
	code, ok := connectionStateCodes[state]
	if !ok {
		log.Warn("unknown connection state", logger.String("source", source), logger.String("state", state))
		return
	}
	m.ConnectionState.WithLabelValues(source).Set(code)
}

// RecordConnectAttempt counts a connect attempt.
func (m *SourceMetrics) RecordConnectAttempt(source string) {
	m.Reconnects.WithLabelValues(source).Inc()
}

// AddBytes counts bytes read from source.
func (m *SourceMetrics) AddBytes(source string, n int) {
	if n > 0 {
		m.BytesReceived.WithLabelValues(source).Add(float64(n))
	}
}

// AddDropped counts dropped queue chunks.
func (m *SourceMetrics) AddDropped(n uint64) {
	if n > 0 {
		m.QueueDropped.Add(float64(n))
	}
}

// SetQueueDepth records the queue length.
func (m *SourceMetrics) SetQueueDepth(n int) {
	m.QueueDepth.Set(float64(n))
}

// SetUDPLossRate records the current UDP loss estimate.
func (m *SourceMetrics) SetUDPLossRate(rate float64) {
	m.UDPLossRate.Set(rate)
}

// Describe implements the prometheus.Collector interface.
func (m *SourceMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.ConnectionState.Describe(ch)
	m.BytesReceived.Describe(ch)
	m.Reconnects.Describe(ch)
	m.QueueDropped.Describe(ch)
	m.QueueDepth.Describe(ch)
	m.UDPLossRate.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *SourceMetrics) Collect(ch chan<- prometheus.Metric) {
	m.ConnectionState.Collect(ch)
	m.BytesReceived.Collect(ch)
	m.Reconnects.Collect(ch)
	m.QueueDropped.Collect(ch)
	m.QueueDepth.Collect(ch)
	m.UDPLossRate.Collect(ch)
}

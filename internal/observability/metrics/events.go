package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EventMetrics covers the state machine and event dispatch.
type EventMetrics struct {
	// EventsTotal is labelled by kind and label.
	EventsTotal *prometheus.CounterVec
	// MachineState is 1 while an event is active.
	MachineState prometheus.Gauge
	BusDropped   prometheus.Counter
	// Deliveries is labelled by consumer and status.
	Deliveries       *prometheus.CounterVec
	DeliveryDuration *prometheus.HistogramVec
	registry         *prometheus.Registry
}

// NewEventMetrics creates event metrics and registers them with registry.
func NewEventMetrics(registry *prometheus.Registry) (*EventMetrics, error) {
	m := &EventMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register event metrics: %w", err)
	}
	return m, nil
}

func (m *EventMetrics) initMetrics() {
	m.EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sawring_events_total",
		Help: "Total number of gesture events emitted by kind and label",
	}, []string{"kind", "label"})
	m.MachineState = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sawring_event_machine_triggered",
		Help: "1 while a gesture event is active, 0 when idle",
	})
	m.BusDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sawring_event_bus_dropped_total",
		Help: "Events discarded because the dispatch buffer was full",
	})
	m.Deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sawring_event_deliveries_total",
		Help: "Event deliveries to consumers by consumer and status",
	}, []string{"consumer", "status"})
	m.DeliveryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sawring_event_delivery_duration_seconds",
		Help:    "Time taken by a consumer to process one event",
		Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12),
	}, []string{"consumer"})
}

// RecordEvent counts an emitted event.
func (m *EventMetrics) RecordEvent(kind, label string) {
	m.EventsTotal.WithLabelValues(kind, label).Inc()
	switch kind {
	case LabelStart:
		m.MachineState.Set(1)
	case LabelEnd:
		m.MachineState.Set(0)
	}
}

// RecordDropped counts an event dropped by the bus.
func (m *EventMetrics) RecordDropped() {
	m.BusDropped.Inc()
}

// RecordDelivery records one consumer call.
func (m *EventMetrics) RecordDelivery(consumer string, d time.Duration, err error) {
	status := LabelSuccess
	if err != nil {
		status = LabelError
	}
	m.Deliveries.WithLabelValues(consumer, status).Inc()
	m.DeliveryDuration.WithLabelValues(consumer).Observe(d.Seconds())
}

// Describe implements the prometheus.Collector interface.
func (m *EventMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.EventsTotal.Describe(ch)
	m.MachineState.Describe(ch)
	m.BusDropped.Describe(ch)
	m.Deliveries.Describe(ch)
	m.DeliveryDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *EventMetrics) Collect(ch chan<- prometheus.Metric) {
	m.EventsTotal.Collect(ch)
	m.MachineState.Collect(ch)
	m.BusDropped.Collect(ch)
	m.Deliveries.Collect(ch)
	m.DeliveryDuration.Collect(ch)
}

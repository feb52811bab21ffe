package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sawring/sawring/internal/logger"
	"github.com/sawring/sawring/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Pipeline *metrics.PipelineMetrics
	Sources  *metrics.SourceMetrics
	Events   *metrics.EventMetrics
	MQTT     *metrics.MQTTMetrics
}

// NewMetrics creates a private registry with every collector registered.
// Each call returns an independent set so tests can run side by side.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	pipelineMetrics, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	sourceMetrics, err := metrics.NewSourceMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create source metrics: %w", err)
	}

	eventMetrics, err := metrics.NewEventMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create event metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Pipeline: pipelineMetrics,
		Sources:  sourceMetrics,
		Events:   eventMetrics,
		MQTT:     mqttMetrics,
	}, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      promErrorLog{},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// promErrorLog routes promhttp errors into the structured logger.
type promErrorLog struct{}

func (promErrorLog) Println(v ...any) {
	log.Error("metrics handler error", logger.String("detail", fmt.Sprint(v...)))
}

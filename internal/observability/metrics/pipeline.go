package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics covers framing, display and inference.
type PipelineMetrics struct {
	FramesTotal        prometheus.Counter
	BytesTotal         prometheus.Counter
	SpectrogramColumns prometheus.Counter
	InferenceDuration  prometheus.Histogram
	PredictionsTotal   *prometheus.CounterVec // by label
	InferenceSkipped   *prometheus.CounterVec // by reason
	WaveformSamples    prometheus.Gauge
	registry           *prometheus.Registry
}

// NewPipelineMetrics creates pipeline metrics and registers them with registry.
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.FramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sawring_frames_total",
		Help: "Total number of complete PCM frames assembled",
	})
	m.BytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sawring_frame_bytes_total",
		Help: "Total number of bytes fed into the frame assembler",
	})
	m.SpectrogramColumns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sawring_spectrogram_columns_total",
		Help: "Total number of display spectrogram columns produced",
	})
	m.InferenceDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sawring_inference_duration_seconds",
		Help:    "Time spent on feature extraction and classification per inference tick",
		Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12),
	})
	m.PredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sawring_predictions_total",
		Help: "Total number of classifier predictions by top label",
	}, []string{"label"})
	m.InferenceSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sawring_inference_skipped_total",
		Help: "Inference ticks that produced no prediction, by reason",
	}, []string{"reason"})
	m.WaveformSamples = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sawring_waveform_samples",
		Help: "Samples currently held in the waveform ring buffer",
	})
}

// RecordFeed records one chunk fed to the assembler and the frames it completed.
func (m *PipelineMetrics) RecordFeed(bytes, frames int) {
	m.BytesTotal.Add(float64(bytes))
	m.FramesTotal.Add(float64(frames))
}

// RecordColumns counts spectrogram columns.
func (m *PipelineMetrics) RecordColumns(n int) {
	if n > 0 {
		m.SpectrogramColumns.Add(float64(n))
	}
}

// ObserveInference records the duration of one inference tick.
func (m *PipelineMetrics) ObserveInference(d time.Duration) {
	m.InferenceDuration.Observe(d.Seconds())
}

// RecordPrediction counts a prediction for label.
func (m *PipelineMetrics) RecordPrediction(label string) {
	m.PredictionsTotal.WithLabelValues(label).Inc()
}

// RecordSkip counts an inference tick skipped for reason.
func (m *PipelineMetrics) RecordSkip(reason string) {
	m.InferenceSkipped.WithLabelValues(reason).Inc()
}

// SetWaveformSamples records the ring buffer fill level.
func (m *PipelineMetrics) SetWaveformSamples(n int) {
	m.WaveformSamples.Set(float64(n))
}

// Describe implements the prometheus.Collector interface.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.FramesTotal.Describe(ch)
	m.BytesTotal.Describe(ch)
	m.SpectrogramColumns.Describe(ch)
	m.InferenceDuration.Describe(ch)
	m.PredictionsTotal.Describe(ch)
	m.InferenceSkipped.Describe(ch)
	m.WaveformSamples.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.FramesTotal.Collect(ch)
	m.BytesTotal.Collect(ch)
	m.SpectrogramColumns.Collect(ch)
	m.InferenceDuration.Collect(ch)
	m.PredictionsTotal.Collect(ch)
	m.InferenceSkipped.Collect(ch)
	m.WaveformSamples.Collect(ch)
}

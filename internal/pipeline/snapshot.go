package pipeline

import (
	"time"

	"github.com/sawring/sawring/internal/sources"
	"github.com/sawring/sawring/internal/spectrogram"
)

// Status summarizes a running session.
type Status struct {
	SessionID           string                 `json:"session_id"`
	Source              sources.StatusSnapshot `json:"source"`
	State               string                 `json:"state"`
	Label               string                 `json:"label"`
	Confidence          float64                `json:"confidence"`
	ClassifierAvailable bool                   `json:"classifier_available"`
	UptimeSeconds       float64                `json:"uptime_seconds"`
	BytesFed            uint64                 `json:"bytes_fed"`
	FramesEmitted       uint64                 `json:"frames_emitted"`
	PendingBytes        int                    `json:"pending_bytes"`
	SpectrogramColumns  uint64                 `json:"spectrogram_columns"`
	Inferences          uint64                 `json:"inferences"`
	SkippedInferences   uint64                 `json:"skipped_inferences"`
	Events              uint64                 `json:"events"`
	QueueDepth          int                    `json:"queue_depth"`
	QueueDropped        uint64                 `json:"queue_dropped"`
}

// DisplayFrame is what a live display needs for one repaint.
type DisplayFrame struct {
	Timestamp   time.Time   `json:"timestamp"`
	State       string      `json:"state"`
	Label       string      `json:"label"`
	Confidence  float64     `json:"confidence"`
	Waveform    []float32   `json:"waveform"`
	Spectrogram [][]float64 `json:"spectrogram"` // [mel][time], normalized to [0,1]
}

// Status returns the current session summary.
func (s *Session) Status() Status {
	qs := s.queue.Stats()

	s.mu.RLock()
	defer s.mu.RUnlock()

	label, confidence := s.machine.Display()
	fed, emitted := s.assembler.Stats()
	st := Status{
		SessionID:           s.id,
		Source:              s.status.Snapshot(),
		State:               s.machine.State().String(),
		Label:               label,
		Confidence:          confidence,
		ClassifierAvailable: s.classifier.Available(),
		BytesFed:            fed,
		FramesEmitted:       emitted / uint64(s.assembler.FrameSize()),
		PendingBytes:        s.assembler.Pending(),
		SpectrogramColumns:  s.counters.columns,
		Inferences:          s.counters.inferences,
		SkippedInferences:   s.counters.skipped,
		Events:              s.counters.events,
		QueueDepth:          s.queue.Len(),
		QueueDropped:        qs.Dropped,
	}
	if !s.started.IsZero() {
		st.UptimeSeconds = s.now().Sub(s.started).Seconds()
	}
	return st
}

// SourceStatus returns the connection state of the source.
func (s *Session) SourceStatus() sources.StatusSnapshot {
	return s.status.Snapshot()
}

// Waveform returns the display waveform, oldest sample first.
func (s *Session) Waveform() []float32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wave.Snapshot()
}

// Spectrogram returns the rolling image as [mel][time], in dB or mapped to
// [0,1] when normalized is set.
func (s *Session) Spectrogram(normalized bool) [][]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if normalized {
		return s.image.Normalized()
	}
	return s.image.Snapshot()
}

// Spectrum returns the magnitude spectrum of the most recent frame.
func (s *Session) Spectrum() spectrogram.Spectrum {
	n := s.settings.FrameSamples()
	s.mu.RLock()
	samples := s.wave.Latest(n)
	s.mu.RUnlock()
	return spectrogram.ComputeSpectrum(samples, s.settings.Frame.SampleRate, n)
}

// Display returns a repaint snapshot.
func (s *Session) Display() DisplayFrame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	label, confidence := s.machine.Display()
	return DisplayFrame{
		Timestamp:   s.now(),
		State:       s.machine.State().String(),
		Label:       label,
		Confidence:  confidence,
		Waveform:    s.wave.Snapshot(),
		Spectrogram: s.image.Normalized(),
	}
}

package pipeline

import (
	"time"

	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/events"
	"github.com/sawring/sawring/internal/frame"
	"github.com/sawring/sawring/internal/logger"
)

// Ingest runs the display path for one chunk of transport bytes: framing,
// normalization, waveform and spectrogram update. It returns the number of
// complete frames the chunk produced.
func (s *Session) Ingest(chunk []byte) int {
	s.mu.Lock()
	frames := s.assembler.Feed(chunk)
	columns := 0
	for _, f := range frames {
		samples := frame.Normalize(f, s.settings.Frame.SampleRate).Data
		s.wave.Push(samples)
		s.history.Push(samples)
		cols := s.windower.Process(samples)
		s.image.Push(cols...)
		columns += len(cols)
	}
	s.counters.columns += uint64(columns)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Sources.AddBytes(s.source.Name(), len(chunk))
		s.metrics.Pipeline.RecordFeed(len(chunk), len(frames))
		s.metrics.Pipeline.RecordColumns(columns)
	}
	return len(frames)
}

// Infer runs one inference tick on the latest feature window and feeds the
// prediction to the state machine. Events it causes are published to the
// bus and returned.
//
// Until a full window has been received, and while the classifier is
// unavailable, the tick is skipped with a FeatureDegenerate or
// ClassifierUnavailable error.
func (s *Session) Infer(now time.Time) ([]events.Event, error) {
	start := time.Now()
	need := s.history.Capacity()

	s.mu.RLock()
	received := s.history.Total()
	window := s.history.Snapshot()
	s.mu.RUnlock()

	if received < uint64(need) {
		s.skip("warmup")
		return nil, errors.Newf("waiting for a full feature window").
			Component("pipeline").
			Category(errors.CategoryFeatureDegenerate).
			Context("received", received).
			Context("required", need).
			Build()
	}

	tensor, err := s.extractor.Extract(window)
	if err != nil {
		s.skip("degenerate")
		return nil, err
	}

	prediction, err := s.classifier.Predict(tensor)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryClassifierUnavailable) {
			s.skip("unavailable")
		} else {
			s.skip("error")
		}
		return nil, err
	}

	s.mu.Lock()
	evs := s.machine.Update(prediction.Label, prediction.Confidence, now)
	s.prediction = prediction
	s.counters.inferences++
	s.counters.events += uint64(len(evs))
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.Pipeline.ObserveInference(time.Since(start))
		s.metrics.Pipeline.RecordPrediction(prediction.Label)
	}

	for _, ev := range evs {
		s.publish(ev)
	}
	return evs, nil
}

func (s *Session) skip(reason string) {
	s.mu.Lock()
	s.counters.skipped++
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.Pipeline.RecordSkip(reason)
	}
}

func (s *Session) publish(ev events.Event) {
	s.log.Info("gesture event",
		logger.String("kind", string(ev.Kind)),
		logger.String("label", ev.Label),
		logger.Float64("confidence", ev.Confidence),
		logger.String("action", ev.Action),
		logger.Duration("duration", ev.Duration))

	if s.metrics != nil {
		s.metrics.Events.RecordEvent(string(ev.Kind), ev.Label)
	}
	if s.bus == nil {
		return
	}
	if !s.bus.TryPublish(ev) && s.metrics != nil && len(s.bus.Consumers()) > 0 {
		s.metrics.Events.RecordDropped()
	}
}

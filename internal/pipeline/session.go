// Package pipeline runs one acquisition session: a producer goroutine moves
// transport bytes into a bounded queue and a single consumer goroutine
// drives framing, display and inference on two tickers.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sawring/sawring/internal/classifier"
	"github.com/sawring/sawring/internal/conf"
	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/events"
	"github.com/sawring/sawring/internal/features"
	"github.com/sawring/sawring/internal/frame"
	"github.com/sawring/sawring/internal/logger"
	"github.com/sawring/sawring/internal/observability"
	"github.com/sawring/sawring/internal/sources"
	"github.com/sawring/sawring/internal/spectrogram"
	"github.com/sawring/sawring/internal/waveform"
)

// drainLimit bounds the chunks handled per display tick so inference ticks
// are not starved after a burst.
const drainLimit = 64

// Options configure a Session. Only Settings is required; the rest default
// to what Settings describe.
type Options struct {
	Settings   *conf.Settings
	Source     sources.Source
	Classifier classifier.Classifier
	Bus        *events.Bus            // nil discards events
	Metrics    *observability.Metrics // nil disables metrics
	Now        func() time.Time
}

// Session owns every pipeline stage for one sensor connection.
type Session struct {
	id       string
	settings *conf.Settings
	source   sources.Source
	status   *sources.Status
	queue    *sources.Queue

	extractor  *features.Extractor
	classifier classifier.Classifier
	bus        *events.Bus
	metrics    *observability.Metrics
	now        func() time.Time
	log        logger.Logger

	// mu guards the consumer-owned state below for API readers.
	mu         sync.RWMutex
	assembler  *frame.Assembler
	windower   *spectrogram.Windower
	image      *spectrogram.Image
	wave       *waveform.RingBuffer
	history    *waveform.RingBuffer
	machine    *events.Machine
	prediction classifier.Prediction
	counters   counters
	started    time.Time

	lastDropped uint64
	generation  uint64 // connection the assembler is framing
	warnLimit   *rate.Limiter
}

type counters struct {
	columns    uint64
	inferences uint64
	skipped    uint64
	events     uint64
}

// New builds a session from opts.
func New(opts Options) (*Session, error) {
	settings := opts.Settings
	if settings == nil {
		return nil, errors.Newf("pipeline settings are required").
			Component("pipeline").
			Category(errors.CategoryValidation).
			Build()
	}

	s := &Session{
		id:        uuid.NewString(),
		settings:  settings,
		source:    opts.Source,
		bus:       opts.Bus,
		metrics:   opts.Metrics,
		now:       opts.Now,
		queue:     sources.NewQueue(settings.Queue.Capacity),
		warnLimit: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.log = GetLogger().With(logger.String("session_id", s.id))

	if s.source == nil {
		src, err := sources.New(settings)
		if err != nil {
			return nil, err
		}
		s.source = src
	}
	s.status = sources.NewStatus(s.source.Name(), s.onStatusChange)

	var err error
	if s.assembler, err = frame.NewAssembler(settings.FrameSizeBytes()); err != nil {
		return nil, err
	}
	sp := settings.Spectrogram
	s.windower, err = spectrogram.NewWindower(spectrogram.Params{
		SampleRate: settings.Frame.SampleRate,
		NFFT:       sp.NFFT,
		HopLength:  sp.HopLength,
		NMels:      sp.NMels,
		FMin:       sp.FMin,
		FMax:       sp.FMax,
		FloorDB:    sp.FloorDB,
	})
	if err != nil {
		return nil, err
	}
	s.image = spectrogram.NewImage(sp.NMels, sp.TimeSteps, sp.FloorDB)
	s.wave = waveform.New(settings.WaveformSamples())
	s.history = waveform.New(settings.FeatureWindowSamples())

	if s.extractor, err = features.NewExtractor(settings.Frame.SampleRate, settings.Features); err != nil {
		return nil, err
	}

	s.classifier = opts.Classifier
	if s.classifier == nil {
		// A load failure still yields a NullClassifier; ingestion and
		// display keep running without predictions.
		c, err := classifier.New(settings.Classifier, s.extractor.Shape())
		if err != nil {
			s.log.Warn("continuing without predictions", logger.Error(err))
		}
		s.classifier = c
	}

	labels := s.classifier.Labels()
	cfg := events.ConfigFromSettings(settings.Events)
	cfg.Background = labels.Background
	cfg.Labels = labels.Names()
	cfg.Actions = make(map[string]string, len(labels.Classes))
	for _, l := range labels.Classes {
		if l.Action != "" {
			cfg.Actions[l.Name] = l.Action
		}
	}
	cfg.SessionID = s.id
	if s.machine, err = events.NewMachine(cfg); err != nil {
		return nil, err
	}

	return s, nil
}

// ID returns the session identifier stamped on every event.
func (s *Session) ID() string {
	return s.id
}

// Classifier returns the classifier in use.
func (s *Session) Classifier() classifier.Classifier {
	return s.classifier
}

func (s *Session) onStatusChange(source string, from, to sources.State) {
	s.log.Info("source state changed",
		logger.String("source", source),
		logger.String("from", from.String()),
		logger.String("to", to.String()))
	if s.metrics != nil {
		s.metrics.Sources.SetConnectionState(source, to.String())
	}
}

// Run connects the source and drives the pipeline until ctx is cancelled,
// the source closes in an orderly way, or it fails and reconnecting is
// disabled. A lost connection is retried after source.reconnectdelay.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	s.started = s.now()
	s.mu.Unlock()

	s.log.Info("session started",
		logger.String("source", s.source.Name()),
		logger.Int("frame_size", s.settings.FrameSizeBytes()),
		logger.Int("sample_rate", s.settings.Frame.SampleRate),
		logger.Bool("classifier_available", s.classifier.Available()))

	g, gctx := errgroup.WithContext(ctx)
	producerDone := make(chan struct{})

	g.Go(func() error {
		defer close(producerDone)
		return s.produce(gctx)
	})
	g.Go(func() error {
		s.consume(gctx, producerDone)
		return nil
	})

	err := g.Wait()
	// Lost and failed stay visible after the session ends.
	if st := s.status.State(); st == sources.StateConnected || st == sources.StateConnecting {
		s.status.Set(sources.StateDisconnected, nil)
	}
	s.log.Info("session stopped", logger.Error(err))
	return err
}

// produce connects and reads until the source is done. Each reconnect
// starts a new queue generation so the consumer drops any partial frame.
func (s *Session) produce(ctx context.Context) error {
	delay := s.settings.Source.ReconnectDelay
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			s.queue.NextGeneration()
		}

		s.status.Set(sources.StateConnecting, nil)
		if s.metrics != nil {
			s.metrics.Sources.RecordConnectAttempt(s.source.Name())
		}
		err := s.source.Connect(ctx)
		if err == nil {
			s.status.Set(sources.StateConnected, nil)
			var stats sources.ProducerStats
			stats, err = sources.Produce(ctx, s.source, s.queue)
			s.log.Debug("producer finished",
				logger.Uint64("reads", stats.Reads),
				logger.Uint64("idle_reads", stats.IdleReads),
				logger.Uint64("bytes", stats.Bytes),
				logger.Uint64("dropped", stats.Dropped))
			if ctx.Err() != nil {
				return nil
			}
			if closeErr := s.source.Close(); closeErr != nil {
				s.log.Debug("close after read loop", logger.Error(closeErr))
			}
			if err == nil {
				// Replayed files end for good; live transports may come back.
				if s.source.Name() == conf.SourceFile || delay <= 0 {
					return nil
				}
				s.status.Set(sources.StateDisconnected, nil)
			} else {
				s.status.Set(sources.StateLost, err)
			}
		} else {
			if ctx.Err() != nil {
				return nil
			}
			s.status.Set(sources.StateFailed, err)
		}

		if delay <= 0 {
			return err
		}
		s.log.Warn("source unavailable, retrying",
			logger.Error(err),
			logger.Duration("delay", delay),
			logger.Int("attempt", attempt+1))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (s *Session) consume(ctx context.Context, producerDone <-chan struct{}) {
	display := time.NewTicker(s.settings.Display.Tick)
	defer display.Stop()
	inference := time.NewTicker(s.settings.Classifier.Interval)
	defer inference.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-producerDone:
			// Flush what the producer queued before it finished.
			for s.drain() > 0 {
			}
			return
		case <-display.C:
			s.drain()
		case <-inference.C:
			s.tick(s.now())
		}
	}
}

// drain feeds queued chunks into the display path and returns how many it
// handled.
func (s *Session) drain() int {
	chunks := s.queue.DrainChunks(drainLimit)
	for _, chunk := range chunks {
		if chunk.Generation != s.generation {
			s.generation = chunk.Generation
			s.resetFraming()
		}
		s.Ingest(chunk.Data)
	}
	if s.metrics != nil {
		qs := s.queue.Stats()
		s.metrics.Sources.AddDropped(qs.Dropped - s.lastDropped)
		s.lastDropped = qs.Dropped
		s.metrics.Sources.SetQueueDepth(s.queue.Len())
	}
	return len(chunks)
}

func (s *Session) resetFraming() {
	s.mu.Lock()
	pending := s.assembler.Pending()
	s.assembler.Reset()
	s.windower.Reset()
	s.mu.Unlock()
	if pending > 0 {
		s.log.Debug("discarded partial frame after reconnect", logger.Int("pending_bytes", pending))
	}
}

// tick runs one inference and logs anything other than an expected skip.
func (s *Session) tick(now time.Time) {
	if _, err := s.Infer(now); err != nil && !isSkip(err) && s.warnLimit.Allow() {
		s.log.Warn("inference failed", logger.Error(err))
	}
	if lr, ok := s.source.(interface{ LossRate() float64 }); ok && s.metrics != nil {
		s.metrics.Sources.SetUDPLossRate(lr.LossRate())
	}
}

func isSkip(err error) bool {
	return errors.IsCategory(err, errors.CategoryFeatureDegenerate) ||
		errors.IsCategory(err, errors.CategoryClassifierUnavailable)
}

// Close releases the classifier. The session must not be running.
func (s *Session) Close() error {
	return s.classifier.Close()
}

package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/logger"
)

// Bus delivers events to consumers on worker goroutines so that slow
// dispatch (MQTT, push notifications) never blocks the inference tick.
// Events are dropped when the buffer is full.
type Bus struct {
	eventChan chan Event

	workers int

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
	mu      sync.Mutex

	consumers []EventConsumer

	stats BusStats

	onDelivery func(consumer string, elapsed time.Duration, err error)

	log logger.Logger
}

// NewBus creates a bus. Workers start with the first registered consumer.
// A single worker keeps start and end events in order for every consumer.
func NewBus(bufferSize, workers int) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		eventChan: make(chan Event, max(1, bufferSize)),
		workers:   max(1, workers),
		ctx:       ctx,
		cancel:    cancel,
		log:       GetLogger().Module("bus"),
	}
	b.log.Debug("event bus created",
		logger.Int("buffer_size", cap(b.eventChan)),
		logger.Int("workers", b.workers))
	return b
}

// RegisterConsumer adds a consumer. Names must be unique.
func (b *Bus) RegisterConsumer(consumer EventConsumer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, existing := range b.consumers {
		if existing.Name() == consumer.Name() {
			return errors.Newf("consumer %s already registered", consumer.Name()).
				Component("events").
				Category(errors.CategoryState).
				Build()
		}
	}
	b.consumers = append(b.consumers, consumer)

	b.log.Info("registered event consumer", logger.String("consumer", consumer.Name()))

	if len(b.consumers) == 1 && b.ctx.Err() == nil {
		b.start()
	}
	return nil
}

// SetDeliveryHook installs a callback invoked after every consumer call.
// It must be set before the first consumer is registered.
func (b *Bus) SetDeliveryHook(hook func(consumer string, elapsed time.Duration, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDelivery = hook
}

// Consumers returns the registered consumer names.
func (b *Bus) Consumers() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, len(b.consumers))
	for i, c := range b.consumers {
		names[i] = c.Name()
	}
	return names
}

// TryPublish queues an event without blocking. It returns false when the
// event was dropped.
func (b *Bus) TryPublish(event Event) bool {
	if !b.running.Load() {
		return false
	}

	select {
	case b.eventChan <- event:
		atomic.AddUint64(&b.stats.EventsReceived, 1)
		return true
	default:
		atomic.AddUint64(&b.stats.EventsDropped, 1)
		b.log.Debug("event dropped due to full buffer",
			logger.String("kind", string(event.Kind)),
			logger.String("label", event.Label))
		return false
	}
}

func (b *Bus) start() {
	if b.running.Swap(true) {
		return
	}
	for i := range b.workers {
		b.wg.Add(1)
		go b.worker(i)
	}
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()

	log := b.log.With(logger.Int("worker_id", id))
	for {
		select {
		case <-b.ctx.Done():
			// Deliver what was accepted before shutdown.
			for {
				select {
				case event := <-b.eventChan:
					b.processEvent(event, log)
				default:
					return
				}
			}
		case event := <-b.eventChan:
			b.processEvent(event, log)
		}
	}
}

func (b *Bus) processEvent(event Event, log logger.Logger) {
	b.mu.Lock()
	consumers := make([]EventConsumer, len(b.consumers))
	copy(consumers, b.consumers)
	hook := b.onDelivery
	b.mu.Unlock()

	for _, consumer := range consumers {
		func() {
			start := time.Now()
			var err error
			defer func() {
				if r := recover(); r != nil {
					atomic.AddUint64(&b.stats.ConsumerErrors, 1)
					err = fmt.Errorf("consumer panicked: %v", r)
					log.Error("consumer panicked",
						logger.String("consumer", consumer.Name()),
						logger.Any("panic", r),
						logger.String("event_id", event.ID))
				}
				if hook != nil {
					hook(consumer.Name(), time.Since(start), err)
				}
			}()

			if err = consumer.ProcessEvent(event); err != nil {
				atomic.AddUint64(&b.stats.ConsumerErrors, 1)
				log.Error("consumer error",
					logger.String("consumer", consumer.Name()),
					logger.String("event_id", event.ID),
					logger.Error(err))
				return
			}
			atomic.AddUint64(&b.stats.EventsProcessed, 1)
		}()
	}
}

// Shutdown stops accepting events, lets workers drain the buffer and waits
// up to timeout for them to exit.
func (b *Bus) Shutdown(timeout time.Duration) error {
	b.running.Store(false)
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Debug("event bus shutdown complete")
		return nil
	case <-time.After(timeout):
		b.log.Warn("event bus shutdown timeout exceeded", logger.Duration("timeout", timeout))
		return errors.New(fmt.Errorf("event bus shutdown timeout exceeded")).
			Component("events").
			Category(errors.CategoryTimeout).
			Context("timeout", timeout.String()).
			Build()
	}
}

// Stats returns current counters.
func (b *Bus) Stats() BusStats {
	return BusStats{
		EventsReceived:  atomic.LoadUint64(&b.stats.EventsReceived),
		EventsProcessed: atomic.LoadUint64(&b.stats.EventsProcessed),
		EventsDropped:   atomic.LoadUint64(&b.stats.EventsDropped),
		ConsumerErrors:  atomic.LoadUint64(&b.stats.ConsumerErrors),
	}
}

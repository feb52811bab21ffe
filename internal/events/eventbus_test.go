package events

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockConsumer implements EventConsumer for testing
type mockConsumer struct {
	name           string
	processedCount atomic.Int32
	errorOnProcess bool
	panicOnProcess bool
	processDelay   time.Duration
	mu             sync.Mutex
	events         []Event
}

func (m *mockConsumer) Name() string { return m.name }

func (m *mockConsumer) ProcessEvent(event Event) error {
	if m.processDelay > 0 {
		time.Sleep(m.processDelay)
	}

	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()

	m.processedCount.Add(1)

	if m.panicOnProcess {
		panic("mock panic")
	}
	if m.errorOnProcess {
		return fmt.Errorf("mock error")
	}
	return nil
}

func (m *mockConsumer) GetEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus(16, 1)
	consumer := &mockConsumer{name: "recorder"}
	require.NoError(t, bus.RegisterConsumer(consumer))

	for i := range 10 {
		require.True(t, bus.TryPublish(Event{ID: fmt.Sprint(i), Kind: KindStart}))
	}

	require.Eventually(t, func() bool {
		return consumer.processedCount.Load() == 10
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, bus.Shutdown(time.Second))

	for i, ev := range consumer.GetEvents() {
		assert.Equal(t, fmt.Sprint(i), ev.ID)
	}
	stats := bus.Stats()
	assert.Equal(t, uint64(10), stats.EventsReceived)
	assert.Equal(t, uint64(10), stats.EventsProcessed)
}

func TestBusWithoutConsumersRejects(t *testing.T) {
	bus := NewBus(4, 1)
	assert.False(t, bus.TryPublish(Event{}))
	require.NoError(t, bus.Shutdown(time.Second))
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewBus(1, 1)
	slow := &mockConsumer{name: "slow", processDelay: 50 * time.Millisecond}
	require.NoError(t, bus.RegisterConsumer(slow))

	accepted := 0
	for range 20 {
		if bus.TryPublish(Event{Kind: KindStart}) {
			accepted++
		}
	}

	stats := bus.Stats()
	assert.Positive(t, stats.EventsDropped)
	assert.Equal(t, uint64(accepted), stats.EventsReceived)
	assert.Equal(t, uint64(20), stats.EventsReceived+stats.EventsDropped)
	require.NoError(t, bus.Shutdown(2*time.Second))
}

func TestBusIsolatesConsumerFailures(t *testing.T) {
	bus := NewBus(8, 1)
	failing := &mockConsumer{name: "failing", errorOnProcess: true}
	panicking := &mockConsumer{name: "panicking", panicOnProcess: true}
	healthy := &mockConsumer{name: "healthy"}
	require.NoError(t, bus.RegisterConsumer(failing))
	require.NoError(t, bus.RegisterConsumer(panicking))
	require.NoError(t, bus.RegisterConsumer(healthy))

	require.True(t, bus.TryPublish(Event{Kind: KindEnd}))
	require.True(t, bus.TryPublish(Event{Kind: KindStart}))

	require.Eventually(t, func() bool {
		return healthy.processedCount.Load() == 2
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, bus.Shutdown(time.Second))

	stats := bus.Stats()
	assert.Equal(t, uint64(4), stats.ConsumerErrors)
	assert.Equal(t, uint64(2), stats.EventsProcessed)
	assert.Equal(t, []string{"failing", "panicking", "healthy"}, bus.Consumers())
}

func TestBusRejectsDuplicateConsumer(t *testing.T) {
	bus := NewBus(4, 1)
	require.NoError(t, bus.RegisterConsumer(&mockConsumer{name: "mqtt"}))
	assert.Error(t, bus.RegisterConsumer(&mockConsumer{name: "mqtt"}))
	require.NoError(t, bus.Shutdown(time.Second))
}

func TestBusShutdownDrainsAcceptedEvents(t *testing.T) {
	bus := NewBus(32, 1)
	consumer := &mockConsumer{name: "recorder", processDelay: time.Millisecond}
	require.NoError(t, bus.RegisterConsumer(consumer))

	for range 20 {
		require.True(t, bus.TryPublish(Event{Kind: KindStart}))
	}
	require.NoError(t, bus.Shutdown(2*time.Second))

	assert.Equal(t, int32(20), consumer.processedCount.Load())
	assert.False(t, bus.TryPublish(Event{}), "closed bus accepts nothing")
}

func TestBusDeliveryHookSeesEveryCall(t *testing.T) {
	bus := NewBus(8, 1)

	var mu sync.Mutex
	results := map[string][]bool{}
	bus.SetDeliveryHook(func(consumer string, _ time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		results[consumer] = append(results[consumer], err == nil)
	})
	require.NoError(t, bus.RegisterConsumer(&mockConsumer{name: "ok"}))
	require.NoError(t, bus.RegisterConsumer(&mockConsumer{name: "boom", panicOnProcess: true}))

	require.True(t, bus.TryPublish(Event{Kind: KindStart}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results["ok"]) == 1 && len(results["boom"]) == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, bus.Shutdown(time.Second))

	assert.Equal(t, []bool{true}, results["ok"])
	assert.Equal(t, []bool{false}, results["boom"])
}

package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4)
	for i := range 3 {
		assert.False(t, q.Push([]byte{byte(i)}))
	}
	assert.Equal(t, 3, q.Len())

	got := q.Drain(0)
	assert.Equal(t, [][]byte{{0}, {1}, {2}}, got)
	assert.Zero(t, q.Len())
	assert.Empty(t, q.Drain(0))
}

func TestQueueDropsOldest(t *testing.T) {
	q := NewQueue(2)
	assert.False(t, q.Push([]byte{1}))
	assert.False(t, q.Push([]byte{2}))
	assert.True(t, q.Push([]byte{3}))
	assert.True(t, q.Push([]byte{4}))

	assert.Equal(t, [][]byte{{3}, {4}}, q.Drain(0))
	stats := q.Stats()
	assert.Equal(t, uint64(4), stats.Pushed)
	assert.Equal(t, uint64(2), stats.Dropped)
	assert.Equal(t, uint64(4), stats.Bytes)
}

func TestQueueDrainLimit(t *testing.T) {
	q := NewQueue(8)
	for i := range 5 {
		q.Push([]byte{byte(i)})
	}
	require.Len(t, q.Drain(2), 2)
	assert.Equal(t, [][]byte{{2}, {3}, {4}}, q.Drain(10))
	assert.Equal(t, 8, q.Cap())
}

func TestQueueGenerationSurvivesEviction(t *testing.T) {
	q := NewQueue(2)
	q.Push([]byte{1})
	assert.Equal(t, uint64(1), q.NextGeneration())
	q.Push([]byte{2})
	q.Push([]byte{3})
	q.Push([]byte{4})

	got := q.DrainChunks(0)
	assert.Equal(t, []Chunk{
		{Data: []byte{3}, Generation: 1},
		{Data: []byte{4}, Generation: 1},
	}, got)
	assert.Equal(t, uint64(1), q.Generation())
}

func TestStatusTransitions(t *testing.T) {
	var seen []string
	s := NewStatus("tcp", func(source string, from, to State) {
		seen = append(seen, source+":"+from.String()+"->"+to.String())
	})
	assert.Equal(t, StateDisconnected, s.State())

	s.Set(StateConnecting, nil)
	s.Set(StateConnected, nil)
	s.Set(StateConnected, nil)
	s.Set(StateLost, assert.AnError)

	snap := s.Snapshot()
	assert.Equal(t, "tcp", snap.Source)
	assert.Equal(t, "lost", snap.State)
	assert.Equal(t, assert.AnError.Error(), snap.Error)
	assert.Equal(t, []string{
		"tcp:disconnected->connecting",
		"tcp:connecting->connected",
		"tcp:connected->lost",
	}, seen)
}

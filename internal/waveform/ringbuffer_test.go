package waveform

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsZeroFilled(t *testing.T) {
	r := New(8)
	assert.Equal(t, 8, r.Capacity())
	assert.Equal(t, make([]float32, 8), r.Snapshot())
}

func TestPushKeepsLastCapacitySamples(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	const capacity = 1000

	r := New(capacity)
	var fed []float32
	for range 200 {
		chunk := make([]float32, rng.IntN(1500))
		for i := range chunk {
			chunk[i] = float32(len(fed) + i)
		}
		fed = append(fed, chunk...)
		r.Push(chunk)

		snap := r.Snapshot()
		require.Len(t, snap, capacity)
		if len(fed) >= capacity {
			require.Equal(t, fed[len(fed)-capacity:], snap)
		} else {
			require.Equal(t, fed, snap[capacity-len(fed):])
		}
	}
	assert.Equal(t, uint64(len(fed)), r.Total())
}

func TestPushOversizedChunk(t *testing.T) {
	r := New(4)
	r.Push([]float32{1, 2})
	r.Push([]float32{3, 4, 5, 6, 7, 8})
	assert.Equal(t, []float32{5, 6, 7, 8}, r.Snapshot())

	r.Push([]float32{9})
	assert.Equal(t, []float32{6, 7, 8, 9}, r.Snapshot())
}

func TestLatest(t *testing.T) {
	r := New(5)
	r.Push([]float32{1, 2, 3, 4, 5, 6, 7})

	assert.Equal(t, []float32{6, 7}, r.Latest(2))
	assert.Equal(t, []float32{3, 4, 5, 6, 7}, r.Latest(50))
	assert.Empty(t, r.Latest(0))
	assert.Empty(t, r.Latest(-3))
}

func TestReset(t *testing.T) {
	r := New(3)
	r.Push([]float32{1, 2})
	r.Reset()
	assert.Equal(t, []float32{0, 0, 0}, r.Snapshot())
	assert.Zero(t, r.Total())
}

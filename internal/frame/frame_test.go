package frame

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawring/sawring/internal/errors"
)

func concat(frames []RawFrame) []byte {
	var buf bytes.Buffer
	for _, f := range frames {
		buf.Write(f)
	}
	return buf.Bytes()
}

func TestAssemblerTwoHalvesOfZeros(t *testing.T) {
	a, err := NewAssembler(2048)
	require.NoError(t, err)

	var frames []RawFrame
	frames = append(frames, a.Feed(make([]byte, 2048))...)
	frames = append(frames, a.Feed(make([]byte, 2048))...)

	require.Len(t, frames, 2)
	for _, f := range frames {
		chunk := Normalize(f, 24000)
		require.Len(t, chunk.Data, 1024)
		for _, s := range chunk.Data {
			assert.Zero(t, s)
		}
	}
	assert.Zero(t, a.Pending())
}

func TestAssemblerConservesBytes(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	a, err := NewAssembler(1024)
	require.NoError(t, err)

	var input, output []byte
	for range 500 {
		chunk := make([]byte, rng.IntN(3000))
		for i := range chunk {
			chunk[i] = byte(rng.IntN(256))
		}
		input = append(input, chunk...)

		frames := a.Feed(chunk)
		for _, f := range frames {
			require.Len(t, f, 1024, "partial frame emitted")
		}
		output = append(output, concat(frames)...)

		assert.Equal(t, len(input), len(output)+a.Pending())
	}

	assert.Equal(t, input[:len(output)], output, "bytes reordered, duplicated or dropped")
	fed, emitted := a.Stats()
	assert.Equal(t, uint64(len(input)), fed)
	assert.Equal(t, uint64(len(output)), emitted)
}

func TestAssemblerPassThroughIsZeroCopy(t *testing.T) {
	a, err := NewAssembler(1024)
	require.NoError(t, err)

	notification := make([]byte, 1024)
	frames := a.Feed(notification)
	require.Len(t, frames, 1)
	assert.Same(t, &notification[0], &frames[0][0])
}

func TestAssemblerCarriesRemainder(t *testing.T) {
	a, err := NewAssembler(4)
	require.NoError(t, err)

	assert.Empty(t, a.Feed([]byte{1, 2, 3}))
	assert.Equal(t, 3, a.Pending())

	frames := a.Feed([]byte{4, 5, 6, 7, 8, 9, 10})
	require.Len(t, frames, 2)
	assert.Equal(t, RawFrame{1, 2, 3, 4}, frames[0])
	assert.Equal(t, RawFrame{5, 6, 7, 8}, frames[1])
	assert.Equal(t, 2, a.Pending())

	a.Reset()
	assert.Zero(t, a.Pending())
	assert.Empty(t, a.Feed(nil))
}

func TestNewAssemblerRejectsBadSize(t *testing.T) {
	for _, size := range []int{0, -2, 3} {
		_, err := NewAssembler(size)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation), "size %d", size)
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	raw := make(RawFrame, 2*65536)
	for i := range 65536 {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(int16(i+math.MinInt16)))
	}

	chunk := Normalize(raw, 24000)
	require.Len(t, chunk.Data, 65536)
	assert.Equal(t, 24000, chunk.Format.SampleRate)
	assert.Equal(t, 1, chunk.Format.NumChannels)

	for i, s := range chunk.Data {
		want := i + math.MinInt16
		require.Equal(t, want, int(math.Round(float64(s)*Scale)))
		require.GreaterOrEqual(t, s, float32(-1))
		require.Less(t, s, float32(1))
	}

	assert.Equal(t, raw, Denormalize(chunk.Data))
}

func TestNormalizeOddLengthPanics(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.IsCategory(err, errors.CategoryFramingViolation))
	}()
	Normalize(RawFrame{1, 2, 3}, 24000)
}

package frame

import (
	"encoding/binary"
	"math"

	"github.com/go-audio/audio"

	"github.com/sawring/sawring/internal/errors"
)

// Scale is the int16 to float divisor.
const Scale = 32768.0

// BitDepth is the only supported source sample width in bits.
const BitDepth = 16

// Normalize converts a frame into samples in [-1, 1). An odd byte length is
// a framing violation and panics.
func Normalize(f RawFrame, sampleRate int) *audio.Float32Buffer {
	if len(f)%2 != 0 {
		panic(errors.Newf("frame length %d is not a multiple of 2", len(f)).
			Component("frame").
			Category(errors.CategoryFramingViolation).
			Context("length", len(f)).
			Build())
	}

	data := make([]float32, len(f)/2)
	for i := range data {
		data[i] = float32(int16(binary.LittleEndian.Uint16(f[i*2:]))) / Scale
	}

	return &audio.Float32Buffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: BitDepth,
	}
}

// Denormalize is the inverse of Normalize up to quantization. It clamps to
// the int16 range and is used by tests and the WAV replay source.
func Denormalize(samples []float32) RawFrame {
	out := make(RawFrame, len(samples)*2)
	for i, s := range samples {
		v := math.Round(float64(s) * Scale)
		v = max(math.MinInt16, min(math.MaxInt16, v))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

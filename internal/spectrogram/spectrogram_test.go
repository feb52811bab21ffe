package spectrogram

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	return Params{SampleRate: 24000, NFFT: 1024, HopLength: 256, NMels: 128, FloorDB: -80}
}

func sine(n int, freq, sampleRate, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/sampleRate))
	}
	return out
}

func TestMelScaleRoundTrip(t *testing.T) {
	assert.InDelta(t, 15.0, HzToMel(1000), 1e-9)
	for _, hz := range []float64{0, 100, 999, 1000, 4000, 12000} {
		assert.InDelta(t, hz, MelToHz(HzToMel(hz)), 1e-6)
	}
}

func TestMelFilterBank(t *testing.T) {
	fb, err := NewMelFilterBank(24000, 1024, 128, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 128, fb.Bands())
	assert.Equal(t, 513, fb.Bins())

	for m := range fb.Bands() {
		var nonZero int
		for _, w := range fb.Weights(m) {
			require.GreaterOrEqual(t, w, 0.0)
			if w > 0 {
				nonZero++
			}
		}
		assert.Positive(t, nonZero, "band %d is empty", m)
	}

	_, err = NewMelFilterBank(24000, 1024, 128, 5000, 1000)
	assert.Error(t, err)
}

func TestWindowerWaitsForFullWindow(t *testing.T) {
	w, err := NewWindower(testParams())
	require.NoError(t, err)
	assert.Equal(t, 768, w.Pending())

	assert.Empty(t, w.Process(make([]float32, 255)))
	assert.Equal(t, 1023, w.Pending())

	cols := w.Process(make([]float32, 1))
	require.Len(t, cols, 1)
	assert.Equal(t, 768, w.Pending())
}

func TestWindowerSilenceHitsFloor(t *testing.T) {
	w, err := NewWindower(testParams())
	require.NoError(t, err)

	cols := w.Process(make([]float32, 1024))
	require.Len(t, cols, 4)
	for _, col := range cols {
		require.Len(t, col, 128)
		for _, v := range col {
			assert.Equal(t, -80.0, v)
		}
	}
}

func TestWindowerChunkingIndependence(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	stream := make([]float32, 24000)
	for i := range stream {
		stream[i] = float32(rng.Float64()*2 - 1)
	}

	whole, err := NewWindower(testParams())
	require.NoError(t, err)
	want := whole.Process(stream)

	pieces, err := NewWindower(testParams())
	require.NoError(t, err)
	var got [][]float64
	for rest := stream; len(rest) > 0; {
		n := min(len(rest), 1+rng.IntN(900))
		got = append(got, pieces.Process(rest[:n])...)
		rest = rest[n:]
	}

	require.Len(t, got, len(want))
	for i := range want {
		require.Equal(t, want[i], got[i], "column %d differs", i)
	}
	assert.Equal(t, whole.Pending(), pieces.Pending())
}

func TestWindowerTonePeaksInMatchingBand(t *testing.T) {
	p := testParams()
	w, err := NewWindower(p)
	require.NoError(t, err)
	fb, err := NewMelFilterBank(p.SampleRate, p.NFFT, p.NMels, 0, 0)
	require.NoError(t, err)

	cols := w.Process(sine(4096, 3000, 24000, 0.5))
	require.NotEmpty(t, cols)
	last := cols[len(cols)-1]

	peak := 0
	for m, v := range last {
		if v > last[peak] {
			peak = m
		}
	}
	bin := int(math.Round(3000 * 1024 / 24000.0))
	assert.Positive(t, fb.Weights(peak)[bin], "peak band %d does not cover 3 kHz", peak)
}

func TestWindowerColumnsArePowerDB(t *testing.T) {
	p := Params{SampleRate: 24000, NFFT: 512, HopLength: 128, NMels: 64, FloorDB: -80}

	peakOf := func(amp float64) (band int, db float64) {
		w, err := NewWindower(p)
		require.NoError(t, err)
		cols := w.Process(sine(4096, 1000, 24000, amp))
		require.NotEmpty(t, cols)
		last := cols[len(cols)-1]
		for m, v := range last {
			if v > last[band] {
				band = m
			}
		}
		return band, last[band]
	}

	quietBand, quiet := peakOf(0.25)
	loudBand, loud := peakOf(0.5)
	require.Equal(t, quietBand, loudBand)
	// Doubling the amplitude quadruples the power.
	assert.InDelta(t, 10*math.Log10(4), loud-quiet, 1e-6)
}

func TestWindowerUsesPeriodicHann(t *testing.T) {
	w, err := NewWindower(testParams())
	require.NoError(t, err)

	assert.Equal(t, PeriodicHann(1024), w.window)
	assert.InDelta(t, 0, w.window[0], 1e-12)
	assert.InDelta(t, 1, w.window[512], 1e-12)
	assert.Greater(t, w.window[1023], 0.0)
}

func TestImageRollsAndNormalizes(t *testing.T) {
	img := NewImage(2, 3, -80)
	assert.Equal(t, [][]float64{{0, 0, 0}, {0, 0, 0}}, img.Normalized())

	img.Push([]float64{-40, 0}, []float64{-80, -20})
	img.Push([]float64{10, -100}, []float64{1, 2, 3})
	img.Push([]float64{-60, -60})

	assert.Equal(t, [][]float64{{-80, 10, -60}, {-20, -100, -60}}, img.Snapshot())
	assert.Equal(t, [][]float64{{0, 1, 0.25}, {0.75, 0, 0.25}}, img.Normalized())

	img.Reset()
	assert.Equal(t, [][]float64{{-80, -80, -80}, {-80, -80, -80}}, img.Snapshot())
}

func TestComputeSpectrumPeak(t *testing.T) {
	samples := sine(2048, 1500, 24000, 0.8)
	for i := range samples {
		samples[i] += 0.3 // DC offset is removed
	}

	spec := ComputeSpectrum(samples, 24000, 1024)
	require.Len(t, spec.Magnitudes, 513)
	require.Len(t, spec.Frequencies, 513)

	peak := 0
	for i, v := range spec.Magnitudes {
		if v > spec.Magnitudes[peak] {
			peak = i
		}
	}
	assert.InDelta(t, 1500, spec.Frequencies[peak], 24000.0/1024)
	assert.Less(t, spec.Magnitudes[0], spec.Magnitudes[peak]/100)

	assert.Len(t, ComputeSpectrum(nil, 24000, 1024).Magnitudes, 513)
}

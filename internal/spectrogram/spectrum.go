package spectrogram

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// Spectrum is an instantaneous magnitude spectrum.
type Spectrum struct {
	Frequencies []float64 `json:"frequencies"`
	Magnitudes  []float64 `json:"magnitudes"`
}

// ComputeSpectrum returns the Hann-windowed magnitude spectrum of the last
// size samples, mean removed. Shorter input is zero padded at the end.
func ComputeSpectrum(samples []float32, sampleRate, size int) Spectrum {
	if size < 2 {
		return Spectrum{}
	}

	buf := make([]float64, size)
	if len(samples) > size {
		samples = samples[len(samples)-size:]
	}
	for i, s := range samples {
		buf[i] = float64(s)
	}
	if len(samples) > 0 {
		mean := stat.Mean(buf[:len(samples)], nil)
		for i := range samples {
			buf[i] -= mean
		}
	}

	win := SymmetricHann(size)
	for i := range buf {
		buf[i] *= win[i]
	}

	coeffs := fourier.NewFFT(size).Coefficients(nil, buf)
	out := Spectrum{
		Frequencies: make([]float64, len(coeffs)),
		Magnitudes:  make([]float64, len(coeffs)),
	}
	for i, c := range coeffs {
		out.Frequencies[i] = float64(i) * float64(sampleRate) / float64(size)
		out.Magnitudes[i] = cmplx.Abs(c)
	}
	return out
}

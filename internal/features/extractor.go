package features

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/sawring/sawring/internal/conf"
	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/spectrogram"
)

// melScale gives PCEN's smoother numerical headroom.
const melScale = 1 << 20

// Extractor computes PCEN tensors of shape (1, 1, n_mels, fixed_width).
// It reuses scratch buffers and is not safe for concurrent use.
type Extractor struct {
	settings   conf.FeatureSettings
	sampleRate int

	window []float64
	fft    *fourier.FFT
	mel    *spectrogram.MelFilterBank

	frame  []float64
	coeffs []complex128
	mag    []float64
}

// NewExtractor creates an extractor for the given feature settings.
func NewExtractor(sampleRate int, s conf.FeatureSettings) (*Extractor, error) {
	if s.NFFT < 2 || s.HopLength <= 0 || s.FixedWidth <= 0 {
		return nil, errors.Newf("invalid feature extractor parameters").
			Component("features").
			Category(errors.CategoryValidation).
			Context("n_fft", s.NFFT).
			Context("hop_length", s.HopLength).
			Context("fixed_width", s.FixedWidth).
			Build()
	}
	mel, err := spectrogram.NewMelFilterBank(sampleRate, s.NFFT, s.NMels, 0, 0)
	if err != nil {
		return nil, err
	}
	bins := s.NFFT/2 + 1
	return &Extractor{
		settings:   s,
		sampleRate: sampleRate,
		window:     spectrogram.PeriodicHann(s.NFFT),
		fft:        fourier.NewFFT(s.NFFT),
		mel:        mel,
		frame:      make([]float64, s.NFFT),
		coeffs:     make([]complex128, bins),
		mag:        make([]float64, bins),
	}, nil
}

// Shape returns the tensor shape produced by Extract.
func (e *Extractor) Shape() []int {
	return []int{1, 1, e.settings.NMels, e.settings.FixedWidth}
}

// Extract converts a window of samples into a PCEN tensor. An empty window
// is a degenerate input and the caller should skip the tick.
func (e *Extractor) Extract(samples []float32) (Tensor, error) {
	if len(samples) == 0 {
		return Tensor{}, errors.Newf("no samples for feature window").
			Component("features").
			Category(errors.CategoryFeatureDegenerate).
			Context("n_fft", e.settings.NFFT).
			Build()
	}

	rows := e.pcenRows(samples)
	return e.shape(rows), nil
}

// pcenRows returns the full PCEN matrix rows[mel][time] before padding or
// trimming.
func (e *Extractor) pcenRows(samples []float32) [][]float64 {
	y := make([]float64, max(len(samples), e.settings.NFFT))
	for i, s := range samples {
		y[i] = float64(s)
	}
	if e.settings.RemoveDC {
		mean := stat.Mean(y[:len(samples)], nil)
		for i := range samples {
			y[i] -= mean
		}
	}

	rows := e.melSpectrogram(y)
	p := e.settings.PCEN
	PCEN(rows, e.sampleRate, e.settings.HopLength, p.TimeConstant, p.Gain, p.Bias, p.Power, p.Eps)
	return rows
}

// melSpectrogram computes a centered, zero-padded amplitude mel spectrogram
// scaled by melScale.
func (e *Extractor) melSpectrogram(y []float64) [][]float64 {
	nFFT, hop := e.settings.NFFT, e.settings.HopLength
	half := nFFT / 2
	frames := 1 + len(y)/hop

	rows := make([][]float64, e.mel.Bands())
	for m := range rows {
		rows[m] = make([]float64, frames)
	}

	bands := make([]float64, e.mel.Bands())
	for f := range frames {
		start := f*hop - half
		for i := range e.frame {
			j := start + i
			if j < 0 || j >= len(y) {
				e.frame[i] = 0
				continue
			}
			e.frame[i] = y[j] * e.window[i]
		}
		e.coeffs = e.fft.Coefficients(e.coeffs, e.frame)
		for i, c := range e.coeffs {
			e.mag[i] = cmplx.Abs(c)
		}
		bands = e.mel.Apply(bands, e.mag)
		for m, v := range bands {
			rows[m][f] = v * melScale
		}
	}
	return rows
}

// shape pads with the matrix minimum or trims to FixedWidth and flattens.
func (e *Extractor) shape(rows [][]float64) Tensor {
	nMels, width := len(rows), e.settings.FixedWidth
	frames := len(rows[0])

	offset := 0
	if frames > width && e.settings.Trim != conf.TrimKeepEarliest {
		offset = frames - width
	}

	fill := rows[0][0]
	for _, row := range rows {
		for _, v := range row {
			fill = min(fill, v)
		}
	}

	out := Tensor{
		Shape: []int{1, 1, nMels, width},
		Data:  make([]float32, nMels*width),
	}
	for m, row := range rows {
		dst := out.Data[m*width : (m+1)*width]
		for t := range dst {
			src := offset + t
			if src < frames {
				dst[t] = float32(row[src])
			} else {
				dst[t] = float32(fill)
			}
		}
	}
	return out
}

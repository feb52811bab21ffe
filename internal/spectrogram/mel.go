package spectrogram

import (
	"math"

	"gonum.org/v1/gonum/dsp/window"

	"github.com/sawring/sawring/internal/errors"
)

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSp       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSp
)

var melLogStep = math.Log(6.4) / 27.0

// HzToMel converts a frequency to the Slaney mel scale.
func HzToMel(hz float64) float64 {
	if hz >= melMinLogHz {
		return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
	}
	return hz / melFSp
}

// MelToHz is the inverse of HzToMel.
func MelToHz(mel float64) float64 {
	if mel >= melMinLogMel {
		return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
	}
	return mel * melFSp
}

// MelFilterBank is a triangular, area-normalized filter bank mapping
// nFFT/2+1 magnitude bins onto NMels bands.
type MelFilterBank struct {
	weights [][]float64
	lo, hi  []int // non-zero bin range per band, hi exclusive
	bins    int
}

// NewMelFilterBank builds the filter bank. fmax <= 0 means Nyquist.
func NewMelFilterBank(sampleRate, nFFT, nMels int, fmin, fmax float64) (*MelFilterBank, error) {
	if fmax <= 0 {
		fmax = float64(sampleRate) / 2
	}
	if sampleRate <= 0 || nFFT <= 0 || nMels <= 0 || fmin < 0 || fmin >= fmax {
		return nil, errors.Newf("invalid mel filter bank parameters").
			Component("spectrogram").
			Category(errors.CategoryValidation).
			Context("sample_rate", sampleRate).
			Context("n_fft", nFFT).
			Context("n_mels", nMels).
			Context("fmin", fmin).
			Context("fmax", fmax).
			Build()
	}

	bins := nFFT/2 + 1
	fftFreqs := make([]float64, bins)
	for i := range fftFreqs {
		fftFreqs[i] = float64(i) * float64(sampleRate) / float64(nFFT)
	}

	minMel, maxMel := HzToMel(fmin), HzToMel(fmax)
	edges := make([]float64, nMels+2)
	for i := range edges {
		edges[i] = MelToHz(minMel + (maxMel-minMel)*float64(i)/float64(nMels+1))
	}

	fb := &MelFilterBank{
		weights: make([][]float64, nMels),
		lo:      make([]int, nMels),
		hi:      make([]int, nMels),
		bins:    bins,
	}
	for m := range nMels {
		row := make([]float64, bins)
		lower, center, upper := edges[m], edges[m+1], edges[m+2]
		enorm := 2.0 / (upper - lower)
		fb.lo[m], fb.hi[m] = bins, 0
		for k, f := range fftFreqs {
			rising := (f - lower) / (center - lower)
			falling := (upper - f) / (upper - center)
			w := math.Max(0, math.Min(rising, falling))
			if w == 0 {
				continue
			}
			row[k] = w * enorm
			fb.lo[m] = min(fb.lo[m], k)
			fb.hi[m] = max(fb.hi[m], k+1)
		}
		fb.weights[m] = row
	}
	return fb, nil
}

// Bands returns the number of mel bands.
func (fb *MelFilterBank) Bands() int {
	return len(fb.weights)
}

// Bins returns the expected magnitude spectrum length.
func (fb *MelFilterBank) Bins() int {
	return fb.bins
}

// Weights returns the weight row for band m. The slice must not be modified.
func (fb *MelFilterBank) Weights(m int) []float64 {
	return fb.weights[m]
}

// Apply projects a magnitude or power spectrum onto the mel bands, writing
// into dst when it has room.
func (fb *MelFilterBank) Apply(dst, mag []float64) []float64 {
	if cap(dst) < len(fb.weights) {
		dst = make([]float64, len(fb.weights))
	}
	dst = dst[:len(fb.weights)]
	for m, row := range fb.weights {
		var sum float64
		for k := fb.lo[m]; k < fb.hi[m] && k < len(mag); k++ {
			sum += row[k] * mag[k]
		}
		dst[m] = sum
	}
	return dst
}

// SymmetricHann returns an n-point Hann window whose end points are zero.
func SymmetricHann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return window.Hann(w)
}

// PeriodicHann returns the n-point Hann window used for STFT analysis, the
// first n points of an n+1 point symmetric window.
func PeriodicHann(n int) []float64 {
	return SymmetricHann(n + 1)[:n]
}

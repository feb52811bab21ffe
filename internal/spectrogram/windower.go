package spectrogram

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/sawring/sawring/internal/errors"
)

// minPower keeps log10 finite for silent bands.
const minPower = 1e-10

// Params describe one spectrogram analysis.
type Params struct {
	SampleRate int
	NFFT       int
	HopLength  int
	NMels      int
	FMin       float64
	FMax       float64 // 0 means Nyquist
	FloorDB    float64 // absolute floor, e.g. -80
}

func (p Params) validate() error {
	if p.NFFT < 2 || p.HopLength <= 0 || p.HopLength > p.NFFT {
		return errors.Newf("hop length must be in (0, n_fft] and n_fft >= 2").
			Component("spectrogram").
			Category(errors.CategoryValidation).
			Context("n_fft", p.NFFT).
			Context("hop_length", p.HopLength).
			Build()
	}
	return nil
}

// Windower turns a stream of samples into log-mel columns, one per hop,
// using valid framing and a carried-over overlap so that the columns do not
// depend on how the stream was chunked.
type Windower struct {
	params  Params
	window  []float64
	fft     *fourier.FFT
	mel     *MelFilterBank
	pending []float64

	frame  []float64
	coeffs []complex128
	power  []float64
}

// NewWindower creates a windower whose overlap tail starts as n_fft-hop zeros.
func NewWindower(p Params) (*Windower, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	mel, err := NewMelFilterBank(p.SampleRate, p.NFFT, p.NMels, p.FMin, p.FMax)
	if err != nil {
		return nil, err
	}
	return &Windower{
		params:  p,
		window:  PeriodicHann(p.NFFT),
		fft:     fourier.NewFFT(p.NFFT),
		mel:     mel,
		pending: make([]float64, p.NFFT-p.HopLength, 2*p.NFFT),
		frame:   make([]float64, p.NFFT),
		coeffs:  make([]complex128, p.NFFT/2+1),
		power:   make([]float64, p.NFFT/2+1),
	}, nil
}

// Params returns the analysis parameters.
func (w *Windower) Params() Params {
	return w.params
}

// Pending returns how many samples are buffered for the next window.
func (w *Windower) Pending() int {
	return len(w.pending)
}

// Process appends chunk and returns every column that became complete,
// oldest first. With fewer than n_fft samples buffered nothing is emitted.
func (w *Windower) Process(chunk []float32) [][]float64 {
	for _, s := range chunk {
		w.pending = append(w.pending, float64(s))
	}

	var cols [][]float64
	start := 0
	for start+w.params.NFFT <= len(w.pending) {
		cols = append(cols, w.column(w.pending[start:start+w.params.NFFT]))
		start += w.params.HopLength
	}

	// The next window starts at start, so everything from there is the
	// overlap tail plus the unconsumed remainder.
	if start > 0 {
		n := copy(w.pending, w.pending[start:])
		w.pending = w.pending[:n]
	}
	return cols
}

// Reset restores the zero overlap tail.
func (w *Windower) Reset() {
	w.pending = w.pending[:w.params.NFFT-w.params.HopLength]
	clear(w.pending)
}

func (w *Windower) column(samples []float64) []float64 {
	for i, s := range samples {
		w.frame[i] = s * w.window[i]
	}
	w.coeffs = w.fft.Coefficients(w.coeffs, w.frame)
	for i, c := range w.coeffs {
		a := cmplx.Abs(c)
		w.power[i] = a * a
	}

	col := w.mel.Apply(nil, w.power)
	for i, v := range col {
		col[i] = ToDB(v, w.params.FloorDB)
	}
	return col
}

// ToDB converts a power value to decibels relative to 1.0 with an absolute
// floor.
func ToDB(v, floorDB float64) float64 {
	return math.Max(10*math.Log10(math.Max(minPower, v)), floorDB)
}

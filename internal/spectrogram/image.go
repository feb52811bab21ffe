package spectrogram

// Image is the rolling n_mels x time_steps display grid. Columns are evicted
// oldest first, like the waveform buffer. Not safe for concurrent use.
type Image struct {
	cols    [][]float64
	next    int
	nMels   int
	floorDB float64
}

// NewImage returns an image filled with the dB floor.
func NewImage(nMels, timeSteps int, floorDB float64) *Image {
	img := &Image{
		cols:    make([][]float64, max(1, timeSteps)),
		nMels:   nMels,
		floorDB: floorDB,
	}
	for i := range img.cols {
		img.cols[i] = img.blank()
	}
	return img
}

func (img *Image) blank() []float64 {
	col := make([]float64, img.nMels)
	for i := range col {
		col[i] = img.floorDB
	}
	return col
}

// TimeSteps returns the image width.
func (img *Image) TimeSteps() int {
	return len(img.cols)
}

// Push appends columns, evicting the oldest. Columns of the wrong height are
// ignored.
func (img *Image) Push(cols ...[]float64) {
	for _, c := range cols {
		if len(c) != img.nMels {
			continue
		}
		copy(img.cols[img.next], c)
		img.next = (img.next + 1) % len(img.cols)
	}
}

// Snapshot returns the grid in dB as rows[mel][time], oldest column first.
func (img *Image) Snapshot() [][]float64 {
	return img.render(func(v float64) float64 { return v })
}

// Normalized returns the grid mapped from [floor, 0] dB onto [0, 1].
func (img *Image) Normalized() [][]float64 {
	span := -img.floorDB
	if span <= 0 {
		span = 1
	}
	return img.render(func(v float64) float64 {
		return min(1, max(0, (v-img.floorDB)/span))
	})
}

func (img *Image) render(f func(float64) float64) [][]float64 {
	steps := len(img.cols)
	rows := make([][]float64, img.nMels)
	for m := range rows {
		rows[m] = make([]float64, steps)
	}
	for t := range steps {
		col := img.cols[(img.next+t)%steps]
		for m, v := range col {
			rows[m][t] = f(v)
		}
	}
	return rows
}

// Reset fills the image with the floor again.
func (img *Image) Reset() {
	for _, c := range img.cols {
		for i := range c {
			c[i] = img.floorDB
		}
	}
	img.next = 0
}

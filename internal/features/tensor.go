// Package features builds the fixed-shape PCEN tensor fed to the classifier.
package features

// Tensor is a dense float32 array in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

// At returns the value at mel band m and time column t of a (1,1,mels,width)
// tensor.
func (t Tensor) At(m, col int) float32 {
	return t.Data[m*t.Shape[3]+col]
}

// Len returns the number of elements implied by Shape.
func (t Tensor) Len() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

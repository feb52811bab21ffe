// Package waveform holds the rolling time-domain history used for display
// and as the source window for feature extraction.
package waveform

// RingBuffer is a fixed-length circular history of normalized samples.
// Index 0 of every snapshot is the oldest retained sample. It is owned by
// the pipeline consumer and is not safe for concurrent use.
type RingBuffer struct {
	data  []float32
	write int // next write position, which is also the oldest sample
	total uint64
}

// New returns a zero-filled buffer of the given capacity.
func New(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer{data: make([]float32, capacity)}
}

// Capacity returns the constant length of the buffer.
func (r *RingBuffer) Capacity() int {
	return len(r.data)
}

// Total returns how many samples have been pushed since creation.
func (r *RingBuffer) Total() uint64 {
	return r.total
}

// Push appends samples, evicting the oldest. When the chunk is at least as
// long as the buffer only its most recent samples are kept.
func (r *RingBuffer) Push(samples []float32) {
	r.total += uint64(len(samples))
	c := len(r.data)
	if len(samples) >= c {
		copy(r.data, samples[len(samples)-c:])
		r.write = 0
		return
	}

	n := copy(r.data[r.write:], samples)
	if n < len(samples) {
		copy(r.data, samples[n:])
	}
	r.write = (r.write + len(samples)) % c
}

// Snapshot returns a copy of the whole buffer, oldest first.
func (r *RingBuffer) Snapshot() []float32 {
	return r.Latest(len(r.data))
}

// Latest returns a copy of the n most recent samples, oldest first. n is
// clamped to the capacity.
func (r *RingBuffer) Latest(n int) []float32 {
	c := len(r.data)
	n = max(0, min(n, c))
	out := make([]float32, n)
	start := (r.write - n + c) % c
	k := copy(out, r.data[start:])
	if k < n {
		copy(out[k:], r.data[:r.write])
	}
	return out
}

// Reset zero-fills the buffer.
func (r *RingBuffer) Reset() {
	clear(r.data)
	r.write = 0
	r.total = 0
}

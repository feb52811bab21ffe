// Package frame turns the raw byte stream of a transport into fixed-size PCM
// frames and normalized float samples.
package frame

import (
	"github.com/smallnest/ringbuffer"

	"github.com/sawring/sawring/internal/errors"
)

// RawFrame is exactly one frame of little-endian signed 16-bit PCM.
type RawFrame []byte

// pendingFrames is how many frames the pending buffer can hold; one is
// enough for correctness, the rest lets a large read be absorbed without
// extra copy rounds.
const pendingFrames = 4

// Assembler accumulates bytes into fixed-size frames. It is not safe for
// concurrent use; the pipeline consumer owns it.
type Assembler struct {
	frameSize int
	pending   *ringbuffer.RingBuffer
	fed       uint64
	emitted   uint64
}

// NewAssembler creates an assembler emitting frames of frameSize bytes.
func NewAssembler(frameSize int) (*Assembler, error) {
	if frameSize <= 0 || frameSize%2 != 0 {
		return nil, errors.Newf("frame size must be a positive multiple of 2, got %d", frameSize).
			Component("frame").
			Category(errors.CategoryValidation).
			Build()
	}
	return &Assembler{
		frameSize: frameSize,
		pending:   ringbuffer.New(frameSize * pendingFrames),
	}, nil
}

// FrameSize returns the configured frame length in bytes.
func (a *Assembler) FrameSize() int {
	return a.frameSize
}

// Feed appends b and returns every complete frame, oldest first. Bytes that
// do not fill a frame stay pending for the next call.
//
// While nothing is pending, whole frames are sliced out of b without
// copying, so returned frames may alias b.
func (a *Assembler) Feed(b []byte) []RawFrame {
	if len(b) == 0 {
		return nil
	}
	a.fed += uint64(len(b))

	var frames []RawFrame
	for len(b) > 0 {
		if a.pending.Length() == 0 && len(b) >= a.frameSize {
			frames = append(frames, RawFrame(b[:a.frameSize:a.frameSize]))
			b = b[a.frameSize:]
			continue
		}

		n := min(len(b), a.pending.Free())
		written, err := a.pending.Write(b[:n])
		if err != nil && written == 0 {
			// Free() said there was room; a refusal means the buffer is corrupt.
			panic(errors.New(err).
				Component("frame").
				Category(errors.CategoryFramingViolation).
				Context("pending", a.pending.Length()).
				Context("free", a.pending.Free()).
				Build())
		}
		b = b[written:]

		for a.pending.Length() >= a.frameSize {
			f := make(RawFrame, a.frameSize)
			if _, err := a.pending.Read(f); err != nil {
				panic(errors.New(err).
					Component("frame").
					Category(errors.CategoryFramingViolation).
					Build())
			}
			frames = append(frames, f)
		}
	}

	a.emitted += uint64(len(frames) * a.frameSize)
	return frames
}

// Pending returns the number of bytes waiting for a complete frame.
func (a *Assembler) Pending() int {
	return a.pending.Length()
}

// Stats returns the total bytes fed and emitted as frames.
func (a *Assembler) Stats() (fed, emitted uint64) {
	return a.fed, a.emitted
}

// Reset drops pending bytes, used when a connection is re-established so
// a partial frame from the old connection is not glued to the new stream.
func (a *Assembler) Reset() {
	a.pending.Reset()
}

package sources

import (
	"context"
	"encoding/binary"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/logger"
)

// FileSource replays a 16-bit WAV recording as a PCM byte stream. Stereo
// files contribute their first channel. With realtime pacing the stream is
// delivered at the file's sample rate, otherwise as fast as it is read.
type FileSource struct {
	path       string
	sampleRate int
	readSize   int
	realtime   bool

	mu       sync.Mutex
	file     *os.File
	decoder  *wav.Decoder
	buf      *audio.IntBuffer
	channels int
	emitted  uint64
	started  time.Time
	done     chan struct{}
}

// NewFileSource returns an unopened WAV replay source.
func NewFileSource(path string, sampleRate, readSize int, realtime bool) *FileSource {
	return &FileSource{path: path, sampleRate: sampleRate, readSize: readSize, realtime: realtime}
}

func (s *FileSource) Name() string  { return "file" }
func (s *FileSource) ReadSize() int { return s.readSize }

// Connect opens and validates the WAV file.
func (s *FileSource) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return connectError(s.Name(), err)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return connectError(s.Name(), err, "path", s.path)
	}

	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		_ = f.Close()
		return s.formatError("input is not a valid WAV audio file")
	}
	if decoder.BitDepth != 16 {
		_ = f.Close()
		return s.formatError("only 16-bit PCM is supported")
	}
	if int(decoder.SampleRate) != s.sampleRate {
		_ = f.Close()
		return s.formatError("sample rate does not match the configured stream rate")
	}
	if decoder.NumChans < 1 {
		_ = f.Close()
		return s.formatError("no audio channels")
	}

	channels := int(decoder.NumChans)
	frames := max(1, s.readSize/2)
	s.mu.Lock()
	s.file, s.decoder, s.channels = f, decoder, channels
	s.buf = &audio.IntBuffer{
		Data:   make([]int, frames*channels),
		Format: &audio.Format{SampleRate: s.sampleRate, NumChannels: channels},
	}
	s.emitted = 0
	s.started = time.Now()
	s.done = make(chan struct{})
	s.mu.Unlock()

	GetLogger().Info("replaying WAV file",
		logger.String("source", s.Name()),
		logger.String("path", s.path),
		logger.Int("channels", channels),
		logger.Bool("realtime", s.realtime))
	return nil
}

func (s *FileSource) formatError(msg string) error {
	return errors.Newf("%s", msg).
		Component("sources").
		Category(errors.CategoryAudioSource).
		Context("path", s.path).
		Context("expected_sample_rate", s.sampleRate).
		Build()
}

// Read decodes the next block. It returns io.EOF at the end of the file.
func (s *FileSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	decoder, buf, channels, done := s.decoder, s.buf, s.channels, s.done
	s.mu.Unlock()
	if decoder == nil {
		return 0, io.EOF
	}

	frames := min(len(p)/2, len(buf.Data)/channels)
	if frames == 0 {
		return 0, nil
	}
	view := &audio.IntBuffer{Data: buf.Data[:frames*channels], Format: buf.Format}
	n, err := decoder.PCMBuffer(view)
	if err != nil {
		return 0, lostError(s.Name(), err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	out := 0
	for i := 0; i+channels <= n; i += channels {
		binary.LittleEndian.PutUint16(p[out:], uint16(int16(view.Data[i]))) //nolint:gosec // G115: 16-bit source samples
		out += 2
	}

	if s.realtime {
		if err := s.pace(uint64(out), done); err != nil {
			return out, err
		}
	}
	return out, nil
}

// pace sleeps until the wall clock catches up with the replayed audio.
func (s *FileSource) pace(n uint64, done <-chan struct{}) error {
	s.mu.Lock()
	s.emitted += n
	due := s.started.Add(time.Duration(float64(s.emitted) / float64(s.sampleRate*2) * float64(time.Second)))
	s.mu.Unlock()

	wait := time.Until(due)
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-done:
		return io.EOF
	}
}

// Close closes the file and interrupts pacing.
func (s *FileSource) Close() error {
	s.mu.Lock()
	f, done := s.file, s.done
	s.file, s.decoder, s.done = nil, nil, nil
	s.mu.Unlock()

	if done != nil {
		close(done)
	}
	if f == nil {
		return nil
	}
	return f.Close()
}

package sources

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/logger"
)

// SoundcardSource captures mono 16-bit PCM from a local audio device, used
// to exercise the pipeline with a contact microphone instead of the ring.
type SoundcardSource struct {
	deviceName  string
	sampleRate  int
	readSize    int
	readTimeout time.Duration

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	reader *chanReader
}

// NewSoundcardSource returns an unopened capture source. An empty device
// name selects the system default.
func NewSoundcardSource(deviceName string, sampleRate, readSize int, readTimeout time.Duration) *SoundcardSource {
	return &SoundcardSource{
		deviceName:  deviceName,
		sampleRate:  sampleRate,
		readSize:    readSize,
		readTimeout: readTimeout,
	}
}

func (s *SoundcardSource) Name() string  { return "soundcard" }
func (s *SoundcardSource) ReadSize() int { return s.readSize }

func captureBackends() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendAlsa}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return nil
	}
}

// Connect opens and starts the capture device.
func (s *SoundcardSource) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return connectError(s.Name(), err)
	}

	log := GetLogger()
	mctx, err := malgo.InitContext(captureBackends(), malgo.ContextConfig{}, func(msg string) {
		log.Debug("malgo", logger.String("message", strings.TrimSpace(msg)))
	})
	if err != nil {
		return connectError(s.Name(), err, "stage", "init_context")
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(s.sampleRate) //nolint:gosec // G115: validated sample rate
	cfg.Alsa.NoMMap = 1

	if s.deviceName != "" {
		infos, err := mctx.Devices(malgo.Capture)
		if err != nil {
			freeContext(mctx)
			return connectError(s.Name(), err, "stage", "list_devices")
		}
		var matched bool
		for i := range infos {
			if strings.Contains(strings.ToLower(infos[i].Name()), strings.ToLower(s.deviceName)) {
				cfg.Capture.DeviceID = infos[i].ID.Pointer()
				matched = true
				break
			}
		}
		if !matched {
			freeContext(mctx)
			return connectError(s.Name(), errors.NewStd("capture device not found"), "device", s.deviceName)
		}
	}

	reader := newChanReader(64, s.readTimeout)
	device, err := malgo.InitDevice(mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			reader.Deliver(input)
		},
		Stop: func() {
			reader.Fail(lostError(s.Name(), errors.NewStd("capture device stopped")))
		},
	})
	if err != nil {
		freeContext(mctx)
		return connectError(s.Name(), err, "stage", "init_device")
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		freeContext(mctx)
		return connectError(s.Name(), err, "stage", "start_device")
	}

	s.mu.Lock()
	s.ctx, s.device, s.reader = mctx, device, reader
	s.mu.Unlock()

	log.Info("capture device started",
		logger.String("source", s.Name()),
		logger.String("device", s.deviceName),
		logger.Int("sample_rate", s.sampleRate))
	return nil
}

func freeContext(c *malgo.AllocatedContext) {
	_ = c.Uninit()
	c.Free()
}

func (s *SoundcardSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	reader := s.reader
	s.mu.Unlock()
	if reader == nil {
		return 0, lostError(s.Name(), errors.NewStd("not connected"))
	}
	return reader.Read(p)
}

// Close stops the device and releases the audio context.
func (s *SoundcardSource) Close() error {
	s.mu.Lock()
	mctx, device, reader := s.ctx, s.device, s.reader
	s.ctx, s.device, s.reader = nil, nil, nil
	s.mu.Unlock()

	if reader != nil {
		reader.Close()
	}
	if device != nil {
		device.Uninit()
	}
	if mctx != nil {
		freeContext(mctx)
	}
	return nil
}

package sources

import (
	"context"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/logger"
)

// SerialSource reads PCM from the ring's USB serial port.
type SerialSource struct {
	portName    string
	baudRate    int
	readSize    int
	readTimeout time.Duration

	mu   sync.Mutex
	port serial.Port
}

// NewSerialSource returns an unopened serial source.
func NewSerialSource(portName string, baudRate, readSize int, readTimeout time.Duration) *SerialSource {
	return &SerialSource{
		portName:    portName,
		baudRate:    baudRate,
		readSize:    readSize,
		readTimeout: readTimeout,
	}
}

func (s *SerialSource) Name() string  { return "serial" }
func (s *SerialSource) ReadSize() int { return s.readSize }

// Connect opens the port and discards anything buffered before the open.
func (s *SerialSource) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return connectError(s.Name(), err, "port", s.portName)
	}

	port, err := serial.Open(s.portName, &serial.Mode{
		BaudRate: s.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return connectError(s.Name(), err, "port", s.portName, "baud_rate", s.baudRate)
	}
	if err := port.ResetInputBuffer(); err != nil {
		GetLogger().Warn("reset serial input buffer failed", logger.Error(err))
	}
	if s.readTimeout > 0 {
		if err := port.SetReadTimeout(s.readTimeout); err != nil {
			_ = port.Close()
			return connectError(s.Name(), err, "port", s.portName)
		}
	}

	s.mu.Lock()
	s.port = port
	s.mu.Unlock()

	GetLogger().Info("serial port opened",
		logger.String("source", s.Name()),
		logger.String("port", s.portName),
		logger.Int("baud_rate", s.baudRate))
	return nil
}

// Read returns (0, nil) when the read timeout expires without data.
func (s *SerialSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return 0, lostError(s.Name(), errors.NewStd("port closed"))
	}
	return port.Read(p)
}

// Close closes the port, unblocking Read.
func (s *SerialSource) Close() error {
	s.mu.Lock()
	port := s.port
	s.port = nil
	s.mu.Unlock()
	if port == nil {
		return nil
	}
	return port.Close()
}

// SerialPorts lists the serial ports present on the host.
func SerialPorts() ([]string, error) {
	return serial.GetPortsList()
}

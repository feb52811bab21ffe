package sources

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/logger"
)

// tcpReadSize matches the sensor bridge's send size.
const tcpReadSize = 4096

// TCPSource reads PCM from the ring's Wi-Fi bridge over a TCP stream.
type TCPSource struct {
	address        string
	noDelay        bool
	connectTimeout time.Duration
	readTimeout    time.Duration

	mu   sync.Mutex
	conn net.Conn
}

// NewTCPSource returns an unconnected TCP source.
func NewTCPSource(address string, noDelay bool, connectTimeout, readTimeout time.Duration) *TCPSource {
	return &TCPSource{
		address:        address,
		noDelay:        noDelay,
		connectTimeout: connectTimeout,
		readTimeout:    readTimeout,
	}
}

func (s *TCPSource) Name() string  { return "tcp" }
func (s *TCPSource) ReadSize() int { return tcpReadSize }

// Connect dials the bridge with the configured timeout.
func (s *TCPSource) Connect(ctx context.Context) error {
	d := net.Dialer{Timeout: s.connectTimeout}
	conn, err := d.DialContext(ctx, "tcp", s.address)
	if err != nil {
		return connectError(s.Name(), err, "address", s.address)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.SetNoDelay(s.noDelay); err != nil {
			GetLogger().Debug("set TCP_NODELAY failed", logger.Error(err))
		}
	}

	s.mu.Lock()
	prev := s.conn
	s.conn = conn
	s.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}

	GetLogger().Info("connected to sensor bridge",
		logger.String("source", s.Name()),
		logger.String("address", s.address),
		logger.Bool("no_delay", s.noDelay))
	return nil
}

func (s *TCPSource) current() net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Read reads with the configured deadline; a deadline without data is an
// idle tick.
func (s *TCPSource) Read(p []byte) (int, error) {
	conn := s.current()
	if conn == nil {
		return 0, lostError(s.Name(), errors.NewStd("not connected"))
	}
	if s.readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return 0, lostError(s.Name(), err)
		}
	}
	n, err := conn.Read(p)
	if err != nil && isTimeout(err) {
		return n, nil
	}
	return n, err
}

// Close closes the connection, unblocking Read.
func (s *TCPSource) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

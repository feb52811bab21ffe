package sources

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/sawring/sawring/internal/errors"
	"github.com/sawring/sawring/internal/logger"
)

// UDPSource receives PCM datagrams. Lost datagrams are accepted; the loss
// rate is estimated from the expected byte rate.
type UDPSource struct {
	listen        string
	readBuffer    int
	readSize      int
	readTimeout   time.Duration
	bytesPerSec   int
	lossThreshold float64

	mu    sync.Mutex
	conn  *net.UDPConn
	start time.Time

	received atomic.Uint64
	lossLog  *rate.Limiter
}

// NewUDPSource returns an unbound UDP source. bytesPerSec is the stream's
// nominal rate, sample rate times sample width.
func NewUDPSource(listen string, readBuffer, readSize int, readTimeout time.Duration, bytesPerSec int, lossThreshold float64) *UDPSource {
	return &UDPSource{
		listen:        listen,
		readBuffer:    readBuffer,
		readSize:      readSize,
		readTimeout:   readTimeout,
		bytesPerSec:   bytesPerSec,
		lossThreshold: lossThreshold,
		lossLog:       rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

func (s *UDPSource) Name() string  { return "udp" }
func (s *UDPSource) ReadSize() int { return s.readSize }

// Connect binds the listen address, releasing any socket left from an
// earlier connection first.
func (s *UDPSource) Connect(ctx context.Context) error {
	if err := s.Close(); err != nil {
		GetLogger().Debug("close stale socket", logger.Error(err))
	}

	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", s.listen)
	if err != nil {
		return connectError(s.Name(), err, "listen", s.listen)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return connectError(s.Name(), errors.NewStd("not a UDP socket"), "listen", s.listen)
	}
	if s.readBuffer > 0 {
		if err := conn.SetReadBuffer(s.readBuffer); err != nil {
			GetLogger().Warn("set UDP receive buffer failed", logger.Error(err))
		}
	}

	s.mu.Lock()
	s.conn = conn
	s.start = time.Time{}
	s.mu.Unlock()
	s.received.Store(0)

	GetLogger().Info("listening for sensor datagrams",
		logger.String("source", s.Name()),
		logger.String("address", conn.LocalAddr().String()))
	return nil
}

// LocalAddr returns the bound address, or nil before Connect.
func (s *UDPSource) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Read returns the payload of one datagram.
func (s *UDPSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return 0, lostError(s.Name(), errors.NewStd("not connected"))
	}

	if s.readTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return 0, lostError(s.Name(), err)
		}
	}
	n, _, err := conn.ReadFromUDP(p)
	if err != nil {
		if isTimeout(err) {
			return 0, nil
		}
		return 0, err
	}

	s.mu.Lock()
	if s.start.IsZero() {
		s.start = time.Now()
	}
	s.mu.Unlock()
	s.received.Add(uint64(n))
	s.checkLoss()
	return n, nil
}

// LossRate estimates the fraction of the nominal stream that did not
// arrive since the first datagram.
func (s *UDPSource) LossRate() float64 {
	s.mu.Lock()
	start := s.start
	s.mu.Unlock()
	return lossRate(s.received.Load(), start, time.Now(), s.bytesPerSec)
}

func lossRate(received uint64, start, now time.Time, bytesPerSec int) float64 {
	if start.IsZero() || bytesPerSec <= 0 {
		return 0
	}
	expected := now.Sub(start).Seconds() * float64(bytesPerSec)
	if expected < float64(bytesPerSec) {
		// Less than a second of history is too noisy to judge.
		return 0
	}
	return max(0, 1-float64(received)/expected)
}

func (s *UDPSource) checkLoss() {
	if s.lossThreshold <= 0 || !s.lossLog.Allow() {
		return
	}
	if loss := s.LossRate(); loss > s.lossThreshold {
		GetLogger().Warn("high datagram loss",
			logger.String("source", s.Name()),
			logger.Float64("loss_rate", loss),
			logger.Float64("threshold", s.lossThreshold))
	}
}

// Close releases the socket, unblocking Read.
func (s *UDPSource) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

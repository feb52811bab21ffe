package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/sawring/sawring/internal/api/middleware"
	"github.com/sawring/sawring/internal/logger"
	"github.com/sawring/sawring/internal/observability"
	"github.com/sawring/sawring/internal/pipeline"
	"github.com/sawring/sawring/internal/spectrogram"
)

// Session is the read side of a running pipeline session.
type Session interface {
	Status() pipeline.Status
	Waveform() []float32
	Spectrogram(normalized bool) [][]float64
	Spectrum() spectrogram.Spectrum
	Display() pipeline.DisplayFrame
}

// Server is the HTTP API server.
type Server struct {
	echo    *echo.Echo
	config  *Config
	session Session
	recent  *RecentEvents
	metrics *observability.Metrics
	log     logger.Logger

	// Lifecycle management
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startTime time.Time
	listener  net.Listener
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithRecentEvents sets the store behind /api/v1/events.
func WithRecentEvents(r *RecentEvents) ServerOption {
	return func(s *Server) {
		s.recent = r
	}
}

// WithMetrics sets the registry served on /metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a server for session.
func New(config *Config, session Session, opts ...ServerOption) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if session == nil {
		return nil, fmt.Errorf("api server needs a session")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:    config,
		session:   session,
		log:       GetLogger(),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.recent == nil {
		s.recent = NewRecentEvents(config.RecentTTL)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Logger = newEchoLogger(s.log.Module("echo"))
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestLogger(s.log))
	s.echo.Use(mw.NewCORS(s.config.AllowedOrigins))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.getStatus)
	v1.GET("/waveform", s.getWaveform)
	v1.GET("/spectrogram", s.getSpectrogram)
	v1.GET("/spectrum", s.getSpectrum)
	v1.GET("/events", s.getEvents)
	v1.GET("/health", s.getHealth)

	s.echo.GET("/ws/display", s.streamDisplay)

	if s.config.MetricsEnabled && s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

// Recent returns the recent events store, to be registered on the bus.
func (s *Server) Recent() *RecentEvents {
	return s.recent
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Listen, err)
	}
	s.listener = ln
	s.echo.Listener = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server error", logger.Error(err))
		}
	}()

	s.log.Info("HTTP server started", logger.String("address", ln.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops websocket streams and waits for in-flight requests.
func (s *Server) Shutdown() error {
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	err := s.echo.Shutdown(ctx)
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}

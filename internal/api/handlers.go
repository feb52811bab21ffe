package api

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/sawring/sawring/internal/events"
	"github.com/sawring/sawring/internal/logger"
	"github.com/sawring/sawring/internal/sources"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HandleError logs err and replies with code.
func (s *Server) HandleError(c echo.Context, err error, message string, code int) error {
	s.log.Warn(message,
		logger.String("path", c.Path()),
		logger.Int("code", code),
		logger.Error(err))
	return c.JSON(code, ErrorResponse{
		Error:   err.Error(),
		Message: message,
		Code:    code,
	})
}

// WaveformResponse is the body of GET /api/v1/waveform.
type WaveformResponse struct {
	SampleRate int       `json:"sample_rate"`
	Samples    []float32 `json:"samples"`
}

// SpectrogramResponse is the body of GET /api/v1/spectrogram.
type SpectrogramResponse struct {
	Normalized bool        `json:"normalized"`
	Bands      int         `json:"bands"`
	Columns    int         `json:"columns"`
	Data       [][]float64 `json:"data"` // [mel][time]
}

// EventsResponse is the body of GET /api/v1/events.
type EventsResponse struct {
	Count  int            `json:"count"`
	Events []events.Event `json:"events"`
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status        string  `json:"status"`
	Source        string  `json:"source"`
	SourceState   string  `json:"source_state"`
	Classifier    bool    `json:"classifier_available"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Timestamp     string  `json:"timestamp"`
	MemoryUsage   float64 `json:"memory_usage_percent,omitempty"`
	ProcessMemMB  float64 `json:"process_memory_mb,omitempty"`
	ProcessCPU    float64 `json:"process_cpu_percent,omitempty"`
}

// getStatus handles GET /api/v1/status
func (s *Server) getStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.session.Status())
}

// getWaveform handles GET /api/v1/waveform
func (s *Server) getWaveform(c echo.Context) error {
	samples := s.session.Waveform()
	return c.JSON(http.StatusOK, WaveformResponse{
		SampleRate: s.config.SampleRate,
		Samples:    samples,
	})
}

// getSpectrogram handles GET /api/v1/spectrogram?normalized=true
func (s *Server) getSpectrogram(c echo.Context) error {
	normalized := false
	if v := c.QueryParam("normalized"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return s.HandleError(c, err, "Invalid normalized parameter", http.StatusBadRequest)
		}
		normalized = b
	}

	data := s.session.Spectrogram(normalized)
	resp := SpectrogramResponse{Normalized: normalized, Bands: len(data), Data: data}
	if len(data) > 0 {
		resp.Columns = len(data[0])
	}
	return c.JSON(http.StatusOK, resp)
}

// getSpectrum handles GET /api/v1/spectrum
func (s *Server) getSpectrum(c echo.Context) error {
	return c.JSON(http.StatusOK, s.session.Spectrum())
}

// getEvents handles GET /api/v1/events?limit=N&since=RFC3339
func (s *Server) getEvents(c echo.Context) error {
	limit := DefaultEventLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return s.HandleError(c, echo.ErrBadRequest, "limit must be a positive integer", http.StatusBadRequest)
		}
		limit = n
	}

	var since time.Time
	if v := c.QueryParam("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return s.HandleError(c, err, "since must be an RFC3339 timestamp", http.StatusBadRequest)
		}
		since = t
	}

	list := s.recent.List(limit, since)
	return c.JSON(http.StatusOK, EventsResponse{Count: len(list), Events: list})
}

// getHealth handles GET /api/v1/health. It reports 503 while the source is
// failed so that supervisors can restart the process.
func (s *Server) getHealth(c echo.Context) error {
	st := s.session.Status()
	resp := HealthResponse{
		Status:        "healthy",
		Source:        st.Source.Source,
		SourceState:   st.Source.State,
		Classifier:    st.ClassifierAvailable,
		UptimeSeconds: time.Since(s.startTime).Seconds(),
		Timestamp:     time.Now().Format(time.RFC3339),
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		resp.MemoryUsage = memInfo.UsedPercent
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if procMem, err := proc.MemoryInfo(); err == nil && procMem != nil {
			resp.ProcessMemMB = float64(procMem.RSS) / 1024 / 1024
		}
		resp.ProcessCPU, _ = proc.CPUPercent()
	}

	code := http.StatusOK
	switch st.Source.State {
	case sources.StateFailed.String():
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	case sources.StateLost.String(), sources.StateConnecting.String():
		resp.Status = "degraded"
	}
	if !st.ClassifierAvailable && resp.Status == "healthy" {
		resp.Status = "degraded"
	}
	return c.JSON(code, resp)
}

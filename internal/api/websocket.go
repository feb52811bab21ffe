package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/sawring/sawring/internal/logger"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	// Origins are enforced by the CORS middleware configuration.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// displayRate parses ?fps and clamps it to [1, MaxDisplayRate].
func displayRate(v string) int {
	if v == "" {
		return DefaultDisplayRate
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return DefaultDisplayRate
	}
	return min(max(n, 1), MaxDisplayRate)
}

// streamDisplay handles GET /ws/display?fps=N. It pushes one DisplayFrame
// JSON message per tick until the client goes away or the server stops.
func (s *Server) streamDisplay(c echo.Context) error {
	fps := displayRate(c.QueryParam("fps"))

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		s.log.Debug("websocket upgrade failed", logger.Error(err))
		return nil
	}
	defer conn.Close()

	log := s.log.With(logger.String("remote", c.RealIP()), logger.Int("fps", fps))
	log.Info("display client connected")
	defer log.Info("display client disconnected")

	// The reader only services control frames and detects the close.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	frames := time.NewTicker(time.Second / time.Duration(fps))
	defer frames.Stop()
	pings := time.NewTicker(pingPeriod)
	defer pings.Stop()

	for {
		select {
		case <-s.ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return nil
		case <-closed:
			return nil
		case <-pings.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		case <-frames.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(s.session.Display()); err != nil {
				log.Debug("display write failed", logger.Error(err))
				return nil
			}
		}
	}
}

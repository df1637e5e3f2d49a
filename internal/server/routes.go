package server

import (
	"net/http"
	"sort"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/middleware"
	"github.com/nfrund/relay/internal/relay"
)

type participantsResponse struct {
	Count int      `json:"count"`
	Names []string `json:"names"`
}

type healthResponse struct {
	Status       string        `json:"status"`
	Participants int           `json:"participants"`
	Subscribers  int           `json:"subscribers"`
	Events       *events.Stats `json:"events,omitempty"`
}

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	s.E.GET("/ws", s.handleWebSocket, middleware.RateLimiter(s.cfg.ConnectRate))
	s.E.GET("/participants", s.handleParticipants)
	s.E.GET("/healthz", s.handleHealth)
}

// handleWebSocket upgrades the request and serves the relay session on it
// until the connection ends.
func (s *Server) handleWebSocket(c echo.Context) error {
	opts := &websocket.AcceptOptions{}
	if len(s.cfg.AllowedOrigins) == 0 {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = s.cfg.AllowedOrigins
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), opts)
	if err != nil {
		// Accept has already written the failure response.
		middleware.FromContext(c.Request().Context()).Warn("WebSocket upgrade failed", "error", err)
		return nil
	}

	s.handler.Serve(s.ctx, relay.NewWebsocketConn(conn, c.Request().RemoteAddr, s.cfg.WriteTimeout))
	return nil
}

func (s *Server) handleParticipants(c echo.Context) error {
	names := s.registry.Identities()
	if names == nil {
		names = []string{}
	}
	sort.Strings(names)
	return c.JSON(http.StatusOK, participantsResponse{Count: len(names), Names: names})
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := healthResponse{
		Status:       "ok",
		Participants: s.registry.Len(),
		Subscribers:  s.channel.Subscribers(),
	}
	if s.auditor != nil {
		stats := s.auditor.Stats()
		resp.Events = &stats
	}
	return c.JSON(http.StatusOK, resp)
}

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/nfrund/relay/internal/broadcast"
	"github.com/nfrund/relay/internal/config"
	"github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/middleware"
	"github.com/nfrund/relay/internal/participant"
	"github.com/nfrund/relay/internal/relay"
)

// Dependencies holds everything the HTTP server exposes.
type Dependencies struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *participant.Registry
	Channel  *broadcast.Channel
	Handler  *relay.Handler
	Auditor  *events.Auditor
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	E        *echo.Echo
	cfg      *config.Config
	logger   *slog.Logger
	registry *participant.Registry
	channel  *broadcast.Channel
	handler  *relay.Handler
	auditor  *events.Auditor

	// ctx outlives individual requests and is canceled on shutdown so that
	// every relay session starts draining.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Server with its middleware chain and routes registered.
func New(deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			middleware.FromContext(c.Request().Context()).Debug("Request served",
				"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	setupErrorHandling(e)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		E:        e,
		cfg:      deps.Config,
		logger:   logger.With("component", "server"),
		registry: deps.Registry,
		channel:  deps.Channel,
		handler:  deps.Handler,
		auditor:  deps.Auditor,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.RegisterRoutes()
	return s
}

// setupErrorHandling logs unhandled errors with a stack trace. HTTP errors
// raised on purpose keep echo's default rendering.
func setupErrorHandling(e *echo.Echo) {
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			e.DefaultHTTPErrorHandler(err, c)
			return
		}

		middleware.FromContext(c.Request().Context()).Error("Internal Server Error (Unhandled)",
			"error", err.Error(),
			"path", c.Request().URL.Path,
			"stack_trace", string(debug.Stack()),
		)
		_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

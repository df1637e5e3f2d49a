// Package app wires the relay's components together in a dependency container.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/do/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/nfrund/relay/internal/broadcast"
	"github.com/nfrund/relay/internal/config"
	"github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/logging"
	"github.com/nfrund/relay/internal/participant"
	"github.com/nfrund/relay/internal/pubsub"
	"github.com/nfrund/relay/internal/relay"
	"github.com/nfrund/relay/internal/router"
	"github.com/nfrund/relay/internal/server"
)

// tracing is the bus tracer and the function that flushes it.
type tracing struct {
	tracer  trace.Tracer
	cleanup func()
}

// App is a fully wired relay process.
type App struct {
	injector do.Injector
	version  string
}

// New registers every relay service in a fresh container. Nothing is
// constructed until it is first needed.
func New(cfg *config.Config, version string) *App {
	i := do.New()

	do.ProvideValue(i, cfg)
	do.Provide(i, func(i do.Injector) (*slog.Logger, error) {
		c := do.MustInvoke[*config.Config](i)
		return logging.New(c.LogFormat, c.LogLevel), nil
	})
	do.Provide(i, func(i do.Injector) (*tracing, error) {
		c := do.MustInvoke[*config.Config](i)
		tracer, cleanup, err := pubsub.SetupOTel(context.Background(), c.Tracing, version)
		if err != nil {
			return nil, err
		}
		return &tracing{tracer: tracer, cleanup: cleanup}, nil
	})
	do.Provide(i, func(i do.Injector) (*pubsub.WatermillBridge, error) {
		t, err := do.Invoke[*tracing](i)
		if err != nil {
			return nil, fmt.Errorf("set up bus tracing: %w", err)
		}
		return pubsub.NewWatermillBridgeWithTracer(t.tracer), nil
	})
	do.Provide(i, func(i do.Injector) (*participant.Registry, error) {
		return participant.NewRegistry(), nil
	})
	do.Provide(i, func(i do.Injector) (*broadcast.Channel, error) {
		return broadcast.New(do.MustInvoke[*config.Config](i).HistorySize), nil
	})
	do.Provide(i, func(i do.Injector) (*events.Auditor, error) {
		return events.NewAuditor(do.MustInvoke[*slog.Logger](i)), nil
	})
	do.Provide(i, func(i do.Injector) (*router.Router, error) {
		return router.New(
			do.MustInvoke[*participant.Registry](i),
			do.MustInvoke[*broadcast.Channel](i),
			do.MustInvoke[*pubsub.WatermillBridge](i),
			do.MustInvoke[*slog.Logger](i),
		), nil
	})
	do.Provide(i, func(i do.Injector) (*relay.Handler, error) {
		return relay.NewHandler(relay.Dependencies{
			Registry:         do.MustInvoke[*participant.Registry](i),
			Broadcaster:      do.MustInvoke[*broadcast.Channel](i),
			Router:           do.MustInvoke[*router.Router](i),
			Bus:              do.MustInvoke[*pubsub.WatermillBridge](i),
			Logger:           do.MustInvoke[*slog.Logger](i),
			HandshakeTimeout: do.MustInvoke[*config.Config](i).HandshakeTimeout,
		}), nil
	})
	do.Provide(i, func(i do.Injector) (*server.Server, error) {
		return server.New(server.Dependencies{
			Config:   do.MustInvoke[*config.Config](i),
			Logger:   do.MustInvoke[*slog.Logger](i),
			Registry: do.MustInvoke[*participant.Registry](i),
			Channel:  do.MustInvoke[*broadcast.Channel](i),
			Handler:  do.MustInvoke[*relay.Handler](i),
			Auditor:  do.MustInvoke[*events.Auditor](i),
		}), nil
	})

	return &App{injector: i, version: version}
}

// Server returns the HTTP server, building it and its dependencies on first use.
func (a *App) Server() (*server.Server, error) {
	return do.Invoke[*server.Server](a.injector)
}

// Run serves on addr until ctx is canceled or the process is signalled.
func (a *App) Run(ctx context.Context, addr string) error {
	logger := do.MustInvoke[*slog.Logger](a.injector)
	bus, err := do.Invoke[*pubsub.WatermillBridge](a.injector)
	if err != nil {
		return err
	}
	defer do.MustInvoke[*tracing](a.injector).cleanup()
	defer func() {
		if err := bus.Close(); err != nil {
			logger.Warn("Failed to close event bus", "error", err)
		}
	}()

	catalog, err := events.DefaultCatalog()
	if err != nil {
		return fmt.Errorf("event catalog: %w", err)
	}
	for _, topic := range catalog.List() {
		logger.Debug("Observer bus topic", "topic", topic.Name, "description", topic.Description)
	}

	auditCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := do.MustInvoke[*events.Auditor](a.injector).Start(auditCtx, bus); err != nil {
		return fmt.Errorf("start auditor: %w", err)
	}

	srv, err := a.Server()
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	logger.Info("Starting relay", "version", a.version, "addr", addr)
	return srv.Start(ctx, addr)
}

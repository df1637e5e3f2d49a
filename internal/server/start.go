package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"time"
)

const shutdownTimeout = 10 * time.Second

// Start runs the HTTP server until an interrupt or terminate signal arrives
// or ctx is canceled, then shuts it down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Relay listening", "addr", addr)
		if err := s.E.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := waitForShutdown()
	defer signal.Stop(quit)
	select {
	case err := <-errCh:
		s.cancel()
		s.channel.Close()
		return fmt.Errorf("start server: %w", err)
	case sig := <-quit:
		s.logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("Shutdown requested", "reason", ctx.Err())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// waitForShutdown delivers the first interrupt or terminate signal. Callers
// release it with signal.Stop.
func waitForShutdown() chan os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	return quit
}

// Shutdown stops accepting connections, lets every relay session drain and
// closes the broadcast channel. Sessions still running when ctx expires are
// abandoned.
func (s *Server) Shutdown(ctx context.Context) error {
	// Upgraded connections are hijacked, so echo does not wait for them.
	if err := s.E.Shutdown(ctx); err != nil {
		s.logger.Warn("HTTP shutdown incomplete", "error", err)
	}

	s.cancel()
	waitErr := s.handler.Wait(ctx)
	s.channel.Close()

	if waitErr != nil {
		return fmt.Errorf("drain relay sessions: %w", waitErr)
	}
	s.logger.Info("Relay stopped")
	return nil
}

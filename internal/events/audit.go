package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/nfrund/relay/internal/pubsub"
)

// Stats are running totals of observed lifecycle events.
type Stats struct {
	Joined   uint64 `json:"joined"`
	Left     uint64 `json:"left"`
	Commands uint64 `json:"commands"`
}

// Auditor logs every lifecycle event and keeps totals for health reporting.
type Auditor struct {
	logger   *slog.Logger
	joined   atomic.Uint64
	left     atomic.Uint64
	commands atomic.Uint64
}

// NewAuditor creates an Auditor writing to logger.
func NewAuditor(logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{logger: logger.With("component", "audit")}
}

// Start subscribes the auditor to all lifecycle topics.
func (a *Auditor) Start(ctx context.Context, sub pubsub.Subscriber) error {
	if err := pubsub.Subscribe(ctx, sub, ParticipantJoined, a.onJoined); err != nil {
		return fmt.Errorf("audit %s: %w", ParticipantJoined.Name(), err)
	}
	if err := pubsub.Subscribe(ctx, sub, ParticipantLeft, a.onLeft); err != nil {
		return fmt.Errorf("audit %s: %w", ParticipantLeft.Name(), err)
	}
	if err := pubsub.Subscribe(ctx, sub, CommandReceived, a.onCommand); err != nil {
		return fmt.Errorf("audit %s: %w", CommandReceived.Name(), err)
	}
	return nil
}

// Stats returns the current totals.
func (a *Auditor) Stats() Stats {
	return Stats{
		Joined:   a.joined.Load(),
		Left:     a.left.Load(),
		Commands: a.commands.Load(),
	}
}

func (a *Auditor) onJoined(_ context.Context, _ pubsub.Message, p Participant) error {
	a.joined.Add(1)
	a.logger.Info("Participant joined", "session", p.SessionID, "conn", p.ConnectionKey, "identity", p.Identity)
	return nil
}

func (a *Auditor) onLeft(_ context.Context, _ pubsub.Message, p Participant) error {
	a.left.Add(1)
	a.logger.Info("Participant left", "session", p.SessionID, "conn", p.ConnectionKey, "identity", p.Identity)
	return nil
}

func (a *Auditor) onCommand(_ context.Context, _ pubsub.Message, c Command) error {
	a.commands.Add(1)
	a.logger.Info("Command observed", "conn", c.ConnectionKey, "identity", c.Identity, "raw", c.Raw)
	return nil
}

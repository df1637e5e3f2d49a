// Package router maps decoded envelopes to the side effects they produce.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/message"
	"github.com/nfrund/relay/internal/participant"
	"github.com/nfrund/relay/internal/pubsub"
)

// Broadcaster is the fan-out every participant listens to.
type Broadcaster interface {
	Publish(payload string) error
}

// Roster lists the identities of connected participants.
type Roster interface {
	Identities() []string
}

// Router dispatches inbound envelopes. It never closes connections.
type Router struct {
	roster      Roster
	broadcaster Broadcaster
	bus         pubsub.Publisher
	logger      *slog.Logger
}

// New creates a Router. bus receives observed commands.
func New(roster Roster, broadcaster Broadcaster, bus pubsub.Publisher, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		roster:      roster,
		broadcaster: broadcaster,
		bus:         bus,
		logger:      logger.With("component", "router"),
	}
}

// Dispatch applies env on behalf of from. Only a failed broadcast is reported;
// callers log it and keep the connection open.
func (r *Router) Dispatch(ctx context.Context, env message.Envelope, from participant.Participant) error {
	switch m := env.(type) {
	case message.Chat:
		// The sender is whoever owns the connection, not what the client claims.
		return r.publish(message.Chat{From: from.Identity, To: m.To, Text: m.Text})
	case message.Notice:
		return r.publish(m)
	case message.RosterRequest, message.Roster:
		// A roster sent by a client carries no data of its own and is
		// answered like a request.
		return r.publish(message.Roster{Names: r.roster.Identities()})
	case message.Command:
		r.observeCommand(ctx, m, from)
		return nil
	case nil:
		return fmt.Errorf("dispatch: nil envelope")
	default:
		return fmt.Errorf("unhandled envelope type %q", env.Type())
	}
}

func (r *Router) publish(env message.Envelope) error {
	if err := r.broadcaster.Publish(message.Encode(env)); err != nil {
		return fmt.Errorf("broadcast %s: %w", env.Type(), err)
	}
	return nil
}

func (r *Router) observeCommand(ctx context.Context, cmd message.Command, from participant.Participant) {
	r.logger.Info("Received command", "conn", from.ConnectionKey, "identity", from.Identity, "raw", cmd.Raw)

	err := pubsub.Publish(ctx, r.bus, events.CommandReceived, from.ConnectionKey, events.Command{
		ConnectionKey: from.ConnectionKey,
		Identity:      from.Identity,
		Raw:           cmd.Raw,
		At:            time.Now().UTC(),
	})
	if err != nil {
		r.logger.Warn("Failed to publish command event", "conn", from.ConnectionKey, "error", err)
	}
}

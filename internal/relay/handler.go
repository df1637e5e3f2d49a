// Package relay runs the lifecycle of a single chat connection: the name
// handshake, the inbound and outbound loops, and join/leave bookkeeping.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/nfrund/relay/internal/broadcast"
	"github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/message"
	"github.com/nfrund/relay/internal/participant"
	"github.com/nfrund/relay/internal/pubsub"
)

const (
	// DefaultHandshakeTimeout bounds how long a connection may sit in AwaitingIdentity.
	DefaultHandshakeTimeout = 30 * time.Second

	// DefaultIdentity replaces a display name that is empty after trimming.
	DefaultIdentity = "anonymous"

	identityPrompt = "Enter your username:"
	shutdownReason = "server shutting down"

	// leaveAttempts bounds the leave notice publish. There is no delay between attempts.
	leaveAttempts = 3
)

// ErrHandshakeTimeout is reported when no display name arrived in time.
var ErrHandshakeTimeout = errors.New("handshake timed out")

// Broadcaster is the shared fan-out each connection publishes to and reads from.
type Broadcaster interface {
	Publish(payload string) error
	Subscribe() *broadcast.Subscription
}

// Registry tracks which connections are active.
type Registry interface {
	Register(connectionKey, identity string)
	Deregister(connectionKey string)
}

// Dispatcher applies a decoded envelope on behalf of a participant.
type Dispatcher interface {
	Dispatch(ctx context.Context, env message.Envelope, from participant.Participant) error
}

// Dependencies holds everything a Handler needs. All fields except Logger
// and HandshakeTimeout are required.
type Dependencies struct {
	Registry         Registry
	Broadcaster      Broadcaster
	Router           Dispatcher
	Bus              pubsub.Publisher
	Logger           *slog.Logger
	HandshakeTimeout time.Duration
}

// Handler serves relay connections. One Handler is shared by all connections.
type Handler struct {
	registry         Registry
	broadcaster      Broadcaster
	router           Dispatcher
	bus              pubsub.Publisher
	logger           *slog.Logger
	handshakeTimeout time.Duration

	mu       sync.Mutex
	closing  bool
	sessions sync.WaitGroup
}

// NewHandler creates a Handler from its dependencies.
func NewHandler(deps Dependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := deps.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	return &Handler{
		registry:         deps.Registry,
		broadcaster:      deps.Broadcaster,
		router:           deps.Router,
		bus:              deps.Bus,
		logger:           logger.With("component", "relay"),
		handshakeTimeout: timeout,
	}
}

// session is the per-connection state owned by one Serve call.
type session struct {
	id       string
	key      string
	identity string
	conn     Conn
	state    State
	logger   *slog.Logger
}

func (s *session) enter(next State) {
	s.logger.Debug("Connection state changed", "from", s.state, "to", next)
	s.state = next
}

func (s *session) participant() participant.Participant {
	return participant.Participant{Identity: s.identity, ConnectionKey: s.key}
}

// Serve runs one connection until its transport closes or ctx is canceled.
// Cancellation closes the transport with a going-away status; the session then
// drains as if the peer had left. The transport is closed when Serve returns.
// Nothing that happens here is fatal to the process.
func (h *Handler) Serve(ctx context.Context, conn Conn) {
	if !h.begin() {
		_ = conn.Close(CloseGoingAway, shutdownReason)
		return
	}
	defer h.sessions.Done()

	s := &session{
		id:    uuid.NewString(),
		key:   conn.RemoteAddr(),
		conn:  conn,
		state: StateConnecting,
	}
	s.logger = h.logger.With("session", s.id, "conn", s.key)
	defer func() {
		_ = conn.Close(CloseNormal, "connection closed")
		s.enter(StateClosed)
	}()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close(CloseGoingAway, shutdownReason)
	})
	defer stop()
	// From here on the transport, not ctx, ends the loops, so that a canceled
	// session still completes the close handshake and its leave bookkeeping.
	ctx = context.WithoutCancel(ctx)

	s.enter(StateAwaitingIdentity)
	identity, err := h.handshake(ctx, s)
	if err != nil {
		s.logger.Info("Connection closed before handshake completed", "error", err)
		return
	}
	s.identity = identity
	s.logger = s.logger.With("identity", identity)

	// Subscribing before the join notice lets the participant see its own arrival.
	sub := h.broadcaster.Subscribe()
	defer sub.Close()

	h.activate(ctx, s)
	h.run(ctx, s, sub)

	s.enter(StateDraining)
	h.drain(ctx, s)
}

// begin admits a new session unless Wait has been called.
func (h *Handler) begin() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.sessions.Add(1)
	return true
}

// Wait blocks until every running Serve call has returned or ctx is done.
// Connections served after Wait is called are closed immediately.
func (h *Handler) Wait(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handler) handshake(ctx context.Context, s *session) (string, error) {
	prompt := message.Encode(message.NewSystemNotice(identityPrompt))
	if err := s.conn.Write(ctx, prompt); err != nil {
		return "", fmt.Errorf("send identity prompt: %w", err)
	}

	readCtx, cancel := context.WithTimeout(ctx, h.handshakeTimeout)
	defer cancel()

	frame, err := s.conn.Read(readCtx)
	if err != nil {
		if errors.Is(readCtx.Err(), context.DeadlineExceeded) {
			return "", ErrHandshakeTimeout
		}
		return "", fmt.Errorf("read identity: %w", err)
	}
	return normalizeIdentity(frame), nil
}

func normalizeIdentity(raw string) string {
	identity := norm.NFC.String(strings.TrimSpace(strings.ToValidUTF8(raw, "\uFFFD")))
	if identity == "" {
		return DefaultIdentity
	}
	return identity
}

func (h *Handler) activate(ctx context.Context, s *session) {
	h.registry.Register(s.key, s.identity)
	s.enter(StateActive)

	if err := h.broadcaster.Publish(message.Encode(message.JoinNotice(s.identity))); err != nil {
		s.logger.Warn("Failed to broadcast join notice", "error", err)
	}
	h.emit(ctx, s, events.ParticipantJoined)
}

// run drives the inbound and outbound loops. When the inbound loop stops the
// outbound loop is canceled. When the outbound loop stops it closes the
// transport, which ends the inbound read with a proper close frame.
func (h *Handler) run(ctx context.Context, s *session, sub *broadcast.Subscription) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		code, reason := CloseNormal, "connection closed"
		if err := h.outbound(ctx, s, sub); errors.Is(err, broadcast.ErrClosed) {
			code, reason = CloseGoingAway, shutdownReason
		}
		_ = s.conn.Close(code, reason)
	}()

	h.inbound(ctx, s)
	cancel()
	wg.Wait()
}

func (h *Handler) inbound(ctx context.Context, s *session) {
	from := s.participant()
	for {
		frame, err := s.conn.Read(ctx)
		if err != nil {
			h.logLoopEnd(s, "inbound", err)
			return
		}

		env, err := message.Decode(frame)
		if err != nil {
			s.logger.Warn("Dropping malformed frame", "error", err)
			continue
		}

		if err := h.router.Dispatch(ctx, env, from); err != nil {
			s.logger.Error("Failed to dispatch message", "type", env.Type(), "error", err)
		}
	}
}

func (h *Handler) outbound(ctx context.Context, s *session, sub *broadcast.Subscription) error {
	for {
		payload, err := sub.Receive(ctx)
		if err != nil {
			var lagged *broadcast.LaggedError
			if !errors.As(err, &lagged) {
				h.logLoopEnd(s, "outbound", err)
				return err
			}
			s.logger.Warn("Connection fell behind the broadcast", "missed", lagged.Missed)
			payload = message.Encode(message.NewSystemNotice(
				fmt.Sprintf("%d messages were dropped because your connection fell behind", lagged.Missed),
			))
		}

		if err := s.conn.Write(ctx, payload); err != nil {
			h.logLoopEnd(s, "outbound", err)
			return err
		}
	}
}

func (h *Handler) drain(ctx context.Context, s *session) {
	h.registry.Deregister(s.key)

	leave := message.Encode(message.LeaveNotice(s.identity))
	var err error
	for attempt := 1; attempt <= leaveAttempts; attempt++ {
		if err = h.broadcaster.Publish(leave); err == nil {
			break
		}
		if errors.Is(err, broadcast.ErrClosed) {
			break
		}
		s.logger.Warn("Retrying leave notice", "attempt", attempt, "error", err)
	}
	if err != nil {
		s.logger.Error("Failed to broadcast leave notice", "error", err)
	}

	h.emit(ctx, s, events.ParticipantLeft)
}

func (h *Handler) emit(ctx context.Context, s *session, event pubsub.Event[events.Participant]) {
	err := pubsub.Publish(ctx, h.bus, event, s.key, events.Participant{
		SessionID:     s.id,
		ConnectionKey: s.key,
		Identity:      s.identity,
		At:            time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("Failed to publish lifecycle event", "topic", event.Name(), "error", err)
	}
}

func (h *Handler) logLoopEnd(s *session, loop string, err error) {
	if isExpectedClose(err) || errors.Is(err, broadcast.ErrClosed) {
		s.logger.Info("Connection loop ended", "loop", loop, "reason", err)
		return
	}
	s.logger.Error("Connection loop failed", "loop", loop, "error", err)
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/relay/internal/broadcast"
	"github.com/nfrund/relay/internal/config"
	"github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/message"
	"github.com/nfrund/relay/internal/participant"
	"github.com/nfrund/relay/internal/pubsub"
	"github.com/nfrund/relay/internal/relay"
	"github.com/nfrund/relay/internal/router"
)

// setupIntegrationTest wires a full relay behind an httptest server.
func setupIntegrationTest(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	cfg := config.Default()
	cfg.ConnectRate = 1000
	cfg.HandshakeTimeout = 2 * time.Second

	bus := pubsub.NewWatermillBridge()
	registry := participant.NewRegistry()
	channel := broadcast.New(cfg.HistorySize)
	auditor := events.NewAuditor(nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, auditor.Start(ctx, bus))

	handler := relay.NewHandler(relay.Dependencies{
		Registry:         registry,
		Broadcaster:      channel,
		Router:           router.New(registry, channel, bus, nil),
		Bus:              bus,
		HandshakeTimeout: cfg.HandshakeTimeout,
	})

	s := New(Dependencies{
		Config:   &cfg,
		Registry: registry,
		Channel:  channel,
		Handler:  handler,
		Auditor:  auditor,
	})
	ts := httptest.NewServer(s.E)

	t.Cleanup(func() {
		ts.Close()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = s.Shutdown(shutdownCtx)
		cancel()
		_ = bus.Close()
	})
	return s, ts
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, ts *httptest.Server) *client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err, "Failed to connect to relay websocket")
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return &client{t: t, conn: conn}
}

func (c *client) read() message.Envelope {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	typ, data, err := c.conn.Read(ctx)
	require.NoError(c.t, err)
	require.Equal(c.t, websocket.MessageText, typ)
	env, err := message.Decode(string(data))
	require.NoError(c.t, err)
	return env
}

func (c *client) send(text string) {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(c.t, c.conn.Write(ctx, websocket.MessageText, []byte(text)))
}

// join completes the name handshake and consumes the participant's own join notice.
func (c *client) join(name string) {
	c.t.Helper()
	assert.Equal(c.t, message.NewSystemNotice("Enter your username:"), c.read())
	c.send(name)
	assert.Equal(c.t, message.JoinNotice(name), c.read())
}

func getJSON(t *testing.T, ts *httptest.Server, path string, out any) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestRelay_TwoClientsChat(t *testing.T) {
	_, ts := setupIntegrationTest(t)

	alice := dial(t, ts)
	alice.join("alice")

	bob := dial(t, ts)
	bob.join("bob")
	assert.Equal(t, message.JoinNotice("bob"), alice.read())

	bob.send(message.Encode(message.Chat{From: "someone-else", Text: "hi alice"}))

	want := message.Chat{From: "bob", Text: "hi alice"}
	assert.Equal(t, want, alice.read())
	assert.Equal(t, want, bob.read())

	alice.send(message.Encode(message.RosterRequest{}))
	roster, ok := bob.read().(message.Roster)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"alice", "bob"}, roster.Names)

	require.NoError(t, bob.conn.Close(websocket.StatusNormalClosure, "bye"))
	assert.Equal(t, roster, alice.read())
	assert.Equal(t, message.LeaveNotice("bob"), alice.read())
}

func TestRelay_ParticipantsAndHealth(t *testing.T) {
	s, ts := setupIntegrationTest(t)

	var empty participantsResponse
	getJSON(t, ts, "/participants", &empty)
	assert.Equal(t, 0, empty.Count)
	assert.Equal(t, []string{}, empty.Names)

	carol := dial(t, ts)
	carol.join("carol")
	dave := dial(t, ts)
	dave.join("dave")

	var got participantsResponse
	getJSON(t, ts, "/participants", &got)
	assert.Equal(t, participantsResponse{Count: 2, Names: []string{"carol", "dave"}}, got)

	var health healthResponse
	getJSON(t, ts, "/healthz", &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.Participants)
	assert.Equal(t, 2, health.Subscribers)

	assert.Eventually(t, func() bool {
		return s.auditor.Stats().Joined == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRelay_ShutdownDrainsSessions(t *testing.T) {
	s, ts := setupIntegrationTest(t)

	erin := dial(t, ts)
	erin.join("erin")

	shutdownErr := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownErr <- s.Shutdown(ctx)
	}()

	// The client keeps reading so that it answers the close handshake.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var err error
	for err == nil {
		_, _, err = erin.conn.Read(ctx)
	}
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err), "got %v", err)

	require.NoError(t, <-shutdownErr)
	assert.Equal(t, 0, s.registry.Len())
	assert.Equal(t, 0, s.channel.Subscribers())
}

func TestRelay_ConnectionsAfterShutdownAreTurnedAway(t *testing.T) {
	s, ts := setupIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	late := dial(t, ts)
	_, _, err := late.conn.Read(ctx)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err), "got %v", err)
}

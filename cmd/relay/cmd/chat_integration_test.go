package cmd

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/relay/internal/app"
	"github.com/nfrund/relay/internal/config"
)

// syncBuffer is a bytes.Buffer safe for one writer and concurrent readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunChat_AgainstRelay(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "error"
	srv, err := app.New(&cfg, "test").Server()
	require.NoError(t, err)
	ts := httptest.NewServer(srv.E)
	defer ts.Close()

	in, typed := io.Pipe()
	var out syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- runChat(context.Background(), "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", in, &out)
	}()

	contains := func(s string) func() bool {
		return func() bool { return strings.Contains(out.String(), s) }
	}

	require.Eventually(t, contains("[SYSTEM] Enter your username:"), 2*time.Second, 10*time.Millisecond)

	_, err = io.WriteString(typed, "alice\n")
	require.NoError(t, err)
	require.Eventually(t, contains("[SYSTEM] *** alice has joined the chat ***"), 2*time.Second, 10*time.Millisecond)

	_, err = io.WriteString(typed, "hello everyone\n")
	require.NoError(t, err)
	require.Eventually(t, contains("[alice] hello everyone"), 2*time.Second, 10*time.Millisecond)

	_, err = io.WriteString(typed, "/users\n")
	require.NoError(t, err)
	require.Eventually(t, contains("Current users: alice"), 2*time.Second, 10*time.Millisecond)

	require.NoError(t, typed.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runChat did not return after input closed")
	}
}

func TestRunChat_ServerShutdownIsClean(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "error"
	srv, err := app.New(&cfg, "test").Server()
	require.NoError(t, err)
	ts := httptest.NewServer(srv.E)
	defer ts.Close()

	in, typed := io.Pipe()
	defer typed.Close()
	var out syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- runChat(context.Background(), "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", in, &out)
	}()

	_, err = io.WriteString(typed, "bob\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "*** bob has joined the chat ***")
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runChat did not return after the server stopped")
	}
}

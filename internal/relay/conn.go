package relay

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/coder/websocket"
)

// Conn is a message framed duplex transport carrying one text payload per frame.
type Conn interface {
	// Read blocks until the next text frame arrives, the peer goes away or ctx is done.
	Read(ctx context.Context) (string, error)
	// Write sends one text frame.
	Write(ctx context.Context, payload string) error
	// Close ends the transport, telling the peer why when the protocol allows it.
	Close(code CloseCode, reason string) error
	// RemoteAddr is the transport level address, used as the participant key.
	RemoteAddr() string
}

// CloseCode tells the peer why the relay ended a connection.
type CloseCode int

const (
	// CloseNormal ends a connection whose session finished.
	CloseNormal CloseCode = iota
	// CloseGoingAway ends a connection because the relay is stopping.
	CloseGoingAway
)

// DefaultWriteTimeout bounds a single frame write.
const DefaultWriteTimeout = 10 * time.Second

type websocketConn struct {
	conn         *websocket.Conn
	remoteAddr   string
	writeTimeout time.Duration
}

// NewWebsocketConn adapts an accepted WebSocket connection. Binary frames are skipped.
func NewWebsocketConn(conn *websocket.Conn, remoteAddr string, writeTimeout time.Duration) Conn {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	return &websocketConn{conn: conn, remoteAddr: remoteAddr, writeTimeout: writeTimeout}
}

func (c *websocketConn) Read(ctx context.Context) (string, error) {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return "", err
		}
		if typ != websocket.MessageText {
			continue
		}
		return string(data), nil
	}
}

func (c *websocketConn) Write(ctx context.Context, payload string) error {
	ctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, []byte(payload))
}

func (c *websocketConn) Close(code CloseCode, reason string) error {
	status := websocket.StatusNormalClosure
	if code == CloseGoingAway {
		status = websocket.StatusGoingAway
	}
	return c.conn.Close(status, reason)
}

func (c *websocketConn) RemoteAddr() string {
	return c.remoteAddr
}

// isExpectedClose reports whether err is an ordinary end of a connection
// rather than a failure worth an error log.
func isExpectedClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, context.Canceled)
}

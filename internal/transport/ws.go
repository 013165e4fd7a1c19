package transport

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/gorilla/websocket"
)

// DialWS connects to a WebSocket endpoint and adapts it into a net.Conn
// byte stream. Binary messages are pumped through an in-process pipe, so the
// deadline-based polling the connection layer relies on keeps working: the
// pipe supports deadlines even though the underlying websocket framing does
// not expose them the same way.
func DialWS(ctx context.Context, url string) (net.Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial websocket %s: %w", url, err)
	}

	local, remote := net.Pipe()
	go pumpInbound(ws, remote)
	go pumpOutbound(ws, remote)

	return &wsConn{Conn: local, ws: ws, pipe: remote}, nil
}

// wsConn is the caller-facing end of the pipe. Close tears down both the
// pumps and the websocket.
type wsConn struct {
	net.Conn // local pipe end
	ws       *websocket.Conn
	pipe     net.Conn
}

func (c *wsConn) Close() error {
	c.pipe.Close()
	err := c.Conn.Close()
	if wsErr := c.ws.Close(); err == nil {
		err = wsErr
	}
	return err
}

// pumpInbound copies websocket messages into the pipe. Message boundaries
// are deliberately discarded: the protocol reassembles its own framing from
// the byte stream.
func pumpInbound(ws *websocket.Conn, pipe net.Conn) {
	defer pipe.Close()
	for {
		_, r, err := ws.NextReader()
		if err != nil {
			return
		}
		if _, err := io.Copy(pipe, r); err != nil {
			return
		}
	}
}

// pumpOutbound forwards bytes written by the caller as binary messages.
func pumpOutbound(ws *websocket.Conn, pipe net.Conn) {
	defer ws.Close()
	buf := make([]byte, 32*1024)
	for {
		n, err := pipe.Read(buf)
		if n > 0 {
			if werr := ws.WriteMessage(websocket.BinaryMessage, buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

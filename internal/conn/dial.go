package conn

import (
	"context"

	"github.com/perun-emu/perun-go/internal/transport"
)

// Dial opens a transport ("unix" or "tcp") and performs the handshake,
// returning a Ready connection. On any failure the transport is closed and
// no partially connected state is observable.
func Dial(ctx context.Context, network, addr string, opts Options) (*Conn, error) {
	tr, err := transport.Dial(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	return Client(ctx, tr, opts)
}

// DialWS opens a WebSocket transport and performs the handshake. The
// websocket carries the same framed byte stream as the socket transports.
func DialWS(ctx context.Context, url string, opts Options) (*Conn, error) {
	tr, err := transport.DialWS(ctx, url)
	if err != nil {
		return nil, err
	}
	return Client(ctx, tr, opts)
}

// Package transport opens the byte-stream transports a connection can run
// over: UNIX domain stream sockets, TCP with Nagle disabled, and a WebSocket
// adapter. Every variant hands back a plain net.Conn; the protocol layer is
// agnostic beyond "ordered reliable byte stream".
package transport

import (
	"context"
	"fmt"
	"net"
)

// Dial opens a transport of the given network ("unix" or "tcp") to addr.
// TCP connections get TCP_NODELAY so small framed packets are not held back
// by Nagle's algorithm; latency matters more than throughput here.
func Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	switch network {
	case "unix", "tcp":
	default:
		return nil, fmt.Errorf("transport: unsupported network %q", network)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s %s: %w", network, addr, err)
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		if err := tc.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, fmt.Errorf("transport: set TCP_NODELAY: %w", err)
		}
	}

	return conn, nil
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/perun-emu/perun-go/internal/config"
	"github.com/perun-emu/perun-go/internal/conn"
	"github.com/perun-emu/perun-go/internal/util"
)

// addNetworkFlags wires the shared transport selection flags into a command.
// Defaults come from the environment via config.FromEnv.
func addNetworkFlags(cmd *cobra.Command, cfg *config.Config) {
	cmd.Flags().StringVarP(&cfg.Network, "network", "n", cfg.Network, `Transport: "unix", "tcp" or "ws"`)
	cmd.Flags().StringVar(&cfg.SocketPath, "socket", cfg.SocketPath, "Unix socket path")
	cmd.Flags().StringVar(&cfg.TCPAddr, "addr", cfg.TCPAddr, "TCP address (host:port)")
	cmd.Flags().StringVar(&cfg.WSURL, "url", cfg.WSURL, "WebSocket URL (ws://...)")
}

// connect dials the configured transport and runs the handshake.
func connect(ctx context.Context, cfg config.Config, opts conn.Options) (*conn.Conn, error) {
	util.LogInfo("connecting via %s to %s", cfg.Network, cfg.Addr())

	switch cfg.Network {
	case "unix", "tcp":
		return conn.Dial(ctx, cfg.Network, cfg.Addr(), opts)
	case "ws":
		return conn.DialWS(ctx, cfg.WSURL, opts)
	default:
		return nil, fmt.Errorf("unknown network %q", cfg.Network)
	}
}

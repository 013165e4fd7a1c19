// Package config holds the CLI configuration types and their environment
// defaults.
package config

import "os"

// Conventional endpoints shared by cores and viewers on the same machine.
const (
	DefaultSocketPath = "/tmp/perun.sock"
	DefaultTCPAddr    = "127.0.0.1:8080"
	DefaultShmPath    = "/dev/shm/perun_shm"
)

// Config stores all parameters gathered from flags and the environment.
type Config struct {
	Network    string // "unix", "tcp" or "ws"
	SocketPath string // unix socket path
	TCPAddr    string // host:port for tcp
	WSURL      string // WebSocket URL for ws
	ShmPath    string // shared frame region, empty disables it
	ROMPath    string // feed: ROM to run, empty loads the builtin demo
	Debug      bool
}

// FromEnv returns a Config seeded from PERUN_* environment variables,
// falling back to the conventional defaults. Flags override these later.
func FromEnv() Config {
	return Config{
		Network:    "tcp",
		SocketPath: envOr("PERUN_SOCKET_PATH", DefaultSocketPath),
		TCPAddr:    envOr("PERUN_TCP_ADDR", DefaultTCPAddr),
		ShmPath:    os.Getenv("PERUN_SHM_NAME"),
	}
}

// Addr returns the dial address for the configured network.
func (c Config) Addr() string {
	switch c.Network {
	case "unix":
		return c.SocketPath
	case "ws":
		return c.WSURL
	default:
		return c.TCPAddr
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

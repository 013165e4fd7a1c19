package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/perun-emu/perun-go/internal/chip8"
	"github.com/perun-emu/perun-go/internal/config"
	"github.com/perun-emu/perun-go/internal/conn"
	"github.com/perun-emu/perun-go/internal/delta"
	"github.com/perun-emu/perun-go/internal/protocol"
	"github.com/perun-emu/perun-go/internal/shm"
	"github.com/perun-emu/perun-go/internal/util"
)

// cyclesPerFrame approximates a ~500Hz CPU stepped at 60 frames per second.
const cyclesPerFrame = 8

func feedCmd() *cobra.Command {
	cfg := config.FromEnv()

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Run a CHIP-8 core and stream its video output",
		Long: `Run a CHIP-8 core and stream its frames to a presentation server.

Without --rom a builtin demo program is loaded. Frames are sent
non-blocking: when the server falls behind, frames are dropped rather
than stalling emulation.

Examples:
  perun feed
  perun feed --rom pong.ch8 --network unix
  perun feed --url ws://localhost:9000/stream`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeed(cmd.Context(), cfg)
		},
	}

	addNetworkFlags(cmd, &cfg)
	cmd.Flags().StringVar(&cfg.ROMPath, "rom", "", "CHIP-8 ROM to run (builtin demo when empty)")
	cmd.Flags().StringVar(&cfg.ShmPath, "shm", cfg.ShmPath, "Mirror frames into a shared memory region")

	return cmd
}

func runFeed(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	machine := chip8.New()
	if cfg.ROMPath != "" {
		if err := machine.LoadROM(cfg.ROMPath); err != nil {
			return err
		}
		util.LogInfo("loaded ROM %s", cfg.ROMPath)
	} else {
		machine.LoadTestProgram()
		util.LogInfo("no ROM given, running builtin demo")
	}

	c, err := connect(ctx, cfg, conn.Options{
		Capabilities: protocol.CapDelta | protocol.CapDebug,
	})
	if err != nil {
		return err
	}
	defer c.Close()
	util.LogInfo("connected, delta frames %s", enabledWord(c.SupportsDelta()))

	var region *shm.Region
	if cfg.ShmPath != "" {
		region, err = shm.Create(cfg.ShmPath, chip8.DisplayWidth, chip8.DisplayHeight)
		if err != nil {
			return err
		}
		defer region.Close()
		util.LogInfo("mirroring frames to %s", cfg.ShmPath)
	}

	util.StartStatsReporter(ctx)

	// Previous frame shipped in full or as an applied delta. Cleared when a
	// frame is dropped: the peer's reconstruction base is gone, so the next
	// frame must be a keyframe.
	var prevFrame []byte

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			util.LogInfo("shutting down")
			return nil
		case <-ticker.C:
		}

		for range cyclesPerFrame {
			machine.Cycle()
		}

		if machine.DrawFlag() {
			machine.ClearDrawFlag()
			prevFrame, err = sendFrame(c, machine.Framebuffer(), prevFrame, region)
			if err != nil {
				return err
			}
		}

		if err := pumpInput(c, machine); err != nil {
			return err
		}
	}
}

// sendFrame ships one frame, delta-encoded against prev when the peer
// supports it. Returns the new reconstruction base, nil after a drop.
func sendFrame(c *conn.Conn, frame, prev []byte, region *shm.Region) ([]byte, error) {
	if region != nil {
		if err := region.CopyIn(frame); err != nil {
			return nil, err
		}
	}

	var flags uint8
	body := frame
	if c.SupportsDelta() && prev != nil {
		d, err := delta.Compute(frame, prev)
		if err != nil {
			return nil, err
		}
		body = d
		flags = protocol.FlagDelta
	}

	pkt := protocol.VideoFrame{
		Width:  chip8.DisplayWidth,
		Height: chip8.DisplayHeight,
		Data:   body,
	}
	err := c.SendVideoFrame(pkt, flags, conn.NonBlocking)
	if errors.Is(err, conn.ErrFrameDropped) {
		util.LogDebug("frame dropped, next frame will be a keyframe")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// pumpInput drains pending packets and feeds button state to the keypad.
func pumpInput(c *conn.Conn, machine *chip8.Machine) error {
	for {
		pkt, err := c.Receive()
		if errors.Is(err, conn.ErrClosed) {
			return errors.New("server closed the connection")
		}
		if err != nil {
			return err
		}
		if pkt == nil {
			return nil
		}

		switch pkt.Header.Type {
		case protocol.TypeInputEvent:
			ev, err := protocol.DecodeInputEvent(pkt.Payload)
			if err != nil {
				util.LogWarning("bad input event: %v", err)
				continue
			}
			machine.SetKeys(ev.Buttons)
		default:
			util.LogDebug("ignoring packet type %d", pkt.Header.Type)
		}
	}
}

func enabledWord(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/perun-emu/perun-go/internal/config"
	"github.com/perun-emu/perun-go/internal/conn"
	"github.com/perun-emu/perun-go/internal/delta"
	"github.com/perun-emu/perun-go/internal/protocol"
	"github.com/perun-emu/perun-go/internal/render"
	"github.com/perun-emu/perun-go/internal/util"
)

func viewCmd() *cobra.Command {
	cfg := config.FromEnv()
	var cols, rows int

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Render an incoming frame stream as ASCII art",
		Long: `Attach to a frame stream and render it in the terminal.

Delta frames are negotiated during the handshake and reconstructed
against the last full frame.

Examples:
  perun view
  perun view --network unix --socket /tmp/perun.sock`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd.Context(), cfg, cols, rows)
		},
	}

	addNetworkFlags(cmd, &cfg)
	cmd.Flags().IntVar(&cols, "cols", render.DefaultColumns, "Output width in characters")
	cmd.Flags().IntVar(&rows, "rows", render.DefaultRows, "Output height in characters")

	return cmd
}

func runView(ctx context.Context, cfg config.Config, cols, rows int) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := connect(ctx, cfg, conn.Options{
		Capabilities: protocol.CapDelta,
	})
	if err != nil {
		return err
	}
	defer c.Close()
	util.LogInfo("connected, waiting for frames")

	util.StartStatsReporter(ctx)

	area, err := pterm.DefaultArea.Start()
	if err != nil {
		return fmt.Errorf("start display area: %w", err)
	}
	defer area.Stop()

	// Last reconstructed full frame, the base for incoming deltas. Deltas
	// arriving before any keyframe are skipped.
	var current []byte
	frames := 0

	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			util.LogInfo("shutting down")
			return nil
		case <-ticker.C:
		}

		for {
			pkt, err := c.Receive()
			if errors.Is(err, conn.ErrClosed) {
				util.LogInfo("feed closed the connection after %d frames", frames)
				return nil
			}
			if err != nil {
				return err
			}
			if pkt == nil {
				break
			}
			if pkt.Header.Type != protocol.TypeVideoFrame {
				util.LogDebug("ignoring packet type %d", pkt.Header.Type)
				continue
			}

			frame, err := protocol.DecodeVideoFrame(pkt.Payload)
			if err != nil {
				return fmt.Errorf("bad video frame: %w", err)
			}

			if pkt.Header.Flags&protocol.FlagDelta != 0 {
				if current == nil {
					util.LogDebug("delta before first keyframe, skipping")
					continue
				}
				current, err = delta.Apply(frame.Data, current)
				if err != nil {
					// Resolution changed mid-stream; wait for a keyframe.
					util.LogWarning("unusable delta: %v", err)
					current = nil
					continue
				}
			} else {
				current = frame.Data
			}

			frames++
			area.Update(fmt.Sprintf("%s\nframe %d  %dx%d  seq %d",
				render.ASCII(current, int(frame.Width), int(frame.Height), cols, rows),
				frames, frame.Width, frame.Height, pkt.Header.Sequence))
		}
	}
}

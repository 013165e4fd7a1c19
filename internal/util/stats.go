package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// Stats is the process-wide traffic counter. Dropped frames are tracked
// separately from sent bytes so backpressure is visible at a glance: a
// climbing drop count means the presentation side is not keeping up.
var Stats = &stats{}

type stats struct {
	BytesSent     atomic.Int64 // bytes written to the transport
	BytesRecv     atomic.Int64 // bytes drained from the transport
	FramesDropped atomic.Int64 // units dropped by non-blocking sends
}

func (s *stats) AddSent(n int)  { s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int)  { s.BytesRecv.Add(int64(n)) }
func (s *stats) AddDropped()    { s.FramesDropped.Add(1) }
func (s *stats) Dropped() int64 { return s.FramesDropped.Load() }

// reportEvery is the stats reporter interval.
const reportEvery = 5 * time.Second

// StartStatsReporter launches a goroutine that logs traffic statistics
// periodically, skipping intervals where nothing happened. It stops when ctx
// is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(reportEvery)
		defer ticker.Stop()

		var prevSent, prevRecv, prevDropped int64
		for {
			select {
			case <-ticker.C:
				sent := Stats.BytesSent.Load()
				recv := Stats.BytesRecv.Load()
				dropped := Stats.FramesDropped.Load()

				dSent := sent - prevSent
				dRecv := recv - prevRecv
				dDropped := dropped - prevDropped

				if dSent > 0 || dRecv > 0 || dDropped > 0 {
					secs := reportEvery.Seconds()
					pterm.DefaultLogger.Info(fmt.Sprintf(
						"out: %s/s | in: %s/s | dropped: %d",
						formatBytes(float64(dSent)/secs),
						formatBytes(float64(dRecv)/secs),
						dDropped,
					))
				}

				prevSent = sent
				prevRecv = recv
				prevDropped = dropped

			case <-ctx.Done():
				return
			}
		}
	}()
}

var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB"}

// formatBytes renders a byte count with a binary unit, one decimal place.
func formatBytes(b float64) string {
	unitIdx := 0
	for b >= 1024 && unitIdx < len(byteUnits)-1 {
		b /= 1024
		unitIdx++
	}
	return fmt.Sprintf("%.1f %s", b, byteUnits[unitIdx])
}

package datasitemgr

import (
	"context"
	"time"

	"github.com/openmined/syftbox-client/internal/syftsdk"
)

const latencyPingInterval = 30 * time.Second

// monitorLatency pings the server health endpoint on an interval and
// records the round-trip time until ctx is cancelled.
func monitorLatency(ctx context.Context, stats *LatencyStats, serverURL string) {
	ticker := time.NewTicker(latencyPingInterval)
	defer ticker.Stop()

	pingOnce(ctx, stats, serverURL)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingOnce(ctx, stats, serverURL)
		}
	}
}

func pingOnce(ctx context.Context, stats *LatencyStats, serverURL string) {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	if err := syftsdk.Healthz(pingCtx, serverURL); err != nil {
		return
	}
	stats.Record(uint64(time.Since(start).Milliseconds()))
}

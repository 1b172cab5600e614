package sync

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const hotlinkTelemetryInterval = 1 * time.Second

// hotlinkTelemetry keeps per-mode counters for the overlay and snapshots
// them as JSON next to the owner's datasite. Writes are throttled so the
// data path never blocks on disk.
type hotlinkTelemetry struct {
	mu        sync.Mutex
	path      string
	lastWrite time.Time
	dirty     bool

	stats hotlinkTelemetryStats
}

type hotlinkTelemetryStats struct {
	TxPackets        uint64 `json:"tx_packets"`
	TxBytes          uint64 `json:"tx_bytes"`
	TxQuic           uint64 `json:"tx_quic"`
	TxWs             uint64 `json:"tx_ws"`
	TxLatencyTotalMs uint64 `json:"tx_latency_total_ms"`
	TxLatencyMaxMs   uint64 `json:"tx_latency_max_ms"`
	RxPackets        uint64 `json:"rx_packets"`
	RxBytes          uint64 `json:"rx_bytes"`
	RxLatencyTotalMs uint64 `json:"rx_latency_total_ms"`
	RxLatencyMaxMs   uint64 `json:"rx_latency_max_ms"`
	QuicOffers       uint64 `json:"quic_offers"`
	QuicAnswersOk    uint64 `json:"quic_answers_ok"`
	QuicAnswersErr   uint64 `json:"quic_answers_err"`
	WsFallbacks      uint64 `json:"ws_fallbacks"`
	UpdatedAt        string `json:"updated_at"`
}

func newHotlinkTelemetry(path string) *hotlinkTelemetry {
	return &hotlinkTelemetry{path: path}
}

func (t *hotlinkTelemetry) TxSent(bytes int, latency time.Duration, viaQuic bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.stats.TxPackets++
	t.stats.TxBytes += uint64(bytes)
	if viaQuic {
		t.stats.TxQuic++
	} else {
		t.stats.TxWs++
	}
	ms := uint64(latency.Milliseconds())
	t.stats.TxLatencyTotalMs += ms
	if ms > t.stats.TxLatencyMaxMs {
		t.stats.TxLatencyMaxMs = ms
	}
	t.flushLocked()
	t.mu.Unlock()
}

func (t *hotlinkTelemetry) RxReceived(bytes int, writeLatency time.Duration) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.stats.RxPackets++
	t.stats.RxBytes += uint64(bytes)
	ms := uint64(writeLatency.Milliseconds())
	t.stats.RxLatencyTotalMs += ms
	if ms > t.stats.RxLatencyMaxMs {
		t.stats.RxLatencyMaxMs = ms
	}
	t.flushLocked()
	t.mu.Unlock()
}

func (t *hotlinkTelemetry) QuicOffer() {
	t.bump(func(s *hotlinkTelemetryStats) { s.QuicOffers++ })
}

func (t *hotlinkTelemetry) QuicAnswerOk() {
	t.bump(func(s *hotlinkTelemetryStats) { s.QuicAnswersOk++ })
}

func (t *hotlinkTelemetry) QuicAnswerErr() {
	t.bump(func(s *hotlinkTelemetryStats) { s.QuicAnswersErr++ })
}

func (t *hotlinkTelemetry) WsFallback() {
	t.bump(func(s *hotlinkTelemetryStats) { s.WsFallbacks++ })
}

func (t *hotlinkTelemetry) bump(fn func(*hotlinkTelemetryStats)) {
	if t == nil {
		return
	}
	t.mu.Lock()
	fn(&t.stats)
	t.flushLocked()
	t.mu.Unlock()
}

// flushLocked writes the snapshot at most once per interval; callers hold mu.
func (t *hotlinkTelemetry) flushLocked() {
	t.dirty = true
	now := time.Now()
	if now.Sub(t.lastWrite) < hotlinkTelemetryInterval {
		return
	}
	t.lastWrite = now
	t.dirty = false

	t.stats.UpdatedAt = now.UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(&t.stats, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(t.path, data, 0o644)
}

// Flush forces a snapshot regardless of the throttle (used on shutdown).
func (t *hotlinkTelemetry) Flush() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.lastWrite = time.Time{}
	t.flushLocked()
	t.mu.Unlock()
}

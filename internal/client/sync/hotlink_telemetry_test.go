package sync

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestTelemetrySnapshotWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".syftbox", "hotlink_telemetry.json")
	tel := newHotlinkTelemetry(path)

	tel.TxSent(128, 3*time.Millisecond, true)
	tel.QuicOffer()
	tel.Flush()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var stats hotlinkTelemetryStats
	if err := json.Unmarshal(data, &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.TxPackets != 1 || stats.TxBytes != 128 || stats.TxQuic != 1 {
		t.Errorf("unexpected tx stats: %+v", stats)
	}
	if stats.QuicOffers != 1 {
		t.Errorf("expected 1 quic offer, got %d", stats.QuicOffers)
	}
	if stats.UpdatedAt == "" {
		t.Error("expected updated_at to be set")
	}
}

func TestTelemetryThrottlesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hotlink_telemetry.json")
	tel := newHotlinkTelemetry(path)

	tel.WsFallback() // first write goes through
	info1, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected snapshot after first event: %v", err)
	}

	// within the throttle window the file must not be rewritten
	tel.WsFallback()
	tel.WsFallback()
	info2, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !info2.ModTime().Equal(info1.ModTime()) || info2.Size() != info1.Size() {
		t.Error("expected throttled writes within the interval")
	}

	// Flush bypasses the throttle and carries the pending counts
	tel.Flush()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var stats hotlinkTelemetryStats
	if err := json.Unmarshal(data, &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if stats.WsFallbacks != 3 {
		t.Errorf("expected 3 ws fallbacks, got %d", stats.WsFallbacks)
	}
}

func TestTelemetryNilSafe(t *testing.T) {
	var tel *hotlinkTelemetry
	tel.TxSent(1, time.Millisecond, false)
	tel.RxReceived(1, time.Millisecond)
	tel.QuicOffer()
	tel.Flush()
}

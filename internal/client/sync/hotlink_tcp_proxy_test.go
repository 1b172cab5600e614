package sync

import (
	"bytes"
	"testing"
)

func TestReorderBufferInOrder(t *testing.T) {
	buf := newHotlinkReorderBuffer()
	for i := uint64(1); i <= 3; i++ {
		out := buf.Push(i, []byte{byte(i)})
		if len(out) != 1 || out[0][0] != byte(i) {
			t.Fatalf("seq %d: expected immediate release, got %v", i, out)
		}
	}
}

func TestReorderBufferOutOfOrder(t *testing.T) {
	buf := newHotlinkReorderBuffer()

	if out := buf.Push(1, []byte("a")); len(out) != 1 {
		t.Fatalf("seq 1 should release immediately, got %d chunks", len(out))
	}
	// 3 arrives before 2: held back
	if out := buf.Push(3, []byte("c")); len(out) != 0 {
		t.Fatalf("seq 3 should be buffered, got %d chunks", len(out))
	}
	// 2 releases both 2 and 3 in order
	out := buf.Push(2, []byte("b"))
	if len(out) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(out))
	}
	if !bytes.Equal(out[0], []byte("b")) || !bytes.Equal(out[1], []byte("c")) {
		t.Errorf("chunks out of order: %q %q", out[0], out[1])
	}
}

func TestReorderBufferAnchorsOnFirstSeq(t *testing.T) {
	buf := newHotlinkReorderBuffer()
	// stream joined mid-flight at seq 10
	if out := buf.Push(10, []byte("j")); len(out) != 1 {
		t.Fatalf("first observed seq should anchor and release, got %d chunks", len(out))
	}
	if out := buf.Push(11, []byte("k")); len(out) != 1 {
		t.Fatalf("next seq should release, got %d chunks", len(out))
	}
}

func TestReorderBufferDropsStaleAndDuplicate(t *testing.T) {
	buf := newHotlinkReorderBuffer()
	buf.Push(5, []byte("a"))
	if out := buf.Push(5, []byte("dup")); len(out) != 0 {
		t.Errorf("duplicate seq should be dropped, got %d chunks", len(out))
	}
	if out := buf.Push(3, []byte("stale")); len(out) != 0 {
		t.Errorf("stale seq should be dropped, got %d chunks", len(out))
	}
}

func TestReorderBufferLargeGap(t *testing.T) {
	buf := newHotlinkReorderBuffer()
	buf.Push(1, []byte("a"))

	// 4..2 arrive in reverse; nothing releases until 2 closes the gap
	if out := buf.Push(4, []byte("d")); len(out) != 0 {
		t.Fatal("seq 4 should buffer")
	}
	if out := buf.Push(3, []byte("c")); len(out) != 0 {
		t.Fatal("seq 3 should buffer")
	}
	out := buf.Push(2, []byte("b"))
	if len(out) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(out))
	}
	want := []string{"b", "c", "d"}
	for i, chunk := range out {
		if string(chunk) != want[i] {
			t.Errorf("chunk %d: want %q got %q", i, want[i], chunk)
		}
	}
}

func TestTCPProxyEligible(t *testing.T) {
	p := newHotlinkTCPProxy()
	if !p.Eligible("alice@example.com/app_data/x/chan.tcp") {
		t.Error("expected .tcp path to be eligible")
	}
	if p.Eligible("alice@example.com/app_data/x/msg.request") {
		t.Error("expected .request path to be ineligible")
	}
}

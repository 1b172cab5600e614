package sync

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/quic-go/quic-go"
)

func TestQUICHandshakeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	sessionID := "d3b07384-d9a0-4c1b-8f6e-000000000000"
	if err := writeQUICHandshake(&buf, sessionID); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := readQUICHandshake(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != sessionID {
		t.Errorf("session mismatch: want %s got %s", sessionID, got)
	}
}

func TestQUICHandshakeBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("NOPE")
	buf.Write([]byte{0, 4})
	buf.WriteString("sess")
	if _, err := readQUICHandshake(&buf); err == nil {
		t.Fatal("expected error on bad magic")
	}
}

func TestQUICHandshakeRejectsOversizedID(t *testing.T) {
	var buf bytes.Buffer
	if err := writeQUICHandshake(&buf, strings.Repeat("x", 300)); err != nil {
		t.Fatalf("write: %v", err)
	}
	// length wraps past the sanity bound on read
	if _, err := readQUICHandshake(&buf); err == nil {
		t.Fatal("expected error on oversized session id")
	}
}

func TestHotlinkQUICEnabledDefaultsOn(t *testing.T) {
	t.Setenv(hotlinkQUICEnv, "")
	if !hotlinkQUICEnabled() {
		t.Error("expected quic enabled by default")
	}
	for _, v := range []string{"0", "off", "false", "disabled", "OFF"} {
		t.Setenv(hotlinkQUICEnv, v)
		if hotlinkQUICEnabled() {
			t.Errorf("expected quic disabled for %q", v)
		}
	}
	t.Setenv(hotlinkQUICEnv, "1")
	if !hotlinkQUICEnabled() {
		t.Error("expected quic enabled for 1")
	}
}

func TestHotlinkQUICLoopbackSession(t *testing.T) {
	tlsConf, err := hotlinkSelfSignedTLS()
	if err != nil {
		t.Fatalf("tls: %v", err)
	}
	listener, err := quic.ListenAddr("127.0.0.1:0", tlsConf, &quic.Config{})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()

	sessionID := "d3b07384-d9a0-4c1b-8f6e-000000000000"
	type acceptResult struct {
		peer *hotlinkQUICPeer
		err  error
	}
	accepted := make(chan acceptResult, 1)
	go func() {
		peer, err := acceptHotlinkQUIC(listener, sessionID)
		accepted <- acceptResult{peer, err}
	}()

	dialer, err := dialHotlinkQUIC(sessionID, []string{listener.Addr().String()})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer dialer.Close()

	res := <-accepted
	if res.err != nil {
		t.Fatalf("accept: %v", res.err)
	}
	defer res.peer.Close()

	if err := dialer.WriteFrame([]byte("ping")); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	buf := make([]byte, 4)
	if _, err := io.ReadFull(res.peer.stream, buf); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if string(buf) != "ping" {
		t.Fatalf("unexpected payload %q", buf)
	}
}

func TestHotlinkSelfSignedTLS(t *testing.T) {
	conf, err := hotlinkSelfSignedTLS()
	if err != nil {
		t.Fatalf("cert generation: %v", err)
	}
	if len(conf.Certificates) != 1 {
		t.Fatalf("expected one certificate, got %d", len(conf.Certificates))
	}
	if len(conf.NextProtos) != 1 || conf.NextProtos[0] != hotlinkQUICALPN {
		t.Errorf("unexpected alpn: %v", conf.NextProtos)
	}
}

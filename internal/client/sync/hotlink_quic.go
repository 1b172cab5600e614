package sync

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

const (
	hotlinkQUICEnv     = "SYFTBOX_HOTLINK_QUIC"
	hotlinkQUICOnlyEnv = "SYFTBOX_HOTLINK_QUIC_ONLY"

	hotlinkQUICALPN  = "syftbox-hotlink"
	hotlinkQUICMagic = "HLQ1"

	hotlinkQUICDialTimeout   = 1500 * time.Millisecond
	hotlinkQUICAcceptTimeout = 2500 * time.Millisecond
)

// hotlinkQUICEnabled defaults to on; 0|off|false|disabled turns the
// transport attempt off entirely.
func hotlinkQUICEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(hotlinkQUICEnv))) {
	case "0", "off", "false", "disabled":
		return false
	default:
		return true
	}
}

func hotlinkQUICOnly() bool {
	return os.Getenv(hotlinkQUICOnlyEnv) == "1"
}

// hotlinkQUICPeer wraps an established connection with the single
// bidirectional stream frames flow over.
type hotlinkQUICPeer struct {
	mu     sync.Mutex
	conn   quic.Connection
	stream quic.Stream
}

func (p *hotlinkQUICPeer) WriteFrame(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return fmt.Errorf("hotlink quic stream not ready")
	}
	_, err := p.stream.Write(frame)
	return err
}

func (p *hotlinkQUICPeer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		_ = p.stream.Close()
		p.stream = nil
	}
	if p.conn != nil {
		_ = p.conn.CloseWithError(0, "closed")
		p.conn = nil
	}
}

// listenHotlinkQUIC binds an ephemeral UDP port with a fresh self-signed
// certificate and returns the candidate addresses an offer should carry.
func listenHotlinkQUIC() (*quic.Listener, []string, error) {
	tlsConf, err := hotlinkSelfSignedTLS()
	if err != nil {
		return nil, nil, err
	}
	listener, err := quic.ListenAddr("0.0.0.0:0", tlsConf, &quic.Config{})
	if err != nil {
		return nil, nil, err
	}

	udpAddr, ok := listener.Addr().(*net.UDPAddr)
	if !ok {
		_ = listener.Close()
		return nil, nil, fmt.Errorf("hotlink quic unexpected listener addr %T", listener.Addr())
	}
	port := udpAddr.Port

	addrs := localCandidateAddrs(port)
	if mapped, ok := stunDiscoverAddr(port); ok {
		addrs = append(addrs, mapped)
	}
	if len(addrs) == 0 {
		_ = listener.Close()
		return nil, nil, fmt.Errorf("hotlink quic no candidate addresses")
	}
	return listener, addrs, nil
}

// acceptHotlinkQUIC waits for the answering peer, reads the HLQ1 handshake
// and hands back a peer bound to the accepted stream.
func acceptHotlinkQUIC(listener *quic.Listener, sessionID string) (*hotlinkQUICPeer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), hotlinkQUICAcceptTimeout)
	defer cancel()

	conn, err := listener.Accept(ctx)
	if err != nil {
		return nil, fmt.Errorf("hotlink quic accept: %w", err)
	}
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "no stream")
		return nil, fmt.Errorf("hotlink quic accept stream: %w", err)
	}
	got, err := readQUICHandshake(stream)
	if err != nil {
		_ = conn.CloseWithError(0, "bad handshake")
		return nil, err
	}
	if got != sessionID {
		_ = conn.CloseWithError(0, "session mismatch")
		return nil, fmt.Errorf("hotlink quic handshake session mismatch")
	}
	return &hotlinkQUICPeer{conn: conn, stream: stream}, nil
}

// dialHotlinkQUIC tries each candidate under the dial timeout and completes
// the handshake on the first connection that comes up. The peer's cert is a
// throwaway self-signed one, so verification is skipped on purpose.
func dialHotlinkQUIC(sessionID string, addrs []string) (*hotlinkQUICPeer, error) {
	tlsConf := &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{hotlinkQUICALPN},
	}

	var lastErr error
	for _, addr := range addrs {
		ctx, cancel := context.WithTimeout(context.Background(), hotlinkQUICDialTimeout)
		conn, err := quic.DialAddr(ctx, addr, tlsConf, &quic.Config{})
		cancel()
		if err != nil {
			lastErr = err
			continue
		}
		stream, err := conn.OpenStreamSync(context.Background())
		if err != nil {
			_ = conn.CloseWithError(0, "no stream")
			lastErr = err
			continue
		}
		if err := writeQUICHandshake(stream, sessionID); err != nil {
			_ = conn.CloseWithError(0, "handshake failed")
			lastErr = err
			continue
		}
		return &hotlinkQUICPeer{conn: conn, stream: stream}, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no candidate addresses")
	}
	return nil, fmt.Errorf("hotlink quic dial: %w", lastErr)
}

// handshake: HLQ1 magic, 2-byte big endian length, session id bytes.
func writeQUICHandshake(w io.Writer, sessionID string) error {
	id := []byte(sessionID)
	buf := make([]byte, 0, 4+2+len(id))
	buf = append(buf, hotlinkQUICMagic...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(id)))
	buf = append(buf, id...)
	_, err := w.Write(buf)
	return err
}

func readQUICHandshake(r io.Reader) (string, error) {
	header := make([]byte, 4+2)
	if _, err := io.ReadFull(r, header); err != nil {
		return "", fmt.Errorf("hotlink quic handshake read: %w", err)
	}
	if string(header[:4]) != hotlinkQUICMagic {
		return "", fmt.Errorf("hotlink quic handshake bad magic")
	}
	idLen := binary.BigEndian.Uint16(header[4:6])
	if idLen == 0 || idLen > 256 {
		return "", fmt.Errorf("hotlink quic handshake bad id length %d", idLen)
	}
	id := make([]byte, idLen)
	if _, err := io.ReadFull(r, id); err != nil {
		return "", fmt.Errorf("hotlink quic handshake read id: %w", err)
	}
	return string(id), nil
}

func localCandidateAddrs(port int) []string {
	var addrs []string
	ifaces, err := net.Interfaces()
	if err != nil {
		return addrs
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		ifaceAddrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range ifaceAddrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip == nil {
				continue
			}
			addrs = append(addrs, fmt.Sprintf("%s:%d", ip.String(), port))
		}
	}
	return addrs
}

func hotlinkSelfSignedTLS() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return nil, err
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		DNSNames:     []string{hotlinkQUICALPN},
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{der},
			PrivateKey:  key,
		}},
		NextProtos: []string{hotlinkQUICALPN},
	}, nil
}

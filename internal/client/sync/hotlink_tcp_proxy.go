package sync

import (
	"bufio"
	"context"
	"encoding/hex"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	hotlinkTCPProxyEnv        = "SYFTBOX_HOTLINK_TCP_PROXY"
	hotlinkTCPProxyAddrEnv    = "SYFTBOX_HOTLINK_TCP_PROXY_ADDR"
	hotlinkTCPDumpEnv         = "SYFTBOX_HOTLINK_TCP_DUMP"
	hotlinkTCPDumpFullEnv     = "SYFTBOX_HOTLINK_TCP_DUMP_FULL"
	hotlinkTCPDumpPreviewEnv  = "SYFTBOX_HOTLINK_TCP_DUMP_PREVIEW"
	hotlinkTCPProxySuffix     = ".tcp"
	hotlinkTCPProxyBindRetry  = 500 * time.Millisecond
	hotlinkTCPProxyBindWindow = 30 * time.Second
)

func hotlinkTCPProxyEnabled() bool {
	return os.Getenv(hotlinkTCPProxyEnv) == "1"
}

// hotlinkReorderBuffer releases payloads in strict seq order. Frames may
// arrive reordered when QUIC and websocket delivery interleave; bytes for a
// proxied TCP connection must never be written out of order.
type hotlinkReorderBuffer struct {
	nextSeq uint64
	started bool
	pending map[uint64][]byte
}

func newHotlinkReorderBuffer() *hotlinkReorderBuffer {
	return &hotlinkReorderBuffer{pending: make(map[uint64][]byte)}
}

// Push stores the payload and returns every chunk that is now deliverable,
// in order. The first frame observed anchors the sequence. Stale or
// duplicate seqs are dropped.
func (b *hotlinkReorderBuffer) Push(seq uint64, payload []byte) [][]byte {
	if !b.started {
		b.started = true
		b.nextSeq = seq
	}
	if seq < b.nextSeq {
		return nil
	}
	if _, dup := b.pending[seq]; dup {
		return nil
	}
	b.pending[seq] = payload

	var out [][]byte
	for {
		chunk, ok := b.pending[b.nextSeq]
		if !ok {
			break
		}
		delete(b.pending, b.nextSeq)
		out = append(out, chunk)
		b.nextSeq++
	}
	return out
}

// hotlinkTCPProxy bridges hotlink frames onto plain local TCP connections.
// A client connects and sends its channel path terminated by a newline;
// frames arriving for that path are then streamed to it in seq order.
type hotlinkTCPProxy struct {
	mu       sync.Mutex
	listener net.Listener
	conns    map[string]net.Conn
	buffers  map[string]*hotlinkReorderBuffer
}

func newHotlinkTCPProxy() *hotlinkTCPProxy {
	return &hotlinkTCPProxy{
		conns:   make(map[string]net.Conn),
		buffers: make(map[string]*hotlinkReorderBuffer),
	}
}

func (p *hotlinkTCPProxy) Eligible(path string) bool {
	return strings.HasSuffix(path, hotlinkTCPProxySuffix)
}

func (p *hotlinkTCPProxy) Start(ctx context.Context) error {
	addr := strings.TrimSpace(os.Getenv(hotlinkTCPProxyAddrEnv))
	if addr == "" {
		addr = "127.0.0.1:0"
	} else if !strings.Contains(addr, ":") {
		addr += ":0"
	}

	deadline := time.Now().Add(hotlinkTCPProxyBindWindow)
	var listener net.Listener
	var err error
	for {
		listener, err = net.Listen("tcp", addr)
		if err == nil {
			break
		}
		if time.Now().After(deadline) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(hotlinkTCPProxyBindRetry):
		}
	}

	p.mu.Lock()
	p.listener = listener
	p.mu.Unlock()
	slog.Info("hotlink tcp proxy listening", "addr", listener.Addr().String())

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()
	go p.acceptLoop(ctx, listener)
	return nil
}

func (p *hotlinkTCPProxy) Addr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}

func (p *hotlinkTCPProxy) acceptLoop(ctx context.Context, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Debug("hotlink tcp proxy accept", "error", err)
			return
		}
		go p.register(conn)
	}
}

// register reads the newline-terminated channel path off a fresh connection
// and binds it for delivery. One connection per channel; a newcomer evicts
// the previous one.
func (p *hotlinkTCPProxy) register(conn net.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	channel := strings.TrimSpace(line)
	if channel == "" || !p.Eligible(channel) {
		_ = conn.Close()
		return
	}

	p.mu.Lock()
	if prev := p.conns[channel]; prev != nil {
		_ = prev.Close()
	}
	p.conns[channel] = conn
	p.mu.Unlock()
	slog.Debug("hotlink tcp proxy channel bound", "channel", channel, "remote", conn.RemoteAddr())
}

// Deliver pushes a frame payload through the channel's reorder buffer and
// writes any now-ordered bytes to the bound connection.
func (p *hotlinkTCPProxy) Deliver(path string, seq uint64, payload []byte) {
	p.mu.Lock()
	buf := p.buffers[path]
	if buf == nil {
		buf = newHotlinkReorderBuffer()
		p.buffers[path] = buf
	}
	chunks := buf.Push(seq, payload)
	conn := p.conns[path]
	p.mu.Unlock()

	if len(chunks) == 0 {
		return
	}
	dumpTCPPayloads(path, seq, chunks)
	if conn == nil {
		slog.Debug("hotlink tcp proxy no connection", "channel", path, "dropped", len(chunks))
		return
	}
	for _, chunk := range chunks {
		if _, err := conn.Write(chunk); err != nil {
			slog.Warn("hotlink tcp proxy write failed", "channel", path, "error", err)
			p.mu.Lock()
			if p.conns[path] == conn {
				delete(p.conns, path)
			}
			p.mu.Unlock()
			_ = conn.Close()
			return
		}
	}
}

func dumpTCPPayloads(path string, seq uint64, chunks [][]byte) {
	if os.Getenv(hotlinkTCPDumpEnv) != "1" {
		return
	}
	full := os.Getenv(hotlinkTCPDumpFullEnv) == "1"
	preview := 64
	if v := strings.TrimSpace(os.Getenv(hotlinkTCPDumpPreviewEnv)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 4096 {
			preview = n
		}
	}
	for _, chunk := range chunks {
		dump := chunk
		truncated := false
		if !full && len(dump) > preview {
			dump = dump[:preview]
			truncated = true
		}
		slog.Info("hotlink tcp dump", "channel", path, "seq", seq, "size", len(chunk), "truncated", truncated, "hex", hex.EncodeToString(dump))
	}
}

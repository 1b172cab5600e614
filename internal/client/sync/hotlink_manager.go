package sync

import (
	"bufio"
	"context"
	"crypto/md5"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/openmined/syftbox-client/internal/client/workspace"
	"github.com/openmined/syftbox-client/internal/syftmsg"
	"github.com/openmined/syftbox-client/internal/syftsdk"
	"github.com/openmined/syftbox-client/internal/utils"
)

const (
	hotlinkEnabledEnv    = "SYFTBOX_HOTLINK"
	hotlinkSocketOnlyEnv = "SYFTBOX_HOTLINK_SOCKET_ONLY"
	hotlinkDebugEnv      = "SYFTBOX_HOTLINK_DEBUG"

	hotlinkAcceptName     = "stream.accept"
	hotlinkAcceptDelay    = 200 * time.Millisecond
	hotlinkAcceptTimeout  = 5 * time.Second
	hotlinkConnectTimeout = 30 * time.Second
	hotlinkDedupeMax      = 1024

	hotlinkSignalQUICOffer  = "quic-offer"
	hotlinkSignalQUICAnswer = "quic-answer"
	hotlinkSignalQUICError  = "quic-error"

	hotlinkTelemetryName = "hotlink_telemetry.json"
)

func hotlinkDebugEnabled() bool {
	return os.Getenv(hotlinkDebugEnv) == "1"
}

type hotlinkSession struct {
	id         string
	path       string
	dirAbs     string
	ipcPath    string
	acceptPath string
	done       chan struct{}

	quicMu sync.Mutex
	quic   *hotlinkQUICPeer
}

type hotlinkOutbound struct {
	id       string
	pathKey  string
	accept   chan struct{}
	reject   chan string
	seq      uint64
	accepted bool
	mu       sync.Mutex

	quicOnce sync.Once
	quic     *hotlinkQUICPeer
}

type HotlinkManager struct {
	workspace  *workspace.Workspace
	sdk        *syftsdk.SyftSDK
	enabled    bool
	socketOnly bool

	mu       sync.RWMutex
	sessions map[string]*hotlinkSession

	outMu          sync.RWMutex
	outbound       map[string]*hotlinkOutbound
	outboundByPath map[string]*hotlinkOutbound

	dedupe    *lru.Cache[string, struct{}]
	telemetry *hotlinkTelemetry
	tcpProxy  *hotlinkTCPProxy

	ipcMu      sync.Mutex
	ipcWriters map[string]*hotlinkIPC

	localMu      sync.Mutex
	localReaders map[string]*hotlinkLocalReader
}

func NewHotlinkManager(ws *workspace.Workspace, sdk *syftsdk.SyftSDK) *HotlinkManager {
	dedupe, _ := lru.New[string, struct{}](hotlinkDedupeMax)
	h := &HotlinkManager{
		workspace:      ws,
		sdk:            sdk,
		enabled:        os.Getenv(hotlinkEnabledEnv) == "1",
		socketOnly:     os.Getenv(hotlinkSocketOnlyEnv) == "1",
		sessions:       make(map[string]*hotlinkSession),
		outbound:       make(map[string]*hotlinkOutbound),
		outboundByPath: make(map[string]*hotlinkOutbound),
		dedupe:         dedupe,
		ipcWriters:     make(map[string]*hotlinkIPC),
		localReaders:   make(map[string]*hotlinkLocalReader),
	}
	if h.enabled && ws != nil {
		telemetryPath := filepath.Join(ws.DatasitesDir, ws.Owner, ".syftbox", hotlinkTelemetryName)
		h.telemetry = newHotlinkTelemetry(telemetryPath)
	}
	if h.enabled && !h.socketOnly && hotlinkTCPProxyEnabled() {
		h.tcpProxy = newHotlinkTCPProxy()
	}
	if h.enabled && hotlinkDebugEnabled() {
		slog.Info("hotlink config",
			"socketOnly", h.socketOnly,
			"quic", hotlinkQUICEnabled(),
			"quicOnly", hotlinkQUICOnly(),
			"tcpProxy", h.tcpProxy != nil,
			"ipcMode", hotlinkIPCMode(),
		)
	}
	return h
}

// Close tears down open sessions and flushes the telemetry snapshot.
func (h *HotlinkManager) Close() {
	h.mu.Lock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	for _, id := range ids {
		h.closeSession(id)
	}

	h.outMu.RLock()
	outIDs := make([]string, 0, len(h.outbound))
	for id := range h.outbound {
		outIDs = append(outIDs, id)
	}
	h.outMu.RUnlock()
	for _, id := range outIDs {
		h.removeOutbound(id)
	}

	h.telemetry.Flush()
}

func (h *HotlinkManager) Enabled() bool {
	return h.enabled
}

func (h *HotlinkManager) SocketOnly() bool {
	return h.socketOnly
}

// StartLocalReaders launches the background pieces of the overlay: the
// local SDK reader discovery loop and, when configured, the TCP proxy.
func (h *HotlinkManager) StartLocalReaders(ctx context.Context) {
	if !h.enabled {
		return
	}
	if h.tcpProxy != nil {
		if err := h.tcpProxy.Start(ctx); err != nil {
			slog.Warn("hotlink tcp proxy start failed", "error", err)
			h.tcpProxy = nil
		}
	}
	if h.socketOnly {
		go h.scanLocalReaders(ctx)
	}
}

func (h *HotlinkManager) scanLocalReaders(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.discoverLocalReaders()
		}
	}
}

func (h *HotlinkManager) discoverLocalReaders() {
	root := filepath.Join(h.workspace.UserDir, "app_data")
	pattern := filepath.Join(root, "*", "rpc", "*", hotlinkIPCMarkerName())
	paths, err := filepath.Glob(pattern)
	if err != nil || len(paths) == 0 {
		return
	}
	for _, markerPath := range paths {
		h.localMu.Lock()
		if _, exists := h.localReaders[markerPath]; exists {
			h.localMu.Unlock()
			continue
		}
		reader := &hotlinkLocalReader{
			markerPath: markerPath,
			manager:    h,
		}
		h.localReaders[markerPath] = reader
		h.localMu.Unlock()
		go reader.run()
	}
}

func (h *HotlinkManager) HandleOpen(msg *syftmsg.Message) {
	if !h.enabled {
		return
	}

	open, ok := hotlinkOpenFromMsg(msg)
	if !ok {
		slog.Error("hotlink open invalid payload", "msgId", msg.Id)
		return
	}

	dirRel := open.Path
	if isHotlinkEligible(open.Path) {
		dirRel = filepath.Dir(open.Path)
	}
	dirAbs := h.workspace.DatasiteAbsPath(dirRel)
	if err := utils.EnsureDir(dirAbs); err != nil {
		slog.Error("hotlink open ensure dir", "path", dirAbs, "error", err)
		return
	}

	session := &hotlinkSession{
		id:         open.SessionID,
		path:       open.Path,
		dirAbs:     dirAbs,
		ipcPath:    filepath.Join(dirAbs, hotlinkIPCMarkerName()),
		acceptPath: filepath.Join(dirAbs, hotlinkAcceptName),
		done:       make(chan struct{}),
	}

	if err := ensureHotlinkIPC(session.ipcPath); err != nil {
		slog.Error("hotlink open ipc setup failed", "path", session.ipcPath, "error", err)
		_ = h.sdk.Events.Send(syftmsg.NewHotlinkReject(open.SessionID, "ipc unavailable"))
		return
	}

	if writer := h.getIPCWriter(session.ipcPath); writer != nil {
		if err := writer.EnsureListener(); err != nil {
			slog.Warn("hotlink ipc listen failed", "path", session.ipcPath, "error", err)
		}
	}

	h.mu.Lock()
	h.sessions[session.id] = session
	h.mu.Unlock()

	if utils.FileExists(session.acceptPath) {
		if err := h.sdk.Events.Send(syftmsg.NewHotlinkAccept(session.id)); err != nil {
			slog.Warn("hotlink accept send failed", "session", session.id, "error", err)
		}
		return
	}
	go h.waitForAccept(session)
}

func (h *HotlinkManager) HandleAccept(msg *syftmsg.Message) {
	if !h.enabled {
		return
	}
	accept, ok := hotlinkAcceptFromMsg(msg)
	if !ok {
		slog.Error("hotlink accept invalid payload", "msgId", msg.Id)
		return
	}

	h.outMu.RLock()
	out := h.outbound[accept.SessionID]
	h.outMu.RUnlock()
	if out != nil {
		out.mu.Lock()
		if !out.accepted {
			out.accepted = true
			close(out.accept)
		}
		out.mu.Unlock()
	}
}

func (h *HotlinkManager) HandleReject(msg *syftmsg.Message) {
	if !h.enabled {
		return
	}
	reject, ok := hotlinkRejectFromMsg(msg)
	if !ok {
		slog.Error("hotlink reject invalid payload", "msgId", msg.Id)
		return
	}
	if out := h.removeOutbound(reject.SessionID); out != nil {
		select {
		case out.reject <- reject.Reason:
		default:
		}
		return
	}
	h.closeSession(reject.SessionID)
}

func (h *HotlinkManager) HandleData(msg *syftmsg.Message) {
	if !h.enabled {
		return
	}
	data, ok := hotlinkDataFromMsg(msg)
	if !ok {
		slog.Error("hotlink data invalid payload", "msgId", msg.Id)
		return
	}

	h.mu.RLock()
	session := h.sessions[data.SessionID]
	h.mu.RUnlock()
	if session == nil {
		return
	}
	h.deliverInbound(session, data.Path, data.ETag, data.Seq, data.Payload)
}

// HandleSignal routes the QUIC offer/answer exchange riding the event bus.
func (h *HotlinkManager) HandleSignal(msg *syftmsg.Message) {
	if !h.enabled {
		return
	}
	sig, ok := hotlinkSignalFromMsg(msg)
	if !ok {
		slog.Error("hotlink signal invalid payload", "msgId", msg.Id)
		return
	}

	switch sig.Kind {
	case hotlinkSignalQUICOffer:
		go h.handleQUICOffer(sig)
	case hotlinkSignalQUICAnswer:
		h.telemetry.QuicAnswerOk()
		slog.Debug("hotlink quic answer", "session", sig.SessionID)
	case hotlinkSignalQUICError:
		h.telemetry.QuicAnswerErr()
		slog.Debug("hotlink quic error", "session", sig.SessionID, "error", sig.Error)
	default:
		slog.Debug("hotlink signal unknown kind", "kind", sig.Kind, "session", sig.SessionID)
	}
}

// handleQUICOffer runs on the receiving side of a session: dial the
// offered candidates, handshake, answer, then read frames off the stream.
func (h *HotlinkManager) handleQUICOffer(sig syftmsg.HotlinkSignal) {
	h.mu.RLock()
	session := h.sessions[sig.SessionID]
	h.mu.RUnlock()
	if session == nil {
		slog.Debug("hotlink quic offer for unknown session", "session", sig.SessionID)
		return
	}

	peer, err := dialHotlinkQUIC(sig.SessionID, sig.Addrs)
	if err != nil {
		slog.Debug("hotlink quic dial failed", "session", sig.SessionID, "error", err)
		_ = h.sdk.Events.Send(syftmsg.NewHotlinkSignal(sig.SessionID, hotlinkSignalQUICError, nil, sig.Token, err.Error()))
		return
	}

	session.quicMu.Lock()
	if session.quic != nil {
		session.quic.Close()
	}
	session.quic = peer
	session.quicMu.Unlock()

	if err := h.sdk.Events.Send(syftmsg.NewHotlinkSignal(sig.SessionID, hotlinkSignalQUICAnswer, nil, sig.Token, "")); err != nil {
		slog.Warn("hotlink quic answer send failed", "session", sig.SessionID, "error", err)
	}
	slog.Info("hotlink quic established", "session", sig.SessionID, "role", "answer")
	go h.quicReadLoop(session, peer)
}

func (h *HotlinkManager) quicReadLoop(session *hotlinkSession, peer *hotlinkQUICPeer) {
	defer peer.Close()
	reader := bufio.NewReader(peer.stream)
	for {
		frame, err := decodeHotlinkFrame(reader)
		if err != nil {
			slog.Debug("hotlink quic read loop ended", "session", session.id, "error", err)
			return
		}
		h.deliverInbound(session, frame.path, frame.etag, frame.seq, frame.payload)
	}
}

// deliverInbound routes one inbound frame regardless of transport: proxied
// TCP channels go through the reorder buffer, everything else to the IPC
// writer bound to the session's marker.
func (h *HotlinkManager) deliverInbound(session *hotlinkSession, path, etag string, seq uint64, payload []byte) {
	if len(payload) == 0 {
		return
	}

	framePath := session.path
	if strings.TrimSpace(path) != "" {
		framePath = path
	}

	start := time.Now()

	if h.tcpProxy != nil && h.tcpProxy.Eligible(framePath) {
		h.tcpProxy.Deliver(framePath, seq, payload)
		h.telemetry.RxReceived(len(payload), time.Since(start))
		return
	}

	etag = strings.TrimSpace(etag)
	if etag == "" {
		etag = fmt.Sprintf("%x", md5.Sum(payload))
	}
	if h.seenFrame(framePath, etag) {
		return
	}

	writer := h.getIPCWriter(session.ipcPath)
	if writer == nil {
		return
	}
	frame := encodeHotlinkFrame(framePath, etag, seq, payload)
	if err := writer.Write(frame); err != nil {
		slog.Warn("hotlink ipc write failed", "session", session.id, "error", err)
		return
	}
	h.telemetry.RxReceived(len(payload), time.Since(start))
	slog.Debug("hotlink ipc wrote", "session", session.id, "bytes", len(frame))
	if latencyTraceEnabled() {
		if ts, ok := payloadTimestampNs(payload); ok {
			slog.Info("latency_trace hotlink_ipc_written", "path", framePath, "age_ms", (time.Now().UnixNano()-ts)/1_000_000, "size", len(payload))
		}
	}
}

func (h *HotlinkManager) seenFrame(path, etag string) bool {
	if etag == "" || h.dedupe == nil {
		return false
	}
	key := path + "|" + etag
	found, _ := h.dedupe.ContainsOrAdd(key, struct{}{})
	return found
}

func (h *HotlinkManager) HandleClose(msg *syftmsg.Message) {
	if !h.enabled {
		return
	}
	closeMsg, ok := hotlinkCloseFromMsg(msg)
	if !ok {
		slog.Error("hotlink close invalid payload", "msgId", msg.Id)
		return
	}

	if out := h.removeOutbound(closeMsg.SessionID); out != nil {
		select {
		case out.reject <- closeMsg.Reason:
		default:
		}
		return
	}

	session := h.closeSession(closeMsg.SessionID)
	if session != nil && closeMsg.Reason == "fallback" {
		go h.replayFallback(session)
	}
}

func (h *HotlinkManager) waitForAccept(session *hotlinkSession) {
	ticker := time.NewTicker(hotlinkAcceptDelay)
	defer ticker.Stop()

	deadline := time.Now().Add(hotlinkAcceptTimeout)
	for {
		select {
		case <-session.done:
			return
		case <-ticker.C:
			if !utils.FileExists(session.acceptPath) {
				if time.Now().After(deadline) {
					return
				}
				continue
			}
			if err := h.sdk.Events.Send(syftmsg.NewHotlinkAccept(session.id)); err != nil {
				slog.Warn("hotlink accept send failed", "session", session.id, "error", err)
			}
			return
		}
	}
}

func (h *HotlinkManager) closeSession(id string) *hotlinkSession {
	h.mu.Lock()
	session := h.sessions[id]
	if session != nil {
		delete(h.sessions, id)
	}
	h.mu.Unlock()

	if session == nil {
		return nil
	}

	session.quicMu.Lock()
	if session.quic != nil {
		session.quic.Close()
		session.quic = nil
	}
	session.quicMu.Unlock()

	close(session.done)
	return session
}

func (h *HotlinkManager) replayFallback(session *hotlinkSession) {
	if session == nil {
		return
	}
	pattern := filepath.Join(session.dirAbs, "*.request")
	files, err := filepath.Glob(pattern)
	if err != nil || len(files) == 0 {
		return
	}
	sort.Strings(files)

	var seq uint64
	for _, path := range files {
		payload, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if len(payload) == 0 {
			continue
		}
		rel, err := h.workspace.DatasiteRelPath(path)
		if err != nil {
			continue
		}
		etag := fmt.Sprintf("%x", md5.Sum(payload))
		if h.seenFrame(rel, etag) {
			continue
		}
		seq++
		frame := encodeHotlinkFrame(rel, etag, seq, payload)
		writer := h.getIPCWriter(session.ipcPath)
		if writer == nil {
			return
		}
		if err := writer.Write(frame); err != nil {
			return
		}
	}
}

type hotlinkIPC struct {
	path         string
	mu           sync.Mutex
	listener     net.Listener
	conn         net.Conn
	readerActive bool
}

func (f *hotlinkIPC) EnsureListener() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listener != nil {
		return nil
	}
	listener, err := listenHotlinkIPC(f.path)
	if err != nil {
		return err
	}
	f.listener = listener
	return nil
}

func (f *hotlinkIPC) Write(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listener == nil {
		listener, err := listenHotlinkIPC(f.path)
		if err != nil {
			return err
		}
		f.listener = listener
	}
	if f.conn == nil {
		conn, err := acceptHotlinkConn(f.listener, hotlinkConnectTimeout)
		if err != nil {
			return err
		}
		if f.conn != nil {
			_ = f.conn.Close()
		}
		f.conn = conn
	}
	if _, err := f.conn.Write(payload); err != nil {
		_ = f.conn.Close()
		f.conn = nil
		return err
	}
	return nil
}

func (f *hotlinkIPC) AcceptForRead() (net.Conn, error) {
	f.mu.Lock()
	if f.listener == nil {
		listener, err := listenHotlinkIPC(f.path)
		if err != nil {
			f.mu.Unlock()
			return nil, err
		}
		f.listener = listener
	}
	listener := f.listener
	f.mu.Unlock()

	conn, err := acceptHotlinkConn(listener, hotlinkConnectTimeout)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	if f.conn != nil {
		_ = f.conn.Close()
	}
	f.conn = conn
	f.readerActive = true
	f.mu.Unlock()
	return conn, nil
}

func (h *HotlinkManager) getIPCWriter(path string) *hotlinkIPC {
	h.ipcMu.Lock()
	defer h.ipcMu.Unlock()
	w := h.ipcWriters[path]
	if w == nil {
		w = &hotlinkIPC{path: path}
		h.ipcWriters[path] = w
	}
	return w
}

func hotlinkOpenFromMsg(msg *syftmsg.Message) (syftmsg.HotlinkOpen, bool) {
	switch v := msg.Data.(type) {
	case syftmsg.HotlinkOpen:
		return v, true
	case *syftmsg.HotlinkOpen:
		return *v, true
	default:
		return syftmsg.HotlinkOpen{}, false
	}
}

func hotlinkAcceptFromMsg(msg *syftmsg.Message) (syftmsg.HotlinkAccept, bool) {
	switch v := msg.Data.(type) {
	case syftmsg.HotlinkAccept:
		return v, true
	case *syftmsg.HotlinkAccept:
		return *v, true
	default:
		return syftmsg.HotlinkAccept{}, false
	}
}

func hotlinkRejectFromMsg(msg *syftmsg.Message) (syftmsg.HotlinkReject, bool) {
	switch v := msg.Data.(type) {
	case syftmsg.HotlinkReject:
		return v, true
	case *syftmsg.HotlinkReject:
		return *v, true
	default:
		return syftmsg.HotlinkReject{}, false
	}
}

func hotlinkDataFromMsg(msg *syftmsg.Message) (syftmsg.HotlinkData, bool) {
	switch v := msg.Data.(type) {
	case syftmsg.HotlinkData:
		return v, true
	case *syftmsg.HotlinkData:
		return *v, true
	default:
		return syftmsg.HotlinkData{}, false
	}
}

func hotlinkCloseFromMsg(msg *syftmsg.Message) (syftmsg.HotlinkClose, bool) {
	switch v := msg.Data.(type) {
	case syftmsg.HotlinkClose:
		return v, true
	case *syftmsg.HotlinkClose:
		return *v, true
	default:
		return syftmsg.HotlinkClose{}, false
	}
}

func hotlinkSignalFromMsg(msg *syftmsg.Message) (syftmsg.HotlinkSignal, bool) {
	switch v := msg.Data.(type) {
	case syftmsg.HotlinkSignal:
		return v, true
	case *syftmsg.HotlinkSignal:
		return *v, true
	default:
		return syftmsg.HotlinkSignal{}, false
	}
}

func (h *HotlinkManager) SendBestEffort(relPath string, etag string, payload []byte) {
	if !h.enabled {
		return
	}
	if !isHotlinkEligible(relPath) {
		return
	}
	if len(payload) == 0 {
		return
	}
	if strings.TrimSpace(etag) == "" {
		etag = fmt.Sprintf("%x", md5.Sum(payload))
	}
	go h.sendHotlink(relPath, etag, payload)
}

func (h *HotlinkManager) sendHotlink(relPath string, etag string, payload []byte) {
	pathKey := filepath.Dir(relPath)
	out := h.getOrOpenOutbound(pathKey, relPath)
	if out == nil {
		return
	}

	if !h.waitAccepted(out, hotlinkAcceptTimeout) {
		_ = h.sdk.Events.Send(syftmsg.NewHotlinkClose(out.id, "fallback"))
		h.removeOutbound(out.id)
		return
	}

	if hotlinkQUICEnabled() {
		out.quicOnce.Do(func() { h.offerQUIC(out) })
	}

	out.mu.Lock()
	out.seq++
	seq := out.seq
	peer := out.quic
	out.mu.Unlock()

	start := time.Now()
	if peer != nil {
		frame := encodeHotlinkFrame(relPath, etag, seq, payload)
		if err := peer.WriteFrame(frame); err == nil {
			h.telemetry.TxSent(len(payload), time.Since(start), true)
			return
		} else {
			slog.Debug("hotlink quic send failed", "session", out.id, "error", err)
			out.mu.Lock()
			if out.quic == peer {
				out.quic = nil
			}
			out.mu.Unlock()
			peer.Close()
		}
	}

	if hotlinkQUICOnly() {
		slog.Warn("hotlink send dropped", "session", out.id, "path", relPath, "reason", "quic unavailable in quic-only mode")
		return
	}

	if err := h.sdk.Events.Send(syftmsg.NewHotlinkData(out.id, seq, relPath, etag, payload)); err != nil {
		_ = h.sdk.Events.Send(syftmsg.NewHotlinkClose(out.id, "fallback"))
		h.removeOutbound(out.id)
		return
	}
	h.telemetry.TxSent(len(payload), time.Since(start), false)
	if hotlinkQUICEnabled() {
		h.telemetry.WsFallback()
	}
}

// offerQUIC binds a UDP listener, ships the candidate addresses through the
// signaling channel and waits for the peer to dial back. Runs detached so
// early sends keep flowing over the event bus until the link is up.
func (h *HotlinkManager) offerQUIC(out *hotlinkOutbound) {
	go func() {
		listener, addrs, err := listenHotlinkQUIC()
		if err != nil {
			slog.Debug("hotlink quic listen failed", "session", out.id, "error", err)
			return
		}
		defer listener.Close()

		h.telemetry.QuicOffer()
		token := uuid.NewString()
		if err := h.sdk.Events.Send(syftmsg.NewHotlinkSignal(out.id, hotlinkSignalQUICOffer, addrs, token, "")); err != nil {
			slog.Debug("hotlink quic offer send failed", "session", out.id, "error", err)
			return
		}

		peer, err := acceptHotlinkQUIC(listener, out.id)
		if err != nil {
			slog.Debug("hotlink quic offer not taken", "session", out.id, "error", err)
			return
		}

		out.mu.Lock()
		out.quic = peer
		out.mu.Unlock()
		slog.Info("hotlink quic established", "session", out.id, "role", "offer")
	}()
}

func (h *HotlinkManager) getOrOpenOutbound(pathKey, relPath string) *hotlinkOutbound {
	h.outMu.RLock()
	existing := h.outboundByPath[pathKey]
	h.outMu.RUnlock()
	if existing != nil {
		return existing
	}
	return h.openOutbound(pathKey, relPath)
}

func (h *HotlinkManager) openOutbound(pathKey, relPath string) *hotlinkOutbound {
	sessionID := uuid.NewString()
	out := &hotlinkOutbound{
		id:      sessionID,
		pathKey: pathKey,
		accept:  make(chan struct{}),
		reject:  make(chan string, 1),
	}

	h.outMu.Lock()
	h.outbound[sessionID] = out
	h.outboundByPath[pathKey] = out
	h.outMu.Unlock()

	if err := h.sdk.Events.Send(syftmsg.NewHotlinkOpen(sessionID, relPath)); err != nil {
		h.removeOutbound(sessionID)
		return nil
	}
	return out
}

func (h *HotlinkManager) waitAccepted(out *hotlinkOutbound, timeout time.Duration) bool {
	out.mu.Lock()
	if out.accepted {
		out.mu.Unlock()
		return true
	}
	out.mu.Unlock()

	select {
	case <-out.accept:
		return true
	case <-out.reject:
		return false
	case <-time.After(timeout):
		return false
	}
}

func (h *HotlinkManager) removeOutbound(id string) *hotlinkOutbound {
	h.outMu.Lock()
	out := h.outbound[id]
	if out != nil {
		delete(h.outbound, id)
		if current := h.outboundByPath[out.pathKey]; current == out {
			delete(h.outboundByPath, out.pathKey)
		}
	}
	h.outMu.Unlock()

	if out != nil {
		out.mu.Lock()
		if out.quic != nil {
			out.quic.Close()
			out.quic = nil
		}
		out.mu.Unlock()
	}
	return out
}

func isHotlinkEligible(relPath string) bool {
	return strings.HasSuffix(relPath, ".request") || strings.HasSuffix(relPath, ".response")
}

func acceptHotlinkConn(listener net.Listener, timeout time.Duration) (net.Conn, error) {
	if listener == nil {
		return nil, fmt.Errorf("hotlink listener not available")
	}
	if dl, ok := listener.(interface{ SetDeadline(time.Time) error }); ok {
		_ = dl.SetDeadline(time.Now().Add(timeout))
		conn, err := listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, fmt.Errorf("timeout waiting for hotlink ipc connection")
			}
			return nil, err
		}
		return conn, nil
	}

	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := listener.Accept()
		ch <- result{conn: conn, err: err}
	}()
	select {
	case res := <-ch:
		return res.conn, res.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("timeout waiting for hotlink ipc connection")
	}
}

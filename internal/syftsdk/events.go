package syftsdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/openmined/syftbox-client/internal/syftmsg"
	"github.com/openmined/syftbox-client/internal/wsproto"
)

const (
	eventsBufferSize        = 256
	eventsReconnectDelay    = 1 * time.Second
	eventsMaxReconnectDelay = 5 * time.Second
	eventsReconnectTimeout  = 10 * time.Second
	eventsAckTimeout        = 5 * time.Second
	wsClientMaxMessageSize  = 4 * 1024 * 1024 // 4MB
	eventsPath              = "/api/v1/events"

	// client → server: preference list. server → client: chosen encoding.
	HeaderWSEncodings = "X-Syft-WS-Encodings"
	HeaderWSEncoding  = "X-Syft-WS-Encoding"
)

// ErrNackReceived wraps a Nack payload returned for an acked send.
var ErrNackReceived = errors.New("events: nack received")

type headerProvider func() http.Header
type reauthFunc func(ctx context.Context) error

// EventsAPI manages real-time event communication over the websocket.
type EventsAPI struct {
	baseURL string
	headers headerProvider
	reauth  reauthFunc

	wsClient         *wsClient
	messages         chan *syftmsg.Message
	ctx              context.Context
	cancel           context.CancelFunc
	mu               sync.RWMutex
	connected        bool
	reconnectAttempt int

	pendingAcks map[string]chan error
	muAcks      sync.Mutex

	stats *wsStats
}

func newEventsAPI(baseURL string, headers headerProvider, reauth reauthFunc) *EventsAPI {
	ctx, cancel := context.WithCancel(context.Background())

	return &EventsAPI{
		baseURL:     baseURL,
		headers:     headers,
		reauth:      reauth,
		ctx:         ctx,
		cancel:      cancel,
		messages:    make(chan *syftmsg.Message, eventsBufferSize),
		pendingAcks: make(map[string]chan error),
		stats:       newWSStats(),
	}
}

// Connect initiates a WebSocket connection
func (e *EventsAPI) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.connected && e.wsClient != nil {
		return nil
	}

	wsClient, err := e.connectLocked(ctx)
	if err != nil {
		return fmt.Errorf("sdk: events: connect failed: %w", err)
	}

	go e.manageConnection(wsClient)
	return nil
}

// IsConnected returns the current connection status
func (e *EventsAPI) IsConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.connected
}

// Get returns a channel for receiving WebSocket messages
func (e *EventsAPI) Get() <-chan *syftmsg.Message {
	return e.messages
}

// Send queues a message for the websocket. Returns immediately; delivery
// is best-effort.
func (e *EventsAPI) Send(msg *syftmsg.Message) error {
	e.mu.RLock()
	wsClient := e.wsClient
	connected := e.connected
	e.mu.RUnlock()

	if !connected || wsClient == nil {
		return ErrEventsNotConnected
	}

	select {
	case wsClient.msgTx <- msg:
		slog.Debug("socketmgr tx", "id", msg.Id, "type", msg.Type)
		return nil
	default:
		return ErrEventsMessageQueueFull
	}
}

// SendWithAck sends a message and blocks until the server responds with an
// Ack or Nack carrying the message id, the timeout elapses, or the
// connection drops. A disconnect resolves the wait with
// ErrEventsDisconnected: delivery is unknown, so the caller must not treat
// it as acked and should leave the file to the normal sync path.
func (e *EventsAPI) SendWithAck(ctx context.Context, msg *syftmsg.Message) error {
	ackCh := make(chan error, 1)

	e.muAcks.Lock()
	e.pendingAcks[msg.Id] = ackCh
	e.muAcks.Unlock()

	defer func() {
		e.muAcks.Lock()
		delete(e.pendingAcks, msg.Id)
		e.muAcks.Unlock()
	}()

	if err := e.Send(msg); err != nil {
		return err
	}

	select {
	case err := <-ackCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(eventsAckTimeout):
		return fmt.Errorf("events: ack timeout for %s", msg.Id)
	}
}

// resolveAck completes a pending SendWithAck, if any.
func (e *EventsAPI) resolveAck(originalId string, err error) bool {
	e.muAcks.Lock()
	ch, ok := e.pendingAcks[originalId]
	if ok {
		delete(e.pendingAcks, originalId)
	}
	e.muAcks.Unlock()

	if ok {
		ch <- err
	}
	return ok
}

// resolveAllAcks fails every pending waiter with ErrEventsDisconnected.
// Called on disconnect.
func (e *EventsAPI) resolveAllAcks() {
	e.muAcks.Lock()
	for id, ch := range e.pendingAcks {
		delete(e.pendingAcks, id)
		ch <- ErrEventsDisconnected
	}
	e.muAcks.Unlock()
}

// Stats returns a snapshot of the websocket connection state.
func (e *EventsAPI) Stats() EventsStatsSnapshot {
	e.mu.RLock()
	wsClient := e.wsClient
	connected := e.connected
	attempt := e.reconnectAttempt
	e.mu.RUnlock()

	snap := EventsStatsSnapshot{
		Connected:        connected,
		ReconnectAttempt: attempt,
		Reconnects:       e.stats.reconnects.Load(),
		RxQueueLen:       len(e.messages),
		BytesSentTotal:   e.stats.bytesSent.Load(),
		BytesRecvTotal:   e.stats.bytesRecv.Load(),
		ConnectedAtNs:    e.stats.connectedAtNs.Load(),
		DisconnectedAtNs: e.stats.disconnAtNs.Load(),
		LastSentAtNs:     e.stats.lastSentNs.Load(),
		LastRecvAtNs:     e.stats.lastRecvNs.Load(),
		LastPingAtNs:     e.stats.lastPingNs.Load(),
	}
	if lastErr, _ := e.stats.lastErrorValue.Load().(string); lastErr != "" {
		snap.LastError = lastErr
	}
	if wsClient != nil {
		snap.Encoding = wsClient.encoding.String()
		snap.TxQueueLen = len(wsClient.msgTx)
	}
	return snap
}

// Close terminates the WebSocket connection and cleans up
func (e *EventsAPI) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancel()

	if e.wsClient != nil {
		e.wsClient.Close()
		e.wsClient = nil
	}

	e.connected = false
	e.resolveAllAcks()
	slog.Info("socketmgr closed")
}

// connectLocked creates a new WebSocket connection (must be called with lock held)
func (e *EventsAPI) connectLocked(ctx context.Context) (*wsClient, error) {
	// Clean up any existing connection
	if e.wsClient != nil {
		e.wsClient.Close()
		e.wsClient = nil
		e.connected = false
	}

	conn, enc, err := e.dial(ctx)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(wsClientMaxMessageSize)

	wsClient := newWSClient(conn, enc, e.stats)
	wsClient.Start(e.ctx)

	e.wsClient = wsClient
	e.connected = true
	e.stats.onConnected()

	slog.Info("socketmgr client connected", "encoding", enc)
	return wsClient, nil
}

// dial connects once, retrying a single time after a token refresh when the
// server rejects the connection with 401.
func (e *EventsAPI) dial(ctx context.Context) (*websocket.Conn, wsproto.Encoding, error) {
	wsURL, err := e.fullURL()
	if err != nil {
		return nil, wsproto.EncodingJSON, fmt.Errorf("sdk: events: bad url: %w", err)
	}

	headers := e.headers()
	headers.Set(HeaderWSEncodings, "msgpack,json")

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized && e.reauth != nil {
			slog.Info("socketmgr got 401, refreshing tokens")
			if rerr := e.reauth(ctx); rerr != nil {
				return nil, wsproto.EncodingJSON, fmt.Errorf("sdk: events: reauth: %w", rerr)
			}
			headers = e.headers()
			headers.Set(HeaderWSEncodings, "msgpack,json")
			conn, resp, err = websocket.Dial(ctx, wsURL, &websocket.DialOptions{
				HTTPHeader: headers,
			})
		}
		if err != nil {
			return nil, wsproto.EncodingJSON, fmt.Errorf("sdk: events: dial %s: %w", wsURL, err)
		}
	}

	enc := wsproto.EncodingJSON
	if resp != nil {
		enc = wsproto.PreferredEncoding(resp.Header.Get(HeaderWSEncoding))
	}
	return conn, enc, nil
}

// manageConnection handles the WebSocket connection lifecycle
func (e *EventsAPI) manageConnection(wsClient *wsClient) {
	go e.consumeMessages(wsClient)

	select {
	case <-wsClient.closed:
		slog.Info("socketmgr client disconnected, will reconnect")
		e.stats.onDisconnected()

		e.mu.Lock()
		if e.wsClient == wsClient {
			e.wsClient = nil
			e.connected = false
			e.reconnectAttempt = 0
		}
		e.mu.Unlock()

		// anything awaiting an ack can't be resolved on this connection
		e.resolveAllAcks()

		select {
		case <-e.ctx.Done():
			return
		default:
			e.reconnectWithBackoff()
		}

	case <-e.ctx.Done():
		return
	}
}

// consumeMessages processes incoming messages from the websocket client
func (e *EventsAPI) consumeMessages(wsClient *wsClient) {
	for {
		select {
		case <-e.ctx.Done():
			return

		case <-wsClient.closed:
			return

		case msg, ok := <-wsClient.msgRx:
			if !ok {
				slog.Debug("socketmgr rx closed")
				return
			}

			slog.Debug("socketmgr rx", "id", msg.Id, "type", msg.Type)

			// acks and nacks terminate pending sends and are not forwarded
			switch data := msg.Data.(type) {
			case syftmsg.Ack:
				if e.resolveAck(data.OriginalId, nil) {
					continue
				}
			case syftmsg.Nack:
				if e.resolveAck(data.OriginalId, fmt.Errorf("%w: %s", ErrNackReceived, data.Error)) {
					continue
				}
			}

			select {
			case e.messages <- msg:
				// Successfully delivered
			default:
				slog.Warn("socketmgr rx buffer full. dropped", "id", msg.Id, "type", msg.Type)
			}
		}
	}
}

// reconnectWithBackoff attempts to reconnect with exponential backoff
func (e *EventsAPI) reconnectWithBackoff() {
	delay := eventsReconnectDelay

	for {
		e.reconnectAttempt++

		// Check if we've been cancelled
		select {
		case <-e.ctx.Done():
			return
		case <-time.After(delay):
			// Continue with reconnect
		}

		slog.Info("socketmgr attempting reconnection", "attempt", e.reconnectAttempt, "delay", delay)

		ctx, cancel := context.WithTimeout(e.ctx, eventsReconnectTimeout)

		e.mu.Lock()
		wsClient, err := e.connectLocked(ctx)
		e.mu.Unlock()

		cancel()

		if err == nil {
			go e.manageConnection(wsClient)
			return
		}
		e.stats.setLastError(err)

		// Add some jitter to the delay
		delay = min(delay*2, eventsMaxReconnectDelay)
		jitterFactor := 0.75 + (rand.Float64() * 0.5)
		delay = time.Duration(float64(delay) * jitterFactor)
	}
}

// fullURL builds the complete WebSocket URL
func (e *EventsAPI) fullURL() (string, error) {
	fullURL, err := url.JoinPath(e.baseURL, eventsPath)
	if err != nil {
		return "", fmt.Errorf("failed to join path: %w", err)
	}
	return toWebsocketURL(fullURL), nil
}

// toWebsocketURL converts an HTTP URL to a WebSocket URL
func toWebsocketURL(url string) string {
	if strings.HasPrefix(url, "https://") {
		return "wss://" + url[8:]
	} else if strings.HasPrefix(url, "http://") {
		return "ws://" + url[7:]
	}
	return url
}

package syftsdk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/openmined/syftbox-client/internal/syftmsg"
	"github.com/openmined/syftbox-client/internal/wsproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ackingServer accepts one websocket connection and answers every received
// message per the reply function.
func ackingServer(t *testing.T, reply func(msg *syftmsg.Message) *syftmsg.Message) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		enc := wsproto.PreferredEncoding(r.Header.Get(HeaderWSEncodings))
		ctx := r.Context()
		for {
			typ, raw, err := conn.Read(ctx)
			if err != nil {
				return
			}
			msg, _, err := wsproto.Unmarshal(typ, raw)
			if err != nil {
				continue
			}
			if out := reply(msg); out != nil {
				wtyp, payload, err := wsproto.Marshal(out, enc)
				if err != nil {
					continue
				}
				if err := conn.Write(ctx, wtyp, payload); err != nil {
					return
				}
			}
		}
	}))
}

func newTestEventsAPI(baseURL string) *EventsAPI {
	return newEventsAPI(baseURL, func() http.Header {
		return http.Header{}
	}, nil)
}

func TestEventsSendWithAck(t *testing.T) {
	t.Run("ack resolves the waiter", func(t *testing.T) {
		ts := ackingServer(t, func(msg *syftmsg.Message) *syftmsg.Message {
			return syftmsg.NewAck(msg.Id)
		})
		defer ts.Close()

		events := newTestEventsAPI(ts.URL)
		defer events.Close()
		require.NoError(t, events.Connect(context.Background()))

		msg := syftmsg.NewFileWrite("alice@example.com/public/x.txt", "etag", 2, []byte("hi"))
		require.NoError(t, events.SendWithAck(context.Background(), msg))
	})

	t.Run("nack surfaces the error", func(t *testing.T) {
		ts := ackingServer(t, func(msg *syftmsg.Message) *syftmsg.Message {
			return syftmsg.NewNack(msg.Id, "not allowed")
		})
		defer ts.Close()

		events := newTestEventsAPI(ts.URL)
		defer events.Close()
		require.NoError(t, events.Connect(context.Background()))

		msg := syftmsg.NewFileWrite("alice@example.com/public/x.txt", "etag", 2, []byte("hi"))
		err := events.SendWithAck(context.Background(), msg)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNackReceived)
		assert.Contains(t, err.Error(), "not allowed")
	})

	t.Run("disconnect fails pending waiters", func(t *testing.T) {
		ts := ackingServer(t, func(msg *syftmsg.Message) *syftmsg.Message {
			return nil // never ack
		})
		defer ts.Close()

		events := newTestEventsAPI(ts.URL)
		require.NoError(t, events.Connect(context.Background()))

		msg := syftmsg.NewFileWrite("alice@example.com/public/x.txt", "etag", 2, []byte("hi"))

		done := make(chan error, 1)
		go func() {
			done <- events.SendWithAck(context.Background(), msg)
		}()

		// give the send a moment to register, then drop the connection
		time.Sleep(100 * time.Millisecond)
		events.Close()

		select {
		case err := <-done:
			// delivery is unknown on disconnect, so the waiter must not see
			// a success: journaling an undelivered file would make the next
			// diff read it as remotely deleted
			assert.ErrorIs(t, err, ErrEventsDisconnected)
		case <-time.After(2 * time.Second):
			t.Fatal("waiter not resolved on disconnect")
		}
	})

	t.Run("send without connection fails", func(t *testing.T) {
		events := newTestEventsAPI("http://127.0.0.1:1")
		err := events.SendWithAck(context.Background(), syftmsg.NewSystemMessage("1", "hello"))
		assert.ErrorIs(t, err, ErrEventsNotConnected)
	})
}

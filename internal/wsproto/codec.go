package wsproto

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/coder/websocket"
	"github.com/openmined/syftbox-client/internal/syftmsg"
	"github.com/vmihailenco/msgpack/v5"
)

// Encoding indicates which wire encoding is used for WebSocket messages.
type Encoding uint8

const (
	EncodingJSON Encoding = iota
	EncodingMsgPack
)

func (e Encoding) String() string {
	switch e {
	case EncodingMsgPack:
		return "msgpack"
	default:
		return "json"
	}
}

const (
	magic0  = byte('S')
	magic1  = byte('B')
	version = byte(1)
)

// PreferredEncoding parses a comma-separated preference list such as
// "msgpack,json". An empty or unrecognized list means JSON.
func PreferredEncoding(list string) Encoding {
	for _, p := range strings.Split(list, ",") {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "msgpack":
			return EncodingMsgPack
		case "json":
			return EncodingJSON
		}
	}
	return EncodingJSON
}

// Marshal encodes a message for WebSocket transport. JSON goes out as a
// plain text frame; msgpack goes out as a binary frame wrapped in the
// [S][B][version][encoding] envelope.
func Marshal(msg *syftmsg.Message, enc Encoding) (websocket.MessageType, []byte, error) {
	if enc == EncodingJSON {
		data, err := json.Marshal(msg)
		return websocket.MessageText, data, err
	}

	payload, err := marshalMsgpack(msg)
	if err != nil {
		return websocket.MessageBinary, nil, err
	}

	buf := make([]byte, 4+len(payload))
	buf[0], buf[1], buf[2], buf[3] = magic0, magic1, version, byte(enc)
	copy(buf[4:], payload)
	return websocket.MessageBinary, buf, nil
}

// Unmarshal decodes a WebSocket frame. Text frames are bare JSON without
// an envelope.
func Unmarshal(typ websocket.MessageType, data []byte) (*syftmsg.Message, Encoding, error) {
	switch typ {
	case websocket.MessageText:
		var msg syftmsg.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, EncodingJSON, err
		}
		return &msg, EncodingJSON, nil

	case websocket.MessageBinary:
		if len(data) < 4 || data[0] != magic0 || data[1] != magic1 {
			return nil, EncodingMsgPack, errors.New("binary message missing SB envelope")
		}
		if data[2] != version {
			return nil, EncodingMsgPack, fmt.Errorf("unsupported ws envelope version: %d", data[2])
		}
		enc := Encoding(data[3])
		payload := data[4:]
		switch enc {
		case EncodingMsgPack:
			msg, err := unmarshalMsgpack(payload)
			return msg, enc, err
		case EncodingJSON:
			// JSON inside a binary envelope is accepted for symmetry.
			var msg syftmsg.Message
			if err := json.Unmarshal(payload, &msg); err != nil {
				return nil, enc, err
			}
			return &msg, enc, nil
		default:
			return nil, enc, fmt.Errorf("unknown ws encoding: %d", enc)
		}

	default:
		return nil, EncodingJSON, fmt.Errorf("unsupported websocket message type: %v", typ)
	}
}

// wireMessage is the outer msgpack envelope. Data is a nested msgpack
// document holding the typed payload.
type wireMessage struct {
	Id   string              `msgpack:"id"`
	Type syftmsg.MessageType `msgpack:"typ"`
	Data []byte              `msgpack:"dat"`
}

func marshalMsgpack(msg *syftmsg.Message) ([]byte, error) {
	if !syftmsg.KnownType(msg.Type) {
		return nil, &syftmsg.ErrUnknownMessageType{Type: msg.Type}
	}

	dat, err := msgpack.Marshal(msg.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msg.Type, err)
	}

	w := wireMessage{Id: msg.Id, Type: msg.Type, Data: dat}
	return msgpack.Marshal(&w)
}

func unmarshalMsgpack(payload []byte) (*syftmsg.Message, error) {
	var w wireMessage
	if err := msgpack.Unmarshal(payload, &w); err != nil {
		return nil, err
	}

	data, err := syftmsg.DecodePayload(w.Type, func(dst any) error {
		return msgpack.Unmarshal(w.Data, dst)
	})
	if err != nil {
		return nil, err
	}

	return &syftmsg.Message{Id: w.Id, Type: w.Type, Data: data}, nil
}

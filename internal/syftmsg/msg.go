package syftmsg

import (
	"encoding/json"
	"fmt"

	"github.com/openmined/syftbox-client/internal/utils"
)

const IdSize = 3

// ErrUnknownMessageType marks envelopes whose typ the client does not
// understand. Callers skip these rather than failing the connection.
type ErrUnknownMessageType struct {
	Type MessageType
}

func (e *ErrUnknownMessageType) Error() string {
	return fmt.Sprintf("unknown message type: %d", uint16(e.Type))
}

// Message is one wire envelope. Data holds the payload value for Type;
// decoders always store payloads by value, never by pointer.
type Message struct {
	Id   string      `json:"id"`
	Type MessageType `json:"typ"`
	Data any         `json:"dat"`
}

// UnmarshalJSON decodes the payload into the concrete type selected by typ.
func (m *Message) UnmarshalJSON(data []byte) error {
	type rawMessage struct {
		Id   string          `json:"id"`
		Type MessageType     `json:"typ"`
		Data json.RawMessage `json:"dat"`
	}

	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Id = raw.Id
	m.Type = raw.Type

	payload, err := DecodePayload(raw.Type, func(dst any) error {
		return json.Unmarshal(raw.Data, dst)
	})
	if err != nil {
		return err
	}
	m.Data = payload
	return nil
}

// KnownType reports whether typ has a concrete payload type.
func KnownType(typ MessageType) bool {
	return typ <= MsgHotlinkSignal
}

func decodeAs[T any](decode func(dst any) error) (any, error) {
	var v T
	if err := decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodePayload decodes one payload via the supplied decode func and returns
// it as a value of the concrete type for typ. Codecs share this table so
// every encoding dispatches payloads identically.
func DecodePayload(typ MessageType, decode func(dst any) error) (any, error) {
	switch typ {
	case MsgSystem:
		return decodeAs[System](decode)
	case MsgError:
		return decodeAs[Error](decode)
	case MsgFileWrite, MsgFileNotify:
		return decodeAs[FileWrite](decode)
	case MsgFileDelete:
		return decodeAs[FileDelete](decode)
	case MsgAck:
		return decodeAs[Ack](decode)
	case MsgNack:
		return decodeAs[Nack](decode)
	case MsgHttp:
		return decodeAs[HttpMsg](decode)
	case MsgACLManifest:
		return decodeAs[ACLManifest](decode)
	case MsgHotlinkOpen:
		return decodeAs[HotlinkOpen](decode)
	case MsgHotlinkAccept:
		return decodeAs[HotlinkAccept](decode)
	case MsgHotlinkReject:
		return decodeAs[HotlinkReject](decode)
	case MsgHotlinkData:
		return decodeAs[HotlinkData](decode)
	case MsgHotlinkClose:
		return decodeAs[HotlinkClose](decode)
	case MsgHotlinkSignal:
		return decodeAs[HotlinkSignal](decode)
	default:
		return nil, &ErrUnknownMessageType{Type: typ}
	}
}

func generateID() string {
	return utils.TokenHex(IdSize)
}

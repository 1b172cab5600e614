package syftmsg

// Ack confirms the server processed the message with the given id.
type Ack struct {
	OriginalId string `json:"oid"`
}

func NewAck(originalMsgId string) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgAck,
		Data: Ack{OriginalId: originalMsgId},
	}
}

// Nack reports the server rejected the message with the given id.
type Nack struct {
	OriginalId string `json:"oid"`
	Error      string `json:"err"`
}

func NewNack(originalMsgId string, err string) *Message {
	return &Message{
		Id:   generateID(),
		Type: MsgNack,
		Data: Nack{
			OriginalId: originalMsgId,
			Error:      err,
		},
	}
}

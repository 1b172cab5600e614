package syftmsg

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openmined/syftbox-client/internal/utils"
)

// SyftMethod is the HTTP method carried by an RPC message.
type SyftMethod string

// SyftStatus is the status code carried by an RPC response.
type SyftStatus int

const (
	// DefaultMessageExpiry is how long an RPC file stays valid on disk.
	DefaultMessageExpiry = 24 * time.Hour

	MethodGET    SyftMethod = "GET"
	MethodPOST   SyftMethod = "POST"
	MethodPUT    SyftMethod = "PUT"
	MethodDELETE SyftMethod = "DELETE"

	StatusOK SyftStatus = 200
)

// SyftRPCMessage is the JSON document written to `<id>.request` and
// `<id>.response` files inside an app's rpc directory.
type SyftRPCMessage struct {
	ID         uuid.UUID         `json:"id"`
	Sender     string            `json:"sender"`
	URL        utils.SyftBoxURL  `json:"url"`
	Body       []byte            `json:"body,omitempty"`
	Headers    map[string]string `json:"headers"`
	Created    time.Time         `json:"created"`
	Expires    time.Time         `json:"expires"`
	Method     SyftMethod        `json:"method,omitempty"`
	StatusCode SyftStatus        `json:"status_code,omitempty"`
}

// NewSyftRPCMessage converts a wire HttpMsg into its on-disk form.
func NewSyftRPCMessage(httpMsg HttpMsg) *SyftRPCMessage {
	now := time.Now().UTC()

	id, err := uuid.Parse(httpMsg.Id)
	if err != nil {
		id = uuid.New()
	}

	headers := httpMsg.Headers
	if headers == nil {
		headers = make(map[string]string)
	}

	msg := &SyftRPCMessage{
		ID:      id,
		Sender:  httpMsg.From,
		URL:     httpMsg.SyftURL,
		Body:    httpMsg.Body,
		Headers: headers,
		Created: now,
		Expires: now.Add(DefaultMessageExpiry),
		Method:  SyftMethod(strings.ToUpper(httpMsg.Method)),
	}
	if httpMsg.Type == HttpMsgTypeResponse {
		msg.StatusCode = StatusOK
	}
	return msg
}

// MarshalJSON writes the URL as a syft:// string and the body as
// url-safe base64, matching what SDK apps expect to read.
func (m *SyftRPCMessage) MarshalJSON() ([]byte, error) {
	type Alias SyftRPCMessage
	return json.Marshal(&struct {
		*Alias
		URL  string `json:"url"`
		Body string `json:"body,omitempty"`
	}{
		Alias: (*Alias)(m),
		URL:   m.URL.String(),
		Body:  base64.URLEncoding.EncodeToString(m.Body),
	})
}

func (m *SyftRPCMessage) UnmarshalJSON(data []byte) error {
	type alias struct {
		ID         uuid.UUID         `json:"id"`
		Sender     string            `json:"sender"`
		URL        string            `json:"url"`
		Body       string            `json:"body,omitempty"`
		Headers    map[string]string `json:"headers"`
		Created    time.Time         `json:"created"`
		Expires    time.Time         `json:"expires"`
		Method     SyftMethod        `json:"method,omitempty"`
		StatusCode SyftStatus        `json:"status_code,omitempty"`
	}

	var aux alias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	url, err := utils.FromSyftURL(aux.URL)
	if err != nil {
		return fmt.Errorf("parse rpc url: %w", err)
	}

	m.ID = aux.ID
	m.Sender = aux.Sender
	m.URL = *url
	m.Headers = aux.Headers
	m.Created = aux.Created
	m.Expires = aux.Expires
	m.Method = aux.Method
	m.StatusCode = aux.StatusCode

	// Bodies are usually url-safe base64, but apps have written raw
	// strings here. Keep whatever decodes.
	if aux.Body != "" {
		if body, err := base64.URLEncoding.DecodeString(aux.Body); err == nil {
			m.Body = body
		} else {
			m.Body = []byte(aux.Body)
		}
	}

	return nil
}

// ToJsonMap returns the message as a generic map with the body decoded,
// for pretty logging.
func (m *SyftRPCMessage) ToJsonMap() map[string]interface{} {
	var bodyContent interface{}
	if err := json.Unmarshal(m.Body, &bodyContent); err != nil {
		bodyContent = string(m.Body)
	}

	return map[string]interface{}{
		"id":          m.ID,
		"sender":      m.Sender,
		"url":         m.URL.String(),
		"headers":     m.Headers,
		"created":     m.Created,
		"expires":     m.Expires,
		"method":      m.Method,
		"status_code": m.StatusCode,
		"body":        bodyContent,
	}
}

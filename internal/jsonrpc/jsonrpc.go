// Package jsonrpc implements the small slice of JSON-RPC 2.0 that MCP uses.
package jsonrpc

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Version is the protocol version sent in every message.
const Version = "2.0"

// Request is an outgoing request or notification.
// A notification has no ID.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewRequest creates a request with the given id.
func NewRequest(id int64, method string, params any) *Request {
	return &Request{JSONRPC: Version, ID: &id, Method: method, Params: params}
}

// NewNotification creates a notification.
func NewNotification(method string, params any) *Request {
	return &Request{JSONRPC: Version, Method: method, Params: params}
}

// Encode serialises the request to a single JSON object without a trailing
// newline.
func (r *Request) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Error is the error member of a response.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Message is any incoming message: a response, a server notification, or a
// server-initiated request.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsResponse reports whether the message answers one of our requests.
func (m *Message) IsResponse() bool {
	return m.ID != nil && m.Method == ""
}

// IsNotification reports whether the message is a server notification.
func (m *Message) IsNotification() bool {
	return m.ID == nil && m.Method != ""
}

// DecodeMessage parses a single JSON-RPC message.
func DecodeMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

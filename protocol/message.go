// Package protocol implements U-WBP v2, the JSON-over-WebSocket envelope the
// hub speaks to every connector. It plays the role the teacher's ws/event.go
// plays for its Discord-style client protocol — typed envelope plus
// constructors — but the shape itself is the spec's, not the teacher's:
// {type, id, op, timestamp, version, data, error}, not the teacher's
// {op, d, seq}.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Version is the only U-WBP version this hub speaks. A frame declaring any
// other value is rejected at Parse.
const Version = "2.0"

// MaxFrameBytes bounds a single inbound frame; oversized frames are
// rejected with an error response and the connection is closed 1009.
const MaxFrameBytes = 1 << 20 // 1 MiB

// Type is the outer envelope kind.
type Type string

const (
	TypeRequest  Type = "request"
	TypeResponse Type = "response"
	TypeEvent    Type = "event"
	TypeSystem   Type = "system"
	TypeError    Type = "error"
)

// System ops exchanged outside the request/response/event flow.
const (
	OpHandshake     = "system.handshake"
	OpAuthChallenge = "system.auth.challenge"
	OpAuthResponse  = "system.auth.response"
	OpPing          = "system.ping"
	OpPong          = "system.pong"
	OpDisconnect    = "system.disconnect"
)

// ErrorPayload is the only populated field on a TypeError message.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Message is the wire shape of every U-WBP v2 frame, in both directions.
type Message struct {
	Type      Type            `json:"type"`
	ID        string          `json:"id"`
	Op        string          `json:"op"`
	Timestamp int64           `json:"timestamp"`
	Version   string          `json:"version"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     *ErrorPayload   `json:"error,omitempty"`
}

// NewRequest builds a request frame with a fresh correlation id and the
// given op/payload. Callers that need to know the id for correlation (the
// request correlator) should read it back off the returned Message.
func NewRequest(op string, data any) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request data: %w", err)
	}
	return &Message{
		Type:      TypeRequest,
		ID:        uuid.NewString(),
		Op:        op,
		Timestamp: nowMillis(),
		Version:   Version,
		Data:      raw,
	}, nil
}

// NewResponse builds a response frame correlated to requestID.
func NewResponse(requestID, op string, data any) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %w", err)
	}
	return &Message{
		Type:      TypeResponse,
		ID:        requestID,
		Op:        op,
		Timestamp: nowMillis(),
		Version:   Version,
		Data:      raw,
	}, nil
}

// NewEvent builds a fire-and-forget event frame.
func NewEvent(op string, data any) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}
	return &Message{
		Type:      TypeEvent,
		ID:        uuid.NewString(),
		Op:        op,
		Timestamp: nowMillis(),
		Version:   Version,
		Data:      raw,
	}, nil
}

// NewSystem builds a system-op frame (handshake, ping/pong, disconnect).
func NewSystem(op string, data any) (*Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal system data: %w", err)
	}
	return &Message{
		Type:      TypeSystem,
		ID:        uuid.NewString(),
		Op:        op,
		Timestamp: nowMillis(),
		Version:   Version,
		Data:      raw,
	}, nil
}

// NewError builds an error frame, optionally correlated to a requestID (use
// "" when the error is connection-level rather than tied to one frame).
func NewError(requestID, code, message string) *Message {
	return &Message{
		Type:      TypeError,
		ID:        requestID,
		Timestamp: nowMillis(),
		Version:   Version,
		Error:     &ErrorPayload{Code: code, Message: message},
	}
}

// Encode marshals m to its wire form.
func Encode(m *Message) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return b, nil
}

// Parse validates the structural schema of an inbound frame: type and
// version must be present and type must be one of the known kinds. version
// must equal Version. Callers that receive a non-nil error should reply
// with NewError and close code 1009/1002 per the caller's context, not
// retry the parse.
func Parse(raw []byte) (*Message, error) {
	if len(raw) > MaxFrameBytes {
		return nil, fmt.Errorf("frame exceeds max size of %d bytes", MaxFrameBytes)
	}

	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch m.Type {
	case TypeRequest, TypeResponse, TypeEvent, TypeSystem, TypeError:
	case "":
		return nil, fmt.Errorf("missing required field: type")
	default:
		return nil, fmt.Errorf("unknown frame type: %q", m.Type)
	}

	if m.Version == "" {
		return nil, fmt.Errorf("missing required field: version")
	}
	if m.Version != Version {
		return nil, fmt.Errorf("unsupported protocol version: %q", m.Version)
	}

	return &m, nil
}

// UnmarshalData decodes m.Data into dst. Used by handlers once they know
// which concrete payload type an op carries.
func UnmarshalData(m *Message, dst any) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, dst)
}

// Package protocol defines the message envelope shared by the WebSocket
// control channel, the status channel and the MQTT bridge.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// MessageType identifies the type of a control or status message
type MessageType string

const (
	// Operator → Rover commands
	TypeDrive  MessageType = "drive"  // Differential drive {l, r}
	TypeArcade MessageType = "arcade" // Single-stick drive {turn, fwd}
	TypeHead   MessageType = "head"   // Head servos {pan?, tilt?}
	TypeWaist  MessageType = "waist"  // Waist servo {pos}
	TypeSay    MessageType = "say"    // Canned phrase {phraseId}
	TypeStop   MessageType = "stop"   // Stop wheels

	// Rover → Operator replies
	TypeAck   MessageType = "ack"   // Command accepted
	TypeError MessageType = "error" // Command rejected or failed

	// Rover → Status subscribers
	TypeState  MessageType = "state"  // Watchdog transition
	TypeStatus MessageType = "status" // Periodic status snapshot

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// commandTypes are the types a client may send to be actuated.
var commandTypes = map[MessageType]bool{
	TypeDrive:  true,
	TypeArcade: true,
	TypeHead:   true,
	TypeWaist:  true,
	TypeSay:    true,
	TypeStop:   true,
}

// IsCommand reports whether t is an actuation command type.
func IsCommand(t MessageType) bool {
	return commandTypes[t]
}

// CommandTypes returns every actuation command type.
func CommandTypes() []MessageType {
	return []MessageType{TypeDrive, TypeArcade, TypeHead, TypeWaist, TypeSay, TypeStop}
}

// ErrEmptyType is returned by ParseMessage when the envelope has no type.
var ErrEmptyType = errors.New("message type is required")

// Message is the base wrapper for all messages
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"` // Client correlation id, echoed in replies
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Fields decodes the message data as a JSON object with numbers kept as
// json.Number, so integer-ness survives for validation. Missing or null
// data yields an empty map.
func (m *Message) Fields() (map[string]any, error) {
	return DecodeFields(m.Data)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, ErrEmptyType
	}
	return &msg, nil
}

// DecodeFields decodes a JSON object body into loosely typed fields using
// json.Number for numbers. Empty input and a literal null yield an empty map.
func DecodeFields(data []byte) (map[string]any, error) {
	fields := make(map[string]any)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return fields, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("body must be a JSON object: %w", err)
	}
	if err := dec.Decode(new(json.RawMessage)); err != io.EOF {
		return nil, errors.New("body must be a single JSON object")
	}
	if fields == nil {
		fields = make(map[string]any)
	}
	return fields, nil
}

// =============================================================================
// Rover → Operator Message Types
// =============================================================================

// AckData reports an accepted command and the values actually applied
type AckData struct {
	For    MessageType `json:"for"`
	ID     string      `json:"id,omitempty"`
	Result any         `json:"result,omitempty"`
}

// ErrorData reports a rejected or failed command
type ErrorData struct {
	For    MessageType       `json:"for,omitempty"`
	ID     string            `json:"id,omitempty"`
	Error  string            `json:"error"`
	Kind   string            `json:"kind"`             // "validation", "actuator", "protocol"
	Fields map[string]string `json:"fields,omitempty"` // Per-field reasons, e.g. head axes
}

// Error kinds carried in ErrorData.Kind
const (
	KindValidation = "validation"
	KindActuator   = "actuator"
	KindProtocol   = "protocol"
)

// =============================================================================
// Status Message Types
// =============================================================================

// StateData reports a watchdog transition
type StateData struct {
	State      string `json:"state"` // "armed" or "tripped"
	Previous   string `json:"previous,omitempty"`
	AgeMs      int64  `json:"age_ms"`
	DeadlineMs int64  `json:"deadline_ms"`
}

// StatusData is a periodic status snapshot
type StatusData struct {
	State      string `json:"state"`
	AgeMs      int64  `json:"age_ms"`
	DeadlineMs int64  `json:"deadline_ms"`
	Sink       string `json:"sink"`
	Stops      uint64 `json:"stops"`
	Trips      uint64 `json:"trips"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PongData contains pong response
type PongData struct {
	ID        string `json:"id,omitempty"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}

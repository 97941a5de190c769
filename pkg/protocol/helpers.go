package protocol

import "time"

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewCommandMessage creates an operator command carrying the given body
func NewCommandMessage(t MessageType, id string, body any) (*Message, error) {
	msg, err := NewMessage(t, body)
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

// NewAckMessage creates an ack reply for a command
func NewAckMessage(forType MessageType, id string, result any) (*Message, error) {
	msg, err := NewMessage(TypeAck, AckData{For: forType, ID: id, Result: result})
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

// NewErrorMessage creates an error reply for a command
func NewErrorMessage(forType MessageType, id, kind string, cause error, fields map[string]string) (*Message, error) {
	text := "unknown error"
	if cause != nil {
		text = cause.Error()
	}
	msg, err := NewMessage(TypeError, ErrorData{
		For:    forType,
		ID:     id,
		Error:  text,
		Kind:   kind,
		Fields: fields,
	})
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

// NewStateMessage creates a watchdog transition message
func NewStateMessage(state, previous string, age, deadline time.Duration) (*Message, error) {
	return NewMessage(TypeState, StateData{
		State:      state,
		Previous:   previous,
		AgeMs:      age.Milliseconds(),
		DeadlineMs: deadline.Milliseconds(),
	})
}

// NewStatusMessage creates a status snapshot message
func NewStatusMessage(status StatusData) (*Message, error) {
	return NewMessage(TypeStatus, status)
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	msg, err := NewMessage(TypePing, nil)
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	latency := int64(0)
	if pingTS > 0 {
		latency = pongTS - pingTS
	}
	msg, err := NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: latency,
	})
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetAckData extracts ack data from a message
func (m *Message) GetAckData() (*AckData, error) {
	var data AckData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts error data from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStateData extracts state data from a message
func (m *Message) GetStateData() (*StateData, error) {
	var data StateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStatusData extracts status data from a message
func (m *Message) GetStatusData() (*StatusData, error) {
	var data StatusData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

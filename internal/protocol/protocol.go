// Package protocol defines the WebSocket messages exchanged between keychord peers.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeKey is sent by a client to deliver one key press or release
	TypeKey MessageType = "key"

	// TypeChord is sent by the server when a chord fires
	TypeChord MessageType = "chord"

	// TypePing can be used for application-level heartbeats
	TypePing MessageType = "ping"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// KeyPayload is the payload for TypeKey
type KeyPayload struct {
	Key  string `json:"key"`
	Down bool   `json:"down"`
}

// ChordPayload is the payload for TypeChord
type ChordPayload struct {
	Name   string    `json:"name"`
	ID     int64     `json:"id"`
	Origin string    `json:"origin"` // "local" or the remote client id that completed the chord
	Time   time.Time `json:"time"`
}

// NewMessage wraps payload in a Message of type t
func NewMessage(t MessageType, payload any) (Message, error) {
	msg := Message{Type: t}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	msg.Payload = data
	return msg, nil
}

// Decode unmarshals the message payload into v
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s message has no payload", m.Type)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}

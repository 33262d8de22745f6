// internal/domain/event/types.go
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type represents the real-time event types carried over the stream.
type Type string

const (
	// Connection events
	TypePing      Type = "ping"
	TypePong      Type = "pong"
	TypeConnected Type = "connected"
	TypeError     Type = "error"

	// Lifecycle events (server -> client)
	TypeSubscriptionLifecycle Type = "subscription:lifecycle"
)

// Message is the universal frame format on the event stream.
type Message struct {
	Type      Type        `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	ID        string      `json:"id,omitempty"`
}

// ErrorData for error events
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func NewMessage(t Type, data interface{}) *Message {
	return &Message{
		Type:      t,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func (m *Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("message has no type")
	}
	return &msg, nil
}

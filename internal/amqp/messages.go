package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"carteira/internal/ledger"
)

// EventMessage carries a ledger event. Only ids travel on the wire; consumers
// read the rows back from storage.
type EventMessage struct {
	Type      string    `json:"type"`
	IDs       []string  `json:"ids"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEventMessage wraps ev, stamping it now when it has no time of its own.
func NewEventMessage(ev ledger.Event) *EventMessage {
	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return &EventMessage{Type: ev.Type, IDs: ev.IDs, Timestamp: ts}
}

// Event converts the message back to a ledger event.
func (m *EventMessage) Event() ledger.Event {
	return ledger.Event{Type: m.Type, IDs: m.IDs, OccurredAt: m.Timestamp}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes and validates a message body.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("event message without type")
	}
	return &msg, nil
}

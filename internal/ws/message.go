package ws

import (
	"time"

	"godseye/internal/eventlog"
)

// EventMessage is a detection event broadcast to WebSocket clients.
type EventMessage struct {
	Type            string    `json:"type"` // "detection_event"
	Timestamp       time.Time `json:"timestamp"`
	NumPersons      int       `json:"num_persons"`
	IdentifiedCount int       `json:"identified_count"`
	Names           []string  `json:"names"`
}

// NewEventMessage wraps a detection event for broadcast.
func NewEventMessage(ev eventlog.Event) *EventMessage {
	names := ev.Names
	if names == nil {
		names = make([]string, 0)
	}
	return &EventMessage{
		Type:            "detection_event",
		Timestamp:       ev.Timestamp,
		NumPersons:      ev.NumPersons,
		IdentifiedCount: ev.IdentifiedCount,
		Names:           names,
	}
}

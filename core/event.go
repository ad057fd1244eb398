package core

import (
	"time"

	"github.com/google/uuid"
)

// Event is the unit of communication between mesh participants. After
// emission it should be treated as immutable. It captures:
//   - Correlation (ID, Source)
//   - The routed payload (Type + Payload)
//   - A high precision UTC timestamp
//
// Payload may be nil for pure control events.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Source    string         `json:"source,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent creates an event of the given type authored by source.
func NewEvent(eventType, source string, payload map[string]any) Event {
	return Event{
		ID:        NewID(),
		Type:      eventType,
		Source:    source,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewActionEvent constructs the event form of a workflow step dispatch: the
// event type carries the action name and the payload carries its parameters.
func NewActionEvent(source, action string, parameters map[string]any) Event {
	return NewEvent(action, source, parameters)
}

// NewID generates a new unique identifier.
//
// Returns a string representation of a new UUID, used for events, snapshots,
// tasks and any other mesh level correlation ids.
func NewID() string { return uuid.NewString() }

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
// Useful for metrics & numeric serialization paths.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }

// internal/models/events.go
package models

import "encoding/json"

// Real-time event names carried over the websocket channel.
const (
	EventNotificationNew   = "notification:new"
	EventNotificationRead  = "notification:read"
	EventNotificationCount = "notification:count"
)

// EventEnvelope is the wire frame for every real-time event. Payload is the
// raw JSON of a Notification for notification:new, {id} for
// notification:read, and {unreadCount} for notification:count.
type EventEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// ReadEventPayload is the payload of a notification:read event.
type ReadEventPayload struct {
	ID string `json:"id"`
}

// CountEventPayload is the payload of an authoritative unread-count push.
// It always wins over locally computed counts.
type CountEventPayload struct {
	UnreadCount int `json:"unreadCount"`
}

// NewEnvelope marshals payload into an EventEnvelope for the given event
// name.
func NewEnvelope(event string, payload interface{}) (EventEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{Event: event, Payload: raw}, nil
}

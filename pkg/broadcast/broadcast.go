// Package broadcast publishes platform events so downstream consumers
// (notifications, analytics) can react to payments and viral promotions.
package broadcast

import (
	"context"
	"encoding/json"
	"time"
)

// Event types carried on the platform events topic.
const (
	EventPaymentRecorded = "payment.recorded"
	EventViralDetected   = "viral.detected"
)

// Event is the wire shape published to the events topic.
type Event struct {
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Broadcaster publishes events best-effort; callers must not fail their
// own transaction when publishing fails.
type Broadcaster interface {
	Publish(ctx context.Context, event Event) error
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType string, payload map[string]any) Event {
	return Event{
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

func (e Event) marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Noop discards all events. Used when Pub/Sub is not configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

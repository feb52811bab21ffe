package mqtt

import (
	"time"

	"github.com/sawring/sawring/internal/events"
)

// EventDTO is the JSON payload published for every gesture event.
//
// Field names are consumed by home automation rules; add fields rather
// than renaming existing ones.
type EventDTO struct {
	ID         string  `json:"id"`
	Kind       string  `json:"kind"` // "start" or "end"
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Action     string  `json:"action,omitempty"`
	SessionID  string  `json:"sessionId,omitempty"`
	Source     string  `json:"source,omitempty"`
	Timestamp  string  `json:"timestamp"`            // RFC 3339 with milliseconds
	DurationMs int64   `json:"durationMs,omitempty"` // end events only
}

// NewEventDTO converts an event for publishing.
func NewEventDTO(ev events.Event, source string) EventDTO {
	return EventDTO{
		ID:         ev.ID,
		Kind:       string(ev.Kind),
		Label:      ev.Label,
		Confidence: ev.Confidence,
		Action:     ev.Action,
		SessionID:  ev.SessionID,
		Source:     source,
		Timestamp:  ev.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		DurationMs: ev.Duration.Milliseconds(),
	}
}

// Timeout for one event publish including the broker acknowledgement.
const publishTimeout = 5 * time.Second

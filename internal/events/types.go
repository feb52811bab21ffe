// Package events turns per-tick predictions into debounced gesture events
// and fans them out to consumers without blocking the pipeline.
package events

import (
	"time"
)

// State of the event state machine.
type State int

const (
	Idle State = iota
	Triggered
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Triggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// Kind distinguishes event start from event end.
type Kind string

const (
	KindStart Kind = "start"
	KindEnd   Kind = "end"
)

// Event is an EventStart or EventEnd notification.
type Event struct {
	ID         string        `json:"id"`
	Kind       Kind          `json:"kind"`
	Label      string        `json:"label"`
	Confidence float64       `json:"confidence"`
	Action     string        `json:"action,omitempty"`
	SessionID  string        `json:"session_id,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	Duration   time.Duration `json:"duration,omitempty"` // set on end events
}

// EventConsumer processes dispatched events.
type EventConsumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessEvent handles a single event
	ProcessEvent(event Event) error
}

// BusStats contains runtime statistics for monitoring
type BusStats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}

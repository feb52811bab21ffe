package sources

import (
	"sync"
	"time"
)

// State is the connection state reported to the API and metrics.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateLost   // an established connection dropped
	StateFailed // the connection could not be established
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateLost:
		return "lost"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StatusSnapshot is a point-in-time copy of a Status.
type StatusSnapshot struct {
	Source string    `json:"source"`
	State  string    `json:"state"`
	Since  time.Time `json:"since"`
	Error  string    `json:"error,omitempty"`
}

// Status tracks the connection state of one source. Safe for concurrent use.
type Status struct {
	mu       sync.RWMutex
	source   string
	state    State
	since    time.Time
	lastErr  error
	onChange func(source string, from, to State)
}

// NewStatus returns a disconnected status. onChange may be nil.
func NewStatus(source string, onChange func(source string, from, to State)) *Status {
	return &Status{source: source, since: time.Now(), onChange: onChange}
}

// Set moves to state, recording err for lost and failed states.
func (s *Status) Set(state State, err error) {
	s.mu.Lock()
	from := s.state
	s.state = state
	s.since = time.Now()
	s.lastErr = err
	cb := s.onChange
	s.mu.Unlock()

	if cb != nil && from != state {
		cb(s.source, from, state)
	}
}

// State returns the current state.
func (s *Status) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns a copy for reporting.
func (s *Status) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := StatusSnapshot{Source: s.source, State: s.state.String(), Since: s.since}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}

package events

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/sawring/sawring/internal/conf"
	"github.com/sawring/sawring/internal/errors"
)

// MachineConfig holds the hysteresis parameters.
type MachineConfig struct {
	HighThreshold float64
	LowThreshold  float64
	TriggerFrames int
	MissFrames    int
	Cooldown      time.Duration
	Background    string            // label that never triggers
	Labels        []string          // known labels; empty accepts any
	Actions       map[string]string // optional action per label
	SessionID     string
}

// ConfigFromSettings builds a MachineConfig from the events section.
func ConfigFromSettings(s conf.EventSettings) MachineConfig {
	return MachineConfig{
		HighThreshold: s.HighThreshold,
		LowThreshold:  s.LowThreshold,
		TriggerFrames: s.TriggerFrames,
		MissFrames:    s.MissFrames,
		Cooldown:      s.Cooldown,
	}
}

// Machine debounces noisy predictions into start and end events. It is
// driven from a single tick loop and is not safe for concurrent use.
type Machine struct {
	cfg   MachineConfig
	known map[string]struct{}

	state     State
	candidate string
	run       int
	miss      int

	latchedLabel string
	latchedConf  float64
	startedAt    time.Time
	lastStart    time.Time

	displayLabel string
	displayConf  float64
}

// NewMachine validates cfg and returns an idle machine.
func NewMachine(cfg MachineConfig) (*Machine, error) {
	if cfg.LowThreshold > cfg.HighThreshold || cfg.TriggerFrames < 1 || cfg.MissFrames < 1 || cfg.Cooldown < 0 {
		return nil, errors.Newf("invalid event state machine parameters").
			Component("events").
			Category(errors.CategoryValidation).
			Context("high_threshold", cfg.HighThreshold).
			Context("low_threshold", cfg.LowThreshold).
			Context("trigger_frames", cfg.TriggerFrames).
			Context("miss_frames", cfg.MissFrames).
			Build()
	}
	m := &Machine{cfg: cfg}
	if len(cfg.Labels) > 0 {
		m.known = make(map[string]struct{}, len(cfg.Labels))
		for _, l := range cfg.Labels {
			m.known[l] = struct{}{}
		}
	}
	return m, nil
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Display returns the label and confidence to show. While triggered these
// stay frozen at the values latched on EventStart.
func (m *Machine) Display() (label string, confidence float64) {
	if m.state == Triggered {
		return m.latchedLabel, m.latchedConf
	}
	return m.displayLabel, m.displayConf
}

func (m *Machine) valid(label string, confidence float64) bool {
	if math.IsNaN(confidence) || math.IsInf(confidence, 0) || label == "" {
		return false
	}
	if m.known != nil {
		if _, ok := m.known[label]; !ok {
			return false
		}
	}
	return true
}

func (m *Machine) inCooldown(now time.Time) bool {
	return !m.lastStart.IsZero() && now.Sub(m.lastStart) < m.cfg.Cooldown
}

// Update feeds one prediction tick and returns the events it caused, at
// most one. Malformed predictions count as misses.
func (m *Machine) Update(label string, confidence float64, now time.Time) []Event {
	ok := m.valid(label, confidence)
	if ok {
		m.displayLabel, m.displayConf = label, confidence
	}

	if m.state == Triggered {
		return m.updateTriggered(ok, label, confidence, now)
	}
	return m.updateIdle(ok, label, confidence, now)
}

func (m *Machine) updateIdle(ok bool, label string, confidence float64, now time.Time) []Event {
	if !ok || confidence < m.cfg.HighThreshold || label == m.cfg.Background {
		m.run, m.candidate = 0, ""
		return nil
	}

	if label == m.candidate {
		m.run++
	} else {
		m.candidate, m.run = label, 1
	}

	if m.run < m.cfg.TriggerFrames || m.inCooldown(now) {
		return nil
	}

	m.state = Triggered
	m.latchedLabel, m.latchedConf = label, confidence
	m.startedAt, m.lastStart = now, now
	m.run, m.miss, m.candidate = 0, 0, ""

	return []Event{m.event(KindStart, now)}
}

func (m *Machine) updateTriggered(ok bool, label string, confidence float64, now time.Time) []Event {
	if !ok || confidence < m.cfg.LowThreshold || label != m.latchedLabel {
		m.miss++
	} else {
		m.miss = 0
	}

	if m.miss < m.cfg.MissFrames {
		return nil
	}

	ev := m.event(KindEnd, now)
	ev.Duration = now.Sub(m.startedAt)

	m.state = Idle
	m.latchedLabel, m.latchedConf = "", 0
	m.miss = 0
	return []Event{ev}
}

func (m *Machine) event(kind Kind, now time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Label:      m.latchedLabel,
		Confidence: m.latchedConf,
		Action:     m.cfg.Actions[m.latchedLabel],
		SessionID:  m.cfg.SessionID,
		Timestamp:  now,
	}
}

// Reset returns the machine to Idle without emitting an end event. The
// cooldown gate is kept.
func (m *Machine) Reset() {
	lastStart := m.lastStart
	*m = Machine{cfg: m.cfg, known: m.known, lastStart: lastStart}
}

package events

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawring/sawring/internal/conf"
	"github.com/sawring/sawring/internal/errors"
)

type tick struct {
	label string
	conf  float64
}

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newMachine(t *testing.T, cfg MachineConfig) *Machine {
	t.Helper()
	m, err := NewMachine(cfg)
	require.NoError(t, err)
	return m
}

func scenarioConfig() MachineConfig {
	return MachineConfig{
		HighThreshold: 0.6,
		LowThreshold:  0.5,
		TriggerFrames: 2,
		MissFrames:    2,
		Background:    "none",
	}
}

// run feeds ticks 350ms apart and returns the events emitted per tick.
func run(m *Machine, start time.Time, ticks []tick) [][]Event {
	out := make([][]Event, len(ticks))
	for i, tk := range ticks {
		out[i] = m.Update(tk.label, tk.conf, start.Add(time.Duration(i)*350*time.Millisecond))
	}
	return out
}

func TestMachineStartThenEnd(t *testing.T) {
	m := newMachine(t, scenarioConfig())

	got := run(m, epoch, []tick{{"A", 0.9}, {"A", 0.9}, {"A", 0.3}, {"A", 0.3}})

	assert.Empty(t, got[0])
	require.Len(t, got[1], 1)
	assert.Equal(t, KindStart, got[1][0].Kind)
	assert.Equal(t, "A", got[1][0].Label)
	assert.InDelta(t, 0.9, got[1][0].Confidence, 1e-12)
	assert.Empty(t, got[2])
	require.Len(t, got[3], 1)
	assert.Equal(t, KindEnd, got[3][0].Kind)
	assert.Equal(t, "A", got[3][0].Label)
	assert.Equal(t, 700*time.Millisecond, got[3][0].Duration)
	assert.NotEqual(t, got[1][0].ID, got[3][0].ID)
	assert.Equal(t, Idle, m.State())
}

func TestMachineNeverStartsBelowHighThreshold(t *testing.T) {
	m := newMachine(t, scenarioConfig())
	for i := range 100 {
		evs := m.Update("A", 0.59, epoch.Add(time.Duration(i)*time.Second))
		require.Empty(t, evs)
	}
	assert.Equal(t, Idle, m.State())
}

func TestMachineLabelChangeRestartsRun(t *testing.T) {
	m := newMachine(t, scenarioConfig())
	got := run(m, epoch, []tick{{"A", 0.9}, {"B", 0.9}, {"A", 0.9}, {"A", 0.9}})

	assert.Empty(t, got[0])
	assert.Empty(t, got[1])
	assert.Empty(t, got[2])
	require.Len(t, got[3], 1)
	assert.Equal(t, "A", got[3][0].Label)
}

func TestMachineFailingTickResetsRun(t *testing.T) {
	m := newMachine(t, scenarioConfig())
	got := run(m, epoch, []tick{{"A", 0.9}, {"A", 0.1}, {"A", 0.9}, {"A", 0.9}})
	assert.Empty(t, got[1])
	assert.Empty(t, got[2])
	assert.Len(t, got[3], 1)
}

func TestMachineBackgroundNeverTriggers(t *testing.T) {
	m := newMachine(t, scenarioConfig())
	got := run(m, epoch, []tick{{"none", 0.99}, {"none", 0.99}, {"none", 0.99}})
	for _, evs := range got {
		assert.Empty(t, evs)
	}
	label, conf := m.Display()
	assert.Equal(t, "none", label)
	assert.InDelta(t, 0.99, conf, 1e-12)
}

func TestMachineDisplayFrozenWhileTriggered(t *testing.T) {
	m := newMachine(t, scenarioConfig())
	run(m, epoch, []tick{{"A", 0.8}, {"A", 0.9}})
	require.Equal(t, Triggered, m.State())

	for _, tk := range []tick{{"A", 0.99}, {"A", 0.55}, {"B", 0.95}, {"A", 0.7}} {
		m.Update(tk.label, tk.conf, epoch.Add(time.Second))
		label, conf := m.Display()
		assert.Equal(t, "A", label)
		assert.InDelta(t, 0.9, conf, 1e-12)
	}
}

func TestMachineMissCounterResetsOnHit(t *testing.T) {
	m := newMachine(t, scenarioConfig())
	got := run(m, epoch, []tick{
		{"A", 0.9}, {"A", 0.9}, // start
		{"A", 0.3}, {"A", 0.55}, {"A", 0.3}, // hit in between
		{"A", 0.3}, // second consecutive miss
	})
	require.Len(t, got[1], 1)
	assert.Empty(t, got[2])
	assert.Empty(t, got[3])
	assert.Empty(t, got[4])
	require.Len(t, got[5], 1)
	assert.Equal(t, KindEnd, got[5][0].Kind)
}

func TestMachineCooldownBlocksSecondStart(t *testing.T) {
	cfg := scenarioConfig()
	cfg.Cooldown = 3 * time.Second
	m := newMachine(t, cfg)

	at := func(ms int) time.Time { return epoch.Add(time.Duration(ms) * time.Millisecond) }

	require.Empty(t, m.Update("A", 0.9, at(0)))
	require.Len(t, m.Update("A", 0.9, at(350)), 1)
	require.Empty(t, m.Update("A", 0.1, at(700)))
	require.Len(t, m.Update("A", 0.1, at(1050)), 1)

	// Still inside the cooldown measured from the start at 350ms.
	assert.Empty(t, m.Update("B", 0.9, at(1400)))
	assert.Empty(t, m.Update("B", 0.9, at(1750)))
	assert.Empty(t, m.Update("B", 0.9, at(3000)))
	label, _ := m.Display()
	assert.Equal(t, "B", label, "ticks are still evaluated for display")

	evs := m.Update("B", 0.9, at(3400))
	require.Len(t, evs, 1)
	assert.Equal(t, "B", evs[0].Label)
}

func TestMachineMalformedPredictionsAreMisses(t *testing.T) {
	cfg := scenarioConfig()
	cfg.Labels = []string{"A", "B", "none"}
	m := newMachine(t, cfg)

	got := run(m, epoch, []tick{{"A", math.NaN()}, {"A", math.NaN()}, {"zzz", 0.99}, {"zzz", 0.99}})
	for _, evs := range got {
		assert.Empty(t, evs)
	}

	run(m, epoch, []tick{{"A", 0.9}, {"A", 0.9}})
	require.Equal(t, Triggered, m.State())

	evs := m.Update("A", math.NaN(), epoch)
	assert.Empty(t, evs)
	evs = m.Update("zzz", 0.99, epoch)
	require.Len(t, evs, 1)
	assert.Equal(t, KindEnd, evs[0].Kind)
	assert.Equal(t, "A", evs[0].Label)
}

func TestMachineEventMetadata(t *testing.T) {
	cfg := scenarioConfig()
	cfg.Actions = map[string]string{"tap": "play_pause"}
	cfg.SessionID = "session-1"
	m := newMachine(t, cfg)

	got := run(m, epoch, []tick{{"tap", 0.9}, {"tap", 0.95}})
	require.Len(t, got[1], 1)
	ev := got[1][0]
	assert.Equal(t, "play_pause", ev.Action)
	assert.Equal(t, "session-1", ev.SessionID)
	assert.Equal(t, epoch.Add(350*time.Millisecond), ev.Timestamp)
	assert.InDelta(t, 0.95, ev.Confidence, 1e-12)
	assert.NotEmpty(t, ev.ID)
}

func TestMachineReset(t *testing.T) {
	m := newMachine(t, scenarioConfig())
	run(m, epoch, []tick{{"A", 0.9}, {"A", 0.9}})
	m.Reset()
	assert.Equal(t, Idle, m.State())
	label, conf := m.Display()
	assert.Empty(t, label)
	assert.Zero(t, conf)
}

func TestNewMachineValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MachineConfig)
	}{
		{"low above high", func(c *MachineConfig) { c.LowThreshold = 0.9 }},
		{"zero trigger", func(c *MachineConfig) { c.TriggerFrames = 0 }},
		{"zero miss", func(c *MachineConfig) { c.MissFrames = 0 }},
		{"negative cooldown", func(c *MachineConfig) { c.Cooldown = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := scenarioConfig()
			tt.mutate(&cfg)
			_, err := NewMachine(cfg)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}

func TestConfigFromSettings(t *testing.T) {
	cfg := ConfigFromSettings(conf.Defaults().Events)
	assert.InDelta(t, 0.85, cfg.HighThreshold, 1e-12)
	assert.Equal(t, 2, cfg.TriggerFrames)
	assert.Equal(t, 1500*time.Millisecond, cfg.Cooldown)
	_, err := NewMachine(cfg)
	assert.NoError(t, err)
}

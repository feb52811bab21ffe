package logger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestSlogLoggerLevels(t *testing.T) {
	tests := []struct {
		name     string
		level    LogLevel
		log      func(Logger)
		expected int
	}{
		{"debug passes at debug", LogLevelDebug, func(l Logger) { l.Debug("x") }, 1},
		{"debug dropped at info", LogLevelInfo, func(l Logger) { l.Debug("x") }, 0},
		{"trace dropped at debug", LogLevelDebug, func(l Logger) { l.Trace("x") }, 0},
		{"trace passes at trace", LogLevelTrace, func(l Logger) { l.Trace("x") }, 1},
		{"error always passes", LogLevelError, func(l Logger) { l.Error("x") }, 1},
		{"explicit warn at error", LogLevelError, func(l Logger) { l.Log(LogLevelWarn, "x") }, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(NewSlogLogger(&buf, tt.level, time.UTC))
			assert.Len(t, decodeLines(t, &buf), tt.expected)
		})
	}
}

func TestTraceLevelName(t *testing.T) {
	var buf bytes.Buffer
	NewSlogLogger(&buf, LogLevelTrace, time.UTC).Trace("deep")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "TRACE", lines[0]["level"])
}

func TestFieldsAndModules(t *testing.T) {
	var buf bytes.Buffer
	base := NewSlogLogger(&buf, LogLevelDebug, time.UTC)

	l := base.Module("sources").Module("tcp").With(String("session", "abc"))
	l.Info("connected",
		Int("frame_size", 2048),
		Float64("confidence", 0.123456),
		Error(errors.New("boom")),
		Duration("elapsed", 1500*time.Millisecond))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, "sources.tcp", line["module"])
	assert.Equal(t, "abc", line["session"])
	assert.InDelta(t, 2048, line["frame_size"], 0)
	assert.InDelta(t, 0.123, line["confidence"], 1e-9)
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "1.5s", line["elapsed"])
}

func TestWithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewSlogLogger(&buf, LogLevelInfo, nil).Module("events")
	_ = parent.With(String("label", "tap"))
	parent.Info("tick")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.NotContains(t, lines[0], "label")
}

func TestWithContextTraceID(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(&buf, LogLevelInfo, nil)

	l.WithContext(WithTraceID(context.Background(), "session-1")).Info("hello")
	l.WithContext(context.Background()).Info("plain")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "session-1", lines[0]["trace_id"])
	assert.NotContains(t, lines[1], "trace_id")
}

func TestCentralLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"classifier": "error"},
	})
	require.NoError(t, err)

	cl.Module("pipeline").Debug("visible")
	cl.Module("classifier").Info("hidden")
	require.NoError(t, cl.Flush())
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := decodeLines(t, bytes.NewBuffer(data))
	require.Len(t, lines, 1)
	assert.Equal(t, "visible", lines[0]["msg"])
	assert.Equal(t, "pipeline", lines[0]["module"])
}

func TestCentralLoggerRejectsBadTimezone(t *testing.T) {
	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	assert.Error(t, err)

	_, err = NewCentralLogger(nil)
	assert.Error(t, err)
}

func TestGlobalFallback(t *testing.T) {
	assert.NotNil(t, Global().Module("test"))
}

package analysis

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sawring/sawring/internal/classifier"
	"github.com/sawring/sawring/internal/conf"
	"github.com/sawring/sawring/internal/events"
	"github.com/sawring/sawring/internal/features"
	"github.com/sawring/sawring/internal/sources"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scriptedClassifier struct {
	predictions []classifier.Prediction
	calls       int
}

func (c *scriptedClassifier) Predict(features.Tensor) (classifier.Prediction, error) {
	if c.calls >= len(c.predictions) {
		return classifier.Prediction{Label: "none", Confidence: 1}, nil
	}
	p := c.predictions[c.calls]
	c.calls++
	return p, nil
}

func (c *scriptedClassifier) Labels() classifier.Labels { return classifier.DefaultLabels() }
func (c *scriptedClassifier) Available() bool           { return true }
func (c *scriptedClassifier) Close() error              { return nil }

func tapScript() *scriptedClassifier {
	return &scriptedClassifier{predictions: []classifier.Prediction{
		{Label: "tap", Confidence: 0.9},
		{Label: "tap", Confidence: 0.9},
		{Label: "tap", Confidence: 0.3},
		{Label: "tap", Confidence: 0.3},
	}}
}

func testSettings() *conf.Settings {
	s := conf.Defaults()
	s.Source.Type = conf.SourceFile
	s.Features.Window = 100 * time.Millisecond
	s.Classifier.Interval = 350 * time.Millisecond
	return s
}

// writeTone writes a 16-bit mono WAV of a 440 Hz tone.
func writeTone(t *testing.T, d time.Duration) string {
	t.Helper()
	const rate = 24000
	n := int(d.Seconds() * rate)
	samples := make([]int, n)
	for i := range samples {
		samples[i] = int(8000 * math.Sin(2*math.Pi*440*float64(i)/rate))
	}

	path := filepath.Join(t.TempDir(), "take.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:   samples,
		Format: &audio.Format{SampleRate: rate, NumChannels: 1},
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestFileRunsOnRecordingClock(t *testing.T) {
	path := writeTone(t, 1500*time.Millisecond)
	var out bytes.Buffer

	res, err := File(context.Background(), testSettings(), FileOptions{
		Path:       path,
		Classifier: tapScript(),
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, 1500*time.Millisecond, res.Duration)
	assert.Equal(t, uint64(36000*2), res.BytesFed)
	// Ticks at 0.35, 0.70, 1.05 and 1.40 seconds.
	assert.Equal(t, uint64(4), res.Inferences)
	assert.Zero(t, res.Skipped)

	require.Len(t, res.Events, 2)
	start, end := res.Events[0], res.Events[1]
	assert.Equal(t, events.KindStart, start.Kind)
	assert.Equal(t, "tap", start.Label)
	assert.Equal(t, "play_pause", start.Action)
	assert.Equal(t, 700*time.Millisecond, start.Timestamp.Sub(time.Unix(0, 0)))
	assert.Equal(t, events.KindEnd, end.Kind)
	assert.Equal(t, 700*time.Millisecond, end.Duration)

	table := out.String()
	assert.Contains(t, table, "OFFSET")
	assert.Contains(t, table, "0.700s")
	assert.Contains(t, table, "play_pause")
	assert.Contains(t, table, "90%")
	assert.Contains(t, table, "700ms")
}

func TestFileJSONOutput(t *testing.T) {
	path := writeTone(t, 1500*time.Millisecond)
	var out bytes.Buffer

	_, err := File(context.Background(), testSettings(), FileOptions{
		Path:       path,
		Format:     FormatJSON,
		Classifier: tapScript(),
	}, &out)
	require.NoError(t, err)

	var kinds []events.Kind
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		var ev events.Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev))
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []events.Kind{events.KindStart, events.KindEnd}, kinds)
}

func TestFileWithoutGestures(t *testing.T) {
	path := writeTone(t, 500*time.Millisecond)
	var out bytes.Buffer

	res, err := File(context.Background(), testSettings(), FileOptions{
		Path:       path,
		Classifier: &scriptedClassifier{},
	}, &out)
	require.NoError(t, err)
	assert.Empty(t, res.Events)
	assert.Contains(t, out.String(), "no gestures detected")
}

func TestFileRejectsBadInput(t *testing.T) {
	_, err := File(context.Background(), testSettings(), FileOptions{
		Path:       writeTone(t, 100*time.Millisecond),
		Format:     "xml",
		Classifier: &scriptedClassifier{},
	}, &bytes.Buffer{})
	require.Error(t, err)

	_, err = File(context.Background(), testSettings(), FileOptions{
		Path:       filepath.Join(t.TempDir(), "missing.wav"),
		Classifier: &scriptedClassifier{},
	}, &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, sources.IsConnectError(err))
}

func TestFileHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := File(ctx, testSettings(), FileOptions{
		Path:       writeTone(t, 100*time.Millisecond),
		Classifier: &scriptedClassifier{},
	}, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

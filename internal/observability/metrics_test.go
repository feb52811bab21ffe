package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsIndependentRegistries(t *testing.T) {
	t.Parallel()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := NewMetrics()
			if err != nil {
				errs <- err
				return
			}
			m.Pipeline.RecordFeed(2048, 1)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("NewMetrics failed: %v", err)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Pipeline.RecordFeed(4096, 2)
	m.Pipeline.ObserveInference(12 * time.Millisecond)
	m.Sources.SetConnectionState("tcp", "connected")
	m.Events.RecordEvent("start", "tap")
	m.MQTT.UpdateConnectionStatus(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "sawring_frames_total 2")
	assert.Contains(t, text, `sawring_source_connection_state{source="tcp"} 2`)
	assert.Contains(t, text, `sawring_events_total{kind="start",label="tap"} 1`)
	assert.Contains(t, text, "sawring_mqtt_connection_status 1")
	assert.Contains(t, text, "go_goroutines")

	assert.InDelta(t, 4096, testutil.ToFloat64(m.Pipeline.BytesTotal), 0)
}

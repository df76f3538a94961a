package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/mutker/senselog/internal/sample"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveSample(t *testing.T) {
	m := New()
	m.ObserveSample(sample.Sample{Temperature: sample.Of(68), Altitude: sample.Of(364)})
	m.ObserveSample(sample.Sample{Temperature: sample.Of(70)})

	assert.InDelta(t, 70.0, testutil.ToFloat64(m.temperature), 1e-9)
	assert.InDelta(t, 364.0, testutil.ToFloat64(m.altitude), 1e-9, "absent channel keeps the last value")
	assert.InDelta(t, 0.0, testutil.ToFloat64(m.humidity), 1e-9)
}

func TestCyclesAndStreams(t *testing.T) {
	m := New()
	m.CycleResult(ResultOK)
	m.CycleResult(ResultOK)
	m.CycleResult(ResultSensorError)
	m.StreamOpened()
	m.StreamOpened()
	m.StreamClosed()
	m.ArtifactVersion(7)
	m.RenderDuration(20 * time.Millisecond)

	assert.InDelta(t, 2.0, testutil.ToFloat64(m.cycles.WithLabelValues(ResultOK)), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues(ResultSensorError)), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.streams), 1e-9)
	assert.InDelta(t, 7.0, testutil.ToFloat64(m.artifact), 1e-9)
}

func TestHandler(t *testing.T) {
	m := New()
	m.CycleResult(ResultOK)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `senselog_cycles_total{result="ok"} 1`)
	assert.Contains(t, string(body), "senselog_active_streams 0")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSample(sample.Sample{Temperature: sample.Of(1)})
		m.CycleResult(ResultOK)
		m.RenderDuration(time.Second)
		m.ArtifactVersion(1)
		m.StreamOpened()
		m.StreamClosed()
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}

// Package metrics exposes sampler and server state to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"codeberg.org/mutker/senselog/internal/sample"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "senselog"

// Cycle results recorded by CycleResult.
const (
	ResultOK          = "ok"
	ResultSensorError = "sensor_error"
	ResultWriteError  = "write_error"
	ResultRenderError = "render_error"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	temperature   prometheus.Gauge
	humidity      prometheus.Gauge
	altitude      prometheus.Gauge
	cycles        *prometheus.CounterVec
	renderSeconds prometheus.Histogram
	artifact      prometheus.Gauge
	streams       prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_fahrenheit",
			Help:      "Latest calibrated temperature.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "humidity_percent",
			Help:      "Latest calibrated relative humidity.",
		}),
		altitude: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "altitude_feet",
			Help:      "Latest calibrated pressure altitude.",
		}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Sampling cycles by result.",
		}, []string{"result"}),
		renderSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_seconds",
			Help:      "Time spent rendering the chart.",
			Buckets:   prometheus.DefBuckets,
		}),
		artifact: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifact_version",
			Help:      "Version of the last published chart.",
		}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Connected live data clients.",
		}),
	}

	m.registry.MustRegister(
		m.temperature,
		m.humidity,
		m.altitude,
		m.cycles,
		m.renderSeconds,
		m.artifact,
		m.streams,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	for _, result := range []string{ResultOK, ResultSensorError, ResultWriteError, ResultRenderError} {
		m.cycles.WithLabelValues(result)
	}

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveSample(s sample.Sample) {
	if m == nil {
		return
	}
	if v, ok := s.Temperature.Get(); ok {
		m.temperature.Set(v)
	}
	if v, ok := s.Humidity.Get(); ok {
		m.humidity.Set(v)
	}
	if v, ok := s.Altitude.Get(); ok {
		m.altitude.Set(v)
	}
}

func (m *Metrics) CycleResult(result string) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
}

func (m *Metrics) RenderDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.renderSeconds.Observe(d.Seconds())
}

func (m *Metrics) ArtifactVersion(version uint64) {
	if m == nil {
		return
	}
	m.artifact.Set(float64(version))
}

func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.streams.Inc()
}

func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.streams.Dec()
}

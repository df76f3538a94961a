// Package sampler runs the sampling loop: read the sensor, calibrate,
// persist, fan out and redraw the chart, once per interval.
package sampler

import (
	"context"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/senselog/internal/calibration"
	"codeberg.org/mutker/senselog/internal/chart"
	"codeberg.org/mutker/senselog/internal/errors"
	"codeberg.org/mutker/senselog/internal/logger"
	"codeberg.org/mutker/senselog/internal/metrics"
	"codeberg.org/mutker/senselog/internal/sample"
	"codeberg.org/mutker/senselog/internal/sensor"
)

// Writer persists one sample durably.
type Writer interface {
	Append(s sample.Sample) error
}

// Collector receives every stored sample. Failures do not fail the cycle.
type Collector interface {
	Record(ctx context.Context, s sample.Sample) error
}

type Renderer interface {
	Render(samples []sample.Sample) ([]byte, error)
}

type Publisher interface {
	Publish(data []byte, points int, at time.Time) (*chart.Artifact, error)
}

// Sink is a named Collector.
type Sink struct {
	Name      string
	Collector Collector
}

type Config struct {
	Interval time.Duration
	Channels sensor.Channels
}

// Components are the collaborators of a Loop. Sinks and Metrics are
// optional.
type Components struct {
	Sensor    sensor.Sensor
	Model     calibration.Model
	Writer    Writer
	Store     *sample.Store
	Renderer  Renderer
	Publisher Publisher
	Sinks     []Sink
	Metrics   *metrics.Metrics
}

type Loop struct {
	cfg     Config
	c       Components
	log     logger.Logger
	now     func() time.Time
	state   atomic.Int32
	started atomic.Bool
	done    chan struct{}
	cycles  uint64
}

func New(cfg Config, c Components) *Loop {
	return &Loop{
		cfg:  cfg,
		c:    c,
		log:  logger.New("sampler"),
		now:  time.Now,
		done: make(chan struct{}),
	}
}

// State returns the current state. It is safe for concurrent use.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Done is closed once the loop has reached Stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

// Run executes cycles until ctx is cancelled. Cancellation is observed
// before each cycle and while sleeping; a cycle in progress always
// completes. Run may only be called once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return errors.New().WithMessage(errors.ErrAlreadyRunning, "sampling loop already started")
	}

	defer close(l.done)
	defer l.setState(Stopped)

	l.log.Info().
		Dur("interval", l.cfg.Interval).
		Bool("temperature", l.cfg.Channels.Temperature).
		Bool("humidity", l.cfg.Channels.Humidity).
		Bool("pressure", l.cfg.Channels.Pressure).
		Msg("Sampling loop started")

	for ctx.Err() == nil {
		l.cycles++
		if err := l.cycle(ctx); err != nil {
			l.log.Error().Err(err).Uint64("cycle", l.cycles).Msg("Sampling cycle failed")
		}

		l.setState(Sleeping)
		if !sleep(ctx, l.cfg.Interval) {
			break
		}
	}

	l.setState(Stopping)
	l.log.Info().Uint64("cycles", l.cycles).Msg("Sampling loop stopped")

	return nil
}

func (l *Loop) cycle(ctx context.Context) error {
	errFactory := errors.New()

	l.setState(Sampling)
	reading, err := l.c.Sensor.Sense(l.cfg.Channels)
	at := l.now()
	if err != nil {
		l.c.Metrics.CycleResult(metrics.ResultSensorError)
		return errFactory.Wrap(errors.ErrSensorRead, err)
	}

	l.setState(Calibrating)
	s := l.c.Model.Apply(reading, at)
	if !s.Finite() {
		l.c.Metrics.CycleResult(metrics.ResultSensorError)
		return errFactory.WithData(errors.ErrNonFiniteReading, s.Line())
	}

	// The line is written before the store append so line i of the log
	// always matches sample i of the store.
	l.setState(Persisting)
	if err := l.c.Writer.Append(s); err != nil {
		l.c.Metrics.CycleResult(metrics.ResultWriteError)
		return err
	}
	l.c.Store.Append(s)
	l.c.Metrics.ObserveSample(s)

	l.log.Debug().
		Uint64("cycle", l.cycles).
		Str("temperature", s.Temperature.String()).
		Str("humidity", s.Humidity.String()).
		Str("altitude", s.Altitude.String()).
		Msg("Sample recorded")

	// Sinks still get the sample when shutdown starts mid-cycle.
	sinkCtx := context.WithoutCancel(ctx)
	for _, sink := range l.c.Sinks {
		if err := sink.Collector.Record(sinkCtx, s); err != nil {
			l.log.Warn().Err(err).Str("sink", sink.Name).Msg("Failed to forward sample")
		}
	}

	l.setState(Rendering)
	if err := l.render(); err != nil {
		l.c.Metrics.CycleResult(metrics.ResultRenderError)
		return err
	}

	l.c.Metrics.CycleResult(metrics.ResultOK)
	return nil
}

func (l *Loop) render() error {
	samples := l.c.Store.All()

	start := time.Now()
	data, err := l.c.Renderer.Render(samples)
	l.c.Metrics.RenderDuration(time.Since(start))
	if err != nil {
		return err
	}

	artifact, err := l.c.Publisher.Publish(data, len(chart.Series(samples)), l.now())
	if artifact != nil {
		l.c.Metrics.ArtifactVersion(artifact.Version)
	}
	return err
}

// sleep waits for d and reports false if ctx was cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

package calibration_test

import (
	"math"
	"testing"
	"time"

	"codeberg.org/mutker/senselog/internal/calibration"
	"codeberg.org/mutker/senselog/internal/sample"
	"codeberg.org/mutker/senselog/internal/sensor"
	"github.com/stretchr/testify/assert"
)

var offsets = calibration.Offsets{Temperature: -17.2, Humidity: 8.5, Altitude: -65}

func TestTemperature(t *testing.T) {
	m := calibration.New(offsets)

	assert.InDelta(t, 32+offsets.Temperature, m.Temperature(0), 1e-9)
	assert.InDelta(t, 212+offsets.Temperature, m.Temperature(100), 1e-9)
	assert.InDelta(t, -40+offsets.Temperature, m.Temperature(-40), 1e-9)
	assert.InDelta(t, 68.0, calibration.Model{}.Temperature(20), 1e-9)
}

func TestHumidity(t *testing.T) {
	m := calibration.New(offsets)

	for _, h := range []float64{0, 12.5, 50, 99.9, -3} {
		assert.InDelta(t, h+offsets.Humidity, m.Humidity(h), 1e-9)
	}
}

func TestAltitude(t *testing.T) {
	m := calibration.New(offsets)

	assert.InDelta(t, offsets.Altitude, m.Altitude(1013.25), 1e-9)
	assert.InDelta(t, 0, calibration.Model{}.Altitude(1013.25), 1e-9)

	// Lower pressure is higher up; roughly 364 ft for 1000 hPa.
	assert.InDelta(t, 364, calibration.Model{}.Altitude(1000), 1)
	assert.Greater(t, m.Altitude(900), m.Altitude(1000))
}

func TestNonFinitePropagates(t *testing.T) {
	m := calibration.New(offsets)

	assert.True(t, math.IsNaN(m.Temperature(math.NaN())))
	assert.True(t, math.IsNaN(m.Humidity(math.NaN())))
	assert.True(t, math.IsInf(m.Temperature(math.Inf(1)), 1))
}

func TestApply(t *testing.T) {
	m := calibration.New(offsets)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	s := m.Apply(sensor.Reading{
		Temperature: sample.Of(20),
		Humidity:    sample.Of(50),
		Pressure:    sample.Of(1013.25),
	}, ts)

	temp, _ := s.Temperature.Get()
	hum, _ := s.Humidity.Get()
	alt, _ := s.Altitude.Get()
	assert.InDelta(t, 68+offsets.Temperature, temp, 1e-9)
	assert.InDelta(t, 50+offsets.Humidity, hum, 1e-9)
	assert.InDelta(t, offsets.Altitude, alt, 1e-9)
	assert.Equal(t, ts, s.Time)
}

func TestApplyAbsentChannels(t *testing.T) {
	s := calibration.New(offsets).Apply(sensor.Reading{Humidity: sample.Of(40)}, time.Now())

	assert.False(t, s.Temperature.Present())
	assert.True(t, s.Humidity.Present())
	assert.False(t, s.Altitude.Present())
}

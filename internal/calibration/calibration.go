// Package calibration converts raw sensor units into calibrated display
// units: °F for temperature, percent for humidity and feet for altitude.
package calibration

import (
	"math"
	"time"

	"codeberg.org/mutker/senselog/internal/sample"
	"codeberg.org/mutker/senselog/internal/sensor"
)

const (
	seaLevelPressure = 1013.25 // hPa
	barometricScale  = 44330.8 // m
	barometricPower  = 0.1903
	metersToFeet     = 3.28084
)

// Offsets are additive corrections applied after unit conversion.
type Offsets struct {
	Temperature float64 // °F
	Humidity    float64 // %
	Altitude    float64 // ft
}

// Model applies a fixed set of offsets. The zero Model converts units only.
type Model struct {
	offsets Offsets
}

func New(offsets Offsets) Model {
	return Model{offsets: offsets}
}

func (m Model) Offsets() Offsets {
	return m.offsets
}

// Temperature converts °C to calibrated °F.
func (m Model) Temperature(celsius float64) float64 {
	return celsius*9/5 + 32 + m.offsets.Temperature
}

// Humidity returns calibrated relative humidity in percent.
func (m Model) Humidity(percent float64) float64 {
	return percent + m.offsets.Humidity
}

// Altitude converts station pressure in hPa to calibrated altitude in feet.
func (m Model) Altitude(hPa float64) float64 {
	return PressureAltitude(hPa)*metersToFeet + m.offsets.Altitude
}

// PressureAltitude returns the standard atmosphere altitude in meters for a
// pressure in hPa.
func PressureAltitude(hPa float64) float64 {
	return barometricScale * (1 - math.Pow(hPa/seaLevelPressure, barometricPower))
}

// Apply calibrates every present channel of r into a Sample taken at ts.
// Absent channels stay absent.
func (m Model) Apply(r sensor.Reading, ts time.Time) sample.Sample {
	s := sample.Sample{Time: ts}
	if v, ok := r.Temperature.Get(); ok {
		s.Temperature = sample.Of(m.Temperature(v))
	}
	if v, ok := r.Humidity.Get(); ok {
		s.Humidity = sample.Of(m.Humidity(v))
	}
	if v, ok := r.Pressure.Get(); ok {
		s.Altitude = sample.Of(m.Altitude(v))
	}
	return s
}

// Package sensor reads raw temperature, humidity and pressure from an
// environmental sensor.
package sensor

import (
	"codeberg.org/mutker/senselog/internal/errors"
	"codeberg.org/mutker/senselog/internal/sample"
)

// Channels selects which quantities are requested on each read.
type Channels struct {
	Temperature bool
	Humidity    bool
	Pressure    bool
}

// AllChannels requests every quantity.
var AllChannels = Channels{Temperature: true, Humidity: true, Pressure: true}

// Reading holds raw values: °C, percent relative humidity and hPa. Channels
// that were not requested are absent.
type Reading struct {
	Temperature sample.Value
	Humidity    sample.Value
	Pressure    sample.Value
}

// Sensor is an open sensor device.
type Sensor interface {
	// Sense performs one measurement of the requested channels.
	Sense(ch Channels) (Reading, error)
	// Close releases the device. It is safe to call more than once.
	Close() error
}

// Config selects and addresses the sensor device.
type Config struct {
	Driver   string
	Bus      string
	Address  uint16
	Channels Channels
}

// Open opens the configured driver.
func Open(cfg Config) (Sensor, error) {
	switch cfg.Driver {
	case "bme280":
		return OpenBME280(cfg.Bus, cfg.Address, cfg.Channels)
	case "simulated":
		return NewSimulated(), nil
	default:
		return nil, errors.New().WithData(errors.ErrSensorUnavailable, "unknown driver "+cfg.Driver)
	}
}

func filter(ch Channels, temperature, humidity, pressure float64) Reading {
	var r Reading
	if ch.Temperature {
		r.Temperature = sample.Of(temperature)
	}
	if ch.Humidity {
		r.Humidity = sample.Of(humidity)
	}
	if ch.Pressure {
		r.Pressure = sample.Of(pressure)
	}
	return r
}

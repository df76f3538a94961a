package sensor

import (
	"sync"

	"codeberg.org/mutker/senselog/internal/errors"
	"codeberg.org/mutker/senselog/internal/logger"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

// BME280 is a Bosch BME280 on an I2C bus.
type BME280 struct {
	bus    i2c.BusCloser
	dev    *bmxx80.Dev
	mu     sync.Mutex
	closed bool
}

// OpenBME280 initializes the host drivers and opens the sensor at addr on
// the named bus. An empty bus name selects the first available bus. Only the
// requested channels are measured by the device.
func OpenBME280(busName string, addr uint16, ch Channels) (*BME280, error) {
	errFactory := errors.New()

	if _, err := host.Init(); err != nil {
		return nil, errFactory.Wrap(errors.ErrSensorUnavailable, err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrSensorUnavailable, err)
	}

	opts := measureOpts(ch)
	dev, err := bmxx80.NewI2C(bus, addr, &opts)
	if err != nil {
		bus.Close()
		return nil, errFactory.Wrap(errors.ErrSensorUnavailable, err)
	}

	logger.Info().
		Str("bus", bus.String()).
		Uint16("address", addr).
		Str("device", dev.String()).
		Msg("Sensor initialized")

	return &BME280{bus: bus, dev: dev}, nil
}

// measureOpts turns off pressure and humidity oversampling for channels that
// are not requested. Temperature is always measured: the device uses it to
// compensate both other channels.
func measureOpts(ch Channels) bmxx80.Opts {
	opts := bmxx80.DefaultOpts
	if !ch.Pressure {
		opts.Pressure = bmxx80.Off
	}
	if !ch.Humidity {
		opts.Humidity = bmxx80.Off
	}
	return opts
}

func (b *BME280) Sense(ch Channels) (Reading, error) {
	errFactory := errors.New()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return Reading{}, errFactory.New(errors.ErrSensorClosed)
	}

	var e physic.Env
	if err := b.dev.Sense(&e); err != nil {
		return Reading{}, errFactory.Wrap(errors.ErrSensorRead, err)
	}

	return filter(ch,
		e.Temperature.Celsius(),
		float64(e.Humidity)/float64(physic.PercentRH),
		float64(e.Pressure)/float64(physic.Pascal)/100,
	), nil
}

func (b *BME280) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	if err := b.dev.Halt(); err != nil {
		errs = append(errs, err)
	}
	if err := b.bus.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.New().Wrap(errors.ErrShutdownFailed, errors.Join(errs...))
	}

	logger.Debug().Msg("Sensor released")
	return nil
}

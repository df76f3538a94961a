package telemetry

import (
	"time"

	"codeberg.org/mutker/senselog/internal/errors"
)

const (
	defaultBroker         = "tcp://localhost:1883"
	defaultTopic          = "senselog/samples"
	defaultClientID       = "senselog"
	defaultConnectTimeout = 5 * time.Second
	publishTimeout        = 2 * time.Second
	disconnectQuiesce     = 250 // milliseconds
)

type Config struct {
	Enabled        bool
	Broker         string
	Topic          string
	ClientID       string
	QoS            byte
	Retained       bool
	ConnectTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Broker:         defaultBroker,
		Topic:          defaultTopic,
		ClientID:       defaultClientID,
		Retained:       true,
		ConnectTimeout: defaultConnectTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if !c.Enabled {
		return nil
	}
	if c.Broker == "" {
		return errFactory.New(ErrInvalidBroker)
	}
	if c.Topic == "" {
		return errFactory.WithData(ErrInvalidConfig, "topic must not be empty")
	}
	if c.QoS > 2 {
		return errFactory.WithData(ErrInvalidConfig, c.QoS)
	}
	return nil
}

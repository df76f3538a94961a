// Package telemetry publishes calibrated samples to an MQTT broker.
package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"codeberg.org/mutker/senselog/internal/errors"
	"codeberg.org/mutker/senselog/internal/logger"
	"codeberg.org/mutker/senselog/internal/sample"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

type service struct {
	client mqtt.Client
	cfg    Config
	log    logger.Logger
}

// No-op implementation
type noopCollector struct{}

func NewService(cfg Config) (Collector, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		logger.Debug().Msg("MQTT telemetry disabled, using no-op collector")
		return &noopCollector{}, nil
	}

	log := logger.New("telemetry")

	// Broker sessions are keyed by client ID, so every process gets its own.
	clientID := cfg.ClientID + "-" + uuid.NewString()[:8]

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(cfg.ConnectTimeout).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Info().Str("broker", cfg.Broker).Msg("Connected to MQTT broker")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Str("broker", cfg.Broker).Msg("Lost connection to MQTT broker")
		})

	client := mqtt.NewClient(opts)

	// With connect retry the token only completes once a connection is up;
	// an unreachable broker must not block startup.
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		log.Warn().
			Str("broker", cfg.Broker).
			Dur("timeout", cfg.ConnectTimeout).
			Msg("MQTT broker not reachable yet, retrying in background")
	} else if err := token.Error(); err != nil {
		log.Warn().Err(err).Str("broker", cfg.Broker).Msg("MQTT connect failed, retrying in background")
	}

	return newService(cfg, client, log), nil
}

func newService(cfg Config, client mqtt.Client, log logger.Logger) *service {
	return &service{
		client: client,
		cfg:    cfg,
		log:    log,
	}
}

// NewPayload converts a sample to its published form.
func NewPayload(s sample.Sample) Payload {
	return Payload{
		Temperature: pointer(s.Temperature),
		Humidity:    pointer(s.Humidity),
		Altitude:    pointer(s.Altitude),
		Time:        s.Time.Format(time.RFC3339Nano),
	}
}

func pointer(v sample.Value) *float64 {
	f, ok := v.Get()
	if !ok {
		return nil
	}
	return &f
}

func (s *service) Record(ctx context.Context, smp sample.Sample) error {
	errFactory := errors.New()

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	if !s.client.IsConnectionOpen() {
		return errFactory.New(ErrNotConnected)
	}

	payload, err := json.Marshal(NewPayload(smp))
	if err != nil {
		return errFactory.Wrap(ErrEncodePayload, err)
	}

	token := s.client.Publish(s.cfg.Topic, s.cfg.QoS, s.cfg.Retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errFactory.WithData(ErrOperationTimeout, s.cfg.Topic)
	}
	if err := token.Error(); err != nil {
		return errFactory.Wrap(ErrPublish, err)
	}

	s.log.Debug().Str("topic", s.cfg.Topic).Int("bytes", len(payload)).Msg("Published sample")

	return nil
}

func (s *service) Close() error {
	s.client.Disconnect(disconnectQuiesce)
	s.log.Debug().Msg("Disconnected from MQTT broker")
	return nil
}

// No-op implementation
func (*noopCollector) Record(_ context.Context, _ sample.Sample) error {
	return nil
}

func (*noopCollector) Close() error {
	return nil
}

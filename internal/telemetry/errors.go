package telemetry

import "codeberg.org/mutker/senselog/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig
	ErrInvalidBroker = errors.ErrorCode("telemetry_invalid_broker")

	// Publish Errors
	ErrEncodePayload = errors.ErrorCode("telemetry_encode_payload_failed")
	ErrNotConnected  = errors.ErrorCode("telemetry_not_connected")
	ErrPublish       = errors.ErrorCode("telemetry_publish_failed")

	// Operation Errors
	ErrOperationTimeout = errors.ErrTimeout
	ErrServiceShutdown  = errors.ErrShutdownFailed
)

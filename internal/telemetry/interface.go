package telemetry

import (
	"context"

	"codeberg.org/mutker/senselog/internal/sample"
)

// Collector forwards samples to an external consumer.
type Collector interface {
	Record(ctx context.Context, s sample.Sample) error
	Close() error
}

// Payload is the JSON document published for each sample. Absent
// channels are omitted.
type Payload struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Altitude    *float64 `json:"altitude,omitempty"`
	Time        string   `json:"time"`
}

package archive

import (
	"context"

	"codeberg.org/mutker/senselog/internal/sample"
)

// Collector defines the core domain interface
type Collector interface {
	Record(ctx context.Context, s sample.Sample) error
	Close() error
}

// Repository defines the interface for sample storage
type Repository interface {
	Record(s sample.Sample) error
	Close() error
}

package sensor

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"codeberg.org/mutker/senselog/internal/errors"
)

// Simulated produces plausible indoor readings that drift slowly, for hosts
// without a sensor attached.
type Simulated struct {
	mu     sync.Mutex
	rand   *rand.Rand
	start  time.Time
	closed bool
}

func NewSimulated() *Simulated {
	return &Simulated{
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
		start: time.Now(),
	}
}

func (s *Simulated) Sense(ch Channels) (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Reading{}, errors.New().New(errors.ErrSensorClosed)
	}

	// One slow cycle per hour plus a little noise.
	phase := 2 * math.Pi * time.Since(s.start).Hours()
	temperature := 22 + 2*math.Sin(phase) + (s.rand.Float64()-0.5)*0.2
	humidity := 45 - 5*math.Sin(phase) + (s.rand.Float64()-0.5)*0.5
	pressure := 1013.25 + (s.rand.Float64()-0.5)*0.4

	return filter(ch, temperature, humidity, pressure), nil
}

func (s *Simulated) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

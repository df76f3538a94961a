package sample

import "sync"

// Store is an append-only, time ordered sequence of samples. It has a single
// writer and any number of concurrent readers.
type Store struct {
	mu      sync.RWMutex
	samples []Sample
}

func NewStore() *Store {
	return &Store{samples: make([]Sample, 0, 256)}
}

// Append adds s as the most recent sample.
func (st *Store) Append(s Sample) {
	st.mu.Lock()
	st.samples = append(st.samples, s)
	st.mu.Unlock()
}

// Latest returns the most recent sample, or false before the first append.
func (st *Store) Latest() (Sample, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if len(st.samples) == 0 {
		return Sample{}, false
	}
	return st.samples[len(st.samples)-1], true
}

// All returns a snapshot of every sample in append order. The snapshot
// shares the backing array but its capacity is clipped, so later appends
// never become visible through it and callers must not modify it.
func (st *Store) All() []Sample {
	st.mu.RLock()
	defer st.mu.RUnlock()

	n := len(st.samples)
	return st.samples[:n:n]
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()

	return len(st.samples)
}

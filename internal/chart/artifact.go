package chart

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/senselog/internal/errors"
)

const artifactPerm = 0o644

// Artifact is one published chart image. It is never modified after
// publication.
type Artifact struct {
	PNG        []byte
	Version    uint64
	Points     int
	RenderedAt time.Time
}

// Publisher holds the current artifact and mirrors it to a file. Readers
// always observe a complete artifact, both in memory and on disk.
type Publisher struct {
	path    string
	mu      sync.Mutex
	current atomic.Pointer[Artifact]
}

// NewPublisher returns a Publisher that writes to path. An empty path keeps
// the artifact in memory only.
func NewPublisher(path string) *Publisher {
	return &Publisher{path: path}
}

func (p *Publisher) Path() string {
	return p.path
}

// Latest returns the current artifact, or nil before the first publish.
func (p *Publisher) Latest() *Artifact {
	return p.current.Load()
}

// Publish replaces the current artifact. The in-memory artifact is swapped
// even when mirroring to disk fails; that failure is returned.
func (p *Publisher) Publish(data []byte, points int, at time.Time) (*Artifact, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var version uint64 = 1
	if prev := p.current.Load(); prev != nil {
		version = prev.Version + 1
	}

	a := &Artifact{PNG: data, Version: version, Points: points, RenderedAt: at}
	p.current.Store(a)

	if p.path == "" {
		return a, nil
	}
	if err := writeAtomic(p.path, data); err != nil {
		return a, errors.New().Wrap(errors.ErrPublishArtifact, err)
	}
	return a, nil
}

// writeAtomic writes to a temporary file in the target directory and renames
// it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, artifactPerm); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

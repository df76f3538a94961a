// Package shutdown stops the sampling loop and releases process resources
// exactly once, whichever signal or caller asks first.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"codeberg.org/mutker/senselog/internal/errors"
	"codeberg.org/mutker/senselog/internal/logger"
)

// Signals are the signals Watch subscribes to when none are given.
var Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGTSTP}

type release struct {
	name string
	fn   func() error
}

type Coordinator struct {
	cancel   context.CancelFunc
	stopped  <-chan struct{}
	timeout  time.Duration
	log      logger.Logger
	mu       sync.Mutex
	releases []release
	once     sync.Once
	err      error
	done     chan struct{}
}

// New returns a Coordinator that stops the loop with cancel and then waits
// up to timeout for stopped to close.
func New(cancel context.CancelFunc, stopped <-chan struct{}, timeout time.Duration) *Coordinator {
	return &Coordinator{
		cancel:  cancel,
		stopped: stopped,
		timeout: timeout,
		log:     logger.New("shutdown"),
		done:    make(chan struct{}),
	}
}

// Release registers fn to run during shutdown. Releases run in
// registration order.
func (c *Coordinator) Release(name string, fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.releases = append(c.releases, release{name: name, fn: fn})
}

// Done is closed once Shutdown has completed.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Shutdown cancels the loop, waits for it to stop and runs every release.
// Concurrent and repeated calls block until the first completes and return
// its result.
func (c *Coordinator) Shutdown() error {
	c.once.Do(func() {
		c.err = c.shutdown()
		close(c.done)
	})
	<-c.done
	return c.err
}

func (c *Coordinator) shutdown() error {
	c.log.Info().Msg("Shutting down")

	c.cancel()

	if c.stopped != nil {
		timer := time.NewTimer(c.timeout)
		select {
		case <-c.stopped:
			c.log.Debug().Msg("Sampling loop stopped")
		case <-timer.C:
			c.log.Warn().
				Dur("timeout", c.timeout).
				Msg("Sampling loop did not stop in time, releasing resources anyway")
		}
		timer.Stop()
	}

	c.mu.Lock()
	releases := c.releases
	c.mu.Unlock()

	var errs []error
	for _, r := range releases {
		if err := r.fn(); err != nil {
			c.log.Error().Err(err).Str("resource", r.name).Msg("Failed to release resource")
			errs = append(errs, errors.New().Wrap(errors.ErrShutdownFailed, err).WithMessage("release "+r.name))
			continue
		}
		c.log.Debug().Str("resource", r.name).Msg("Released")
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	c.log.Info().Msg("Shutdown complete")
	return nil
}

// Watch triggers Shutdown on the first of sigs (Signals if empty). Later
// signals are logged and ignored. It returns when shutdown has completed or
// ctx is cancelled.
func (c *Coordinator) Watch(ctx context.Context, sigs ...os.Signal) {
	if len(sigs) == 0 {
		sigs = Signals
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	defer signal.Stop(ch)

	triggered := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case sig := <-ch:
			if triggered {
				c.log.Warn().Str("signal", sig.String()).Msg("Shutdown already in progress, ignoring signal")
				continue
			}
			triggered = true
			c.log.Info().Str("signal", sig.String()).Msg("Received termination signal")
			go c.Shutdown()
		}
	}
}

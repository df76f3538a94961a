package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"codeberg.org/mutker/senselog/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLoop closes stopped shortly after being cancelled.
func fakeLoop(delay time.Duration) (context.CancelFunc, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		<-ctx.Done()
		time.Sleep(delay)
		close(stopped)
	}()
	return cancel, stopped
}

func TestShutdownOrder(t *testing.T) {
	cancel, stopped := fakeLoop(10 * time.Millisecond)
	c := New(cancel, stopped, time.Second)

	var order []string
	var loopStopped bool
	record := func(name string) func() error {
		return func() error {
			select {
			case <-stopped:
				loopStopped = true
			default:
			}
			order = append(order, name)
			return nil
		}
	}
	c.Release("sensor", record("sensor"))
	c.Release("logfile", record("logfile"))
	c.Release("archive", record("archive"))

	require.NoError(t, c.Shutdown())
	assert.Equal(t, []string{"sensor", "logfile", "archive"}, order)
	assert.True(t, loopStopped, "resources are released after the loop stops")
}

func TestShutdownIdempotent(t *testing.T) {
	cancel, stopped := fakeLoop(0)
	c := New(cancel, stopped, time.Second)

	var calls atomic.Int32
	c.Release("logfile", func() error {
		calls.Add(1)
		return assert.AnError
	})

	first := c.Shutdown()
	second := c.Shutdown()

	require.Error(t, first)
	assert.Equal(t, first, second)
	assert.True(t, errors.HasCode(first, errors.ErrShutdownFailed))
	assert.ErrorIs(t, first, assert.AnError)
	assert.Equal(t, int32(1), calls.Load())
}

func TestShutdownConcurrent(t *testing.T) {
	cancel, stopped := fakeLoop(5 * time.Millisecond)
	c := New(cancel, stopped, time.Second)

	var calls atomic.Int32
	c.Release("sensor", func() error {
		calls.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Shutdown())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed after shutdown")
	}
}

func TestShutdownTimeoutIsBestEffort(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	never := make(chan struct{})
	c := New(cancel, never, 20*time.Millisecond)

	released := false
	c.Release("sensor", func() error {
		released = true
		return nil
	})

	start := time.Now()
	require.NoError(t, c.Shutdown())
	assert.True(t, released)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWatchSignal(t *testing.T) {
	cancel, stopped := fakeLoop(0)
	c := New(cancel, stopped, time.Second)

	var calls atomic.Int32
	c.Release("sensor", func() error {
		calls.Add(1)
		return nil
	})

	// Keep SIGUSR1 from terminating the test binary before Watch subscribes.
	guard := make(chan os.Signal, 16)
	signal.Notify(guard, syscall.SIGUSR1)
	defer signal.Stop(guard)

	watched := make(chan struct{})
	go func() {
		defer close(watched)
		c.Watch(context.Background(), syscall.SIGUSR1)
	}()

	require.Eventually(t, func() bool {
		_ = syscall.Kill(syscall.Getpid(), syscall.SIGUSR1)
		select {
		case <-c.Done():
			return true
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)

	select {
	case <-watched:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after shutdown")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatchContextCancelled(t *testing.T) {
	cancel, stopped := fakeLoop(0)
	c := New(cancel, stopped, time.Second)

	ctx, stop := context.WithCancel(context.Background())
	stop()

	c.Watch(ctx, syscall.SIGUSR1)

	select {
	case <-c.Done():
		t.Fatal("shutdown ran without a signal")
	default:
	}
}

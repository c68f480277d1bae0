// Package resource bounds the cold-store access cost of the lookup
// layer: concurrent chunk fetches are limited by a weighted semaphore
// and fetched bytes by a token-bucket rate limiter.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits for cold-store access.
type Config struct {
	// MaxConcurrentFetches is the maximum number of chunk fetches in
	// flight against the cold store. If 0, defaults to 16.
	MaxConcurrentFetches int64

	// FetchBytesPerSec is the maximum cold-store read throughput.
	// If 0, unlimited.
	FetchBytesPerSec int64
}

// Controller manages cold-store access resources. A nil *Controller is
// valid and enforces no limits.
type Controller struct {
	fetchSem  *semaphore.Weighted
	ioLimiter *rate.Limiter

	inFlight     atomic.Int64
	bytesFetched atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = 16
	}

	c := &Controller{
		fetchSem: semaphore.NewWeighted(cfg.MaxConcurrentFetches),
	}
	if cfg.FetchBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.FetchBytesPerSec), int(cfg.FetchBytesPerSec))
	}
	return c
}

// AcquireFetch reserves a cold-store fetch slot, blocking until one is
// available or ctx is canceled.
func (c *Controller) AcquireFetch(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.fetchSem.Acquire(ctx, 1); err != nil {
		return err
	}
	c.inFlight.Add(1)
	return nil
}

// ReleaseFetch returns a fetch slot.
func (c *Controller) ReleaseFetch() {
	if c == nil {
		return
	}
	c.inFlight.Add(-1)
	c.fetchSem.Release(1)
}

// WaitIO accounts bytes read from the cold store and blocks until the
// rate limiter admits them.
func (c *Controller) WaitIO(ctx context.Context, bytes int) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	c.bytesFetched.Add(int64(bytes))
	if c.ioLimiter == nil {
		return nil
	}
	// WaitN caps at burst; split oversized reads.
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := bytes
		if n > burst {
			n = burst
		}
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// InFlight returns the number of fetches currently holding a slot.
func (c *Controller) InFlight() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// BytesFetched returns the cumulative bytes accounted via WaitIO.
func (c *Controller) BytesFetched() int64 {
	if c == nil {
		return 0
	}
	return c.bytesFetched.Load()
}

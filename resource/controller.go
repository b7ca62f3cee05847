// Package resource bounds the background work of the filter core: how many
// cache rebuilds run concurrently and how fast they may scan rows.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits for background cache builds.
type Config struct {
	// MaxBackgroundBuilds is the maximum number of concurrent rebuilds.
	// If 0, defaults to 1.
	MaxBackgroundBuilds int64

	// ScanRowsPerSec throttles row scanning of background builds.
	// If 0, unlimited.
	ScanRowsPerSec int
}

// Controller manages build concurrency and scan throughput.
type Controller struct {
	cfg Config

	buildSem    *semaphore.Weighted
	buildActive atomic.Int64

	scanLimiter *rate.Limiter // nil if unlimited
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundBuilds <= 0 {
		cfg.MaxBackgroundBuilds = 1
	}

	c := &Controller{
		cfg:      cfg,
		buildSem: semaphore.NewWeighted(cfg.MaxBackgroundBuilds),
	}
	if cfg.ScanRowsPerSec > 0 {
		c.scanLimiter = rate.NewLimiter(rate.Limit(cfg.ScanRowsPerSec), cfg.ScanRowsPerSec)
	}
	return c
}

// AcquireBuild blocks until a build slot is free or ctx is done.
func (c *Controller) AcquireBuild(ctx context.Context) error {
	if err := c.buildSem.Acquire(ctx, 1); err != nil {
		return err
	}
	c.buildActive.Add(1)
	return nil
}

// TryAcquireBuild acquires a build slot without blocking.
func (c *Controller) TryAcquireBuild() bool {
	if !c.buildSem.TryAcquire(1) {
		return false
	}
	c.buildActive.Add(1)
	return true
}

// ReleaseBuild returns a build slot.
func (c *Controller) ReleaseBuild() {
	c.buildActive.Add(-1)
	c.buildSem.Release(1)
}

// ActiveBuilds returns the number of builds currently holding a slot.
func (c *Controller) ActiveBuilds() int64 {
	return c.buildActive.Load()
}

// WaitScan reserves throughput for scanning n rows, blocking as needed.
// Requests larger than the limiter burst are satisfied in chunks.
func (c *Controller) WaitScan(ctx context.Context, n int) error {
	if c.scanLimiter == nil || n <= 0 {
		return nil
	}
	burst := c.scanLimiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := c.scanLimiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

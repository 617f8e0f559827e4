// Package resource enforces process-wide limits shared by all datasets:
// concurrent training jobs, managed memory for index builds, and embedding
// throughput.
package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryBudget is returned when a single reservation exceeds the
// configured memory limit and could never be satisfied by waiting.
var ErrMemoryBudget = errors.New("requested memory exceeds the configured limit")

// Config holds resource limits.
type Config struct {
	// MaxTrainingJobs is the maximum number of training jobs running
	// concurrently across all datasets. If 0, defaults to 1.
	MaxTrainingJobs int64

	// MemoryLimitBytes is the hard limit for managed memory (index builds).
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// EmbedRateLimit is the maximum number of records embedded per second
	// across all datasets. If 0, unlimited.
	EmbedRateLimit float64
}

// Controller manages process-wide resources. A nil Controller enforces
// nothing, so callers never need to guard their calls.
type Controller struct {
	cfg Config

	trainSem *semaphore.Weighted

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	embedLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxTrainingJobs <= 0 {
		cfg.MaxTrainingJobs = 1
	}

	c := &Controller{
		cfg:      cfg,
		trainSem: semaphore.NewWeighted(cfg.MaxTrainingJobs),
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.EmbedRateLimit > 0 {
		burst := int(cfg.EmbedRateLimit)
		if burst < 1 {
			burst = 1
		}
		c.embedLimiter = rate.NewLimiter(rate.Limit(cfg.EmbedRateLimit), burst)
	}

	return c
}

// AcquireTrainingSlot blocks until a training worker slot is available or ctx
// is canceled.
func (c *Controller) AcquireTrainingSlot(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.trainSem.Acquire(ctx, 1)
}

// ReleaseTrainingSlot releases a previously acquired training slot.
func (c *Controller) ReleaseTrainingSlot() {
	if c == nil {
		return
	}
	c.trainSem.Release(1)
}

// AcquireMemory attempts to reserve memory for an index build.
// If a hard limit is configured and usage would exceed it, this blocks until
// memory is available or ctx is canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if bytes > c.cfg.MemoryLimitBytes {
			return ErrMemoryBudget
		}
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the currently reserved memory in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// WaitEmbed blocks until the embedding rate limiter admits n records, or ctx
// is canceled.
func (c *Controller) WaitEmbed(ctx context.Context, n int) error {
	if c == nil || c.embedLimiter == nil || n <= 0 {
		return nil
	}

	burst := c.embedLimiter.Burst()
	for n > 0 {
		chunk := min(n, burst)
		if err := c.embedLimiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

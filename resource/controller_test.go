package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilControllerIsNoop(t *testing.T) {
	var c *Controller

	require.NoError(t, c.AcquireTrainingSlot(context.Background()))
	c.ReleaseTrainingSlot()
	require.NoError(t, c.AcquireMemory(context.Background(), 1<<30))
	c.ReleaseMemory(1 << 30)
	require.NoError(t, c.WaitEmbed(context.Background(), 1000))
	assert.Zero(t, c.MemoryUsage())
}

func TestTrainingSlotLimit(t *testing.T) {
	c := NewController(Config{MaxTrainingJobs: 1})

	require.NoError(t, c.AcquireTrainingSlot(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.AcquireTrainingSlot(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	c.ReleaseTrainingSlot()
	require.NoError(t, c.AcquireTrainingSlot(context.Background()))
	c.ReleaseTrainingSlot()
}

func TestMemoryTracking(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(context.Background(), 60))
	assert.Equal(t, int64(60), c.MemoryUsage())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.AcquireMemory(ctx, 60)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	c.ReleaseMemory(60)
	assert.Zero(t, c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(context.Background(), 100))
	c.ReleaseMemory(100)
}

func TestMemoryTrackingWithoutLimit(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(context.Background(), 1<<40))
	assert.Equal(t, int64(1<<40), c.MemoryUsage())
	c.ReleaseMemory(1 << 40)
	assert.Zero(t, c.MemoryUsage())
}

func TestWaitEmbedSplitsLargeRequests(t *testing.T) {
	c := NewController(Config{EmbedRateLimit: 1000})

	// Larger than burst; must not error, just split into chunks.
	require.NoError(t, c.WaitEmbed(context.Background(), 1100))
}

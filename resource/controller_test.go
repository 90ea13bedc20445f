package resource

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.AcquireMemory(context.Background(), 50))
	require.NoError(t, c.AcquireMemory(context.Background(), 40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	assert.False(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(90), c.MemoryUsage())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireMemory(ctx, 20), context.DeadlineExceeded)

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	require.NoError(t, c.AcquireMemory(context.Background(), 20))
	assert.Equal(t, int64(60), c.MemoryUsage())
}

func TestController_MemoryRequestOverLimit(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 10})

	err := c.AcquireMemory(context.Background(), 11)
	require.ErrorIs(t, err, ErrLimitExceeded)

	var le *LimitError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, int64(11), le.Requested)
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.AcquireMemory(context.Background(), 1000))
	assert.Equal(t, int64(1000), c.MemoryUsage())

	c.ReleaseMemory(500)
	assert.Equal(t, int64(500), c.MemoryUsage())
}

func TestController_Requests(t *testing.T) {
	c := NewController(Config{MaxConcurrentRequests: 2})

	require.NoError(t, c.AcquireRequest(context.Background()))
	require.NoError(t, c.AcquireRequest(context.Background()))
	assert.Equal(t, int64(2), c.InFlight())

	assert.False(t, c.TryAcquireRequest())

	c.ReleaseRequest()
	assert.True(t, c.TryAcquireRequest())
	assert.Equal(t, int64(2), c.InFlight())
}

func TestController_DefaultRequests(t *testing.T) {
	c := NewController(Config{})
	assert.Equal(t, int64(16), c.Config().MaxConcurrentRequests)
}

func TestController_IO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	// Larger than the burst: admitted in steps instead of failing.
	require.NoError(t, c.AcquireIO(context.Background(), 1<<20+10))
	assert.Equal(t, int64(1<<20+10), c.IOBytes())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, c.AcquireIO(ctx, 1<<20))
}

func TestController_Nil(t *testing.T) {
	var c *Controller

	require.NoError(t, c.AcquireMemory(context.Background(), 1))
	assert.True(t, c.TryAcquireMemory(1))
	c.ReleaseMemory(1)
	require.NoError(t, c.AcquireRequest(context.Background()))
	assert.True(t, c.TryAcquireRequest())
	c.ReleaseRequest()
	require.NoError(t, c.AcquireIO(context.Background(), 1))
	assert.Zero(t, c.MemoryUsage())
	assert.Zero(t, c.InFlight())
	assert.Zero(t, c.IOBytes())
	assert.Equal(t, Config{}, c.Config())
}

type readerAtFunc func(p []byte, off int64) (int, error)

func (f readerAtFunc) ReadAt(p []byte, off int64) (int, error) { return f(p, off) }

func TestRateLimitedIO(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	var out bytes.Buffer
	w := NewRateLimitedWriter(context.Background(), &out, c)
	n, err := w.Write([]byte("rows"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "rows", out.String())

	src := []byte("0123456789")
	r := NewRateLimitedReaderAt(context.Background(), readerAtFunc(func(p []byte, off int64) (int, error) {
		return copy(p, src[off:]), nil
	}), c)
	buf := make([]byte, 3)
	n, err = r.ReadAt(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "234", string(buf))

	assert.Equal(t, int64(7), c.IOBytes())
}

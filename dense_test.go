package embedstore

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/embedstore/buffer"
	"github.com/hupe1980/embedstore/cache"
	"github.com/hupe1980/embedstore/resource"
	"github.com/hupe1980/embedstore/storage"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Write(ctx context.Context, keys []uint64, values []byte) error {
	args := m.Called(ctx, keys, values)
	return args.Error(0)
}

func (m *mockBackend) Read(ctx context.Context, keys []uint64, values []byte) error {
	args := m.Called(ctx, keys, values)
	return args.Error(0)
}

func (m *mockBackend) Close() error { return nil }

func newHeap(t *testing.T, size int) buffer.Buffer {
	t.Helper()
	buf, err := buffer.NewHeap(size)
	require.NoError(t, err)
	return buf
}

func newStore(t *testing.T, capacity, dim int, backend storage.Backend, optFns ...Option) *DenseStore[int64, float32] {
	t.Helper()
	cfg := Config{EmbeddingKey: 1, Dim: dim, Capacity: capacity}
	s := NewDenseStore[int64, float32](cfg, cache.NewLRU[int64, int](capacity), backend, optFns...)
	require.NoError(t, s.Initialize(newHeap(t, capacity*dim*4)))
	t.Cleanup(func() { _ = s.Finalize() })
	return s
}

func rowOf(dim int, v float32) []float32 {
	out := make([]float32, dim)
	for i := range out {
		out[i] = v + float32(i)/10
	}
	return out
}

func rowsOf(dim int, vs ...float32) []float32 {
	var out []float32
	for _, v := range vs {
		out = append(out, rowOf(dim, v)...)
	}
	return out
}

func TestInitialize_Validation(t *testing.T) {
	valid := Config{Dim: 2, Capacity: 4}

	tests := []struct {
		name  string
		cfg   Config
		cache cache.Cache[int64, int]
		back  storage.Backend
		buf   func(t *testing.T) buffer.Buffer
		field string
	}{
		{"zero capacity", Config{Dim: 2}, cache.NewLRU[int64, int](0), storage.NewMemory(8), nil, "capacity"},
		{"negative dim", Config{Dim: -1, Capacity: 4}, cache.NewLRU[int64, int](4), storage.NewMemory(8), nil, "dim"},
		{"dtype mismatch", Config{Dim: 2, Capacity: 4, DType: DTypeFloat64}, cache.NewLRU[int64, int](4), storage.NewMemory(8), nil, "dtype"},
		{"nil cache", valid, nil, storage.NewMemory(8), nil, "cache"},
		{"nil backend", valid, cache.NewLRU[int64, int](4), nil, nil, "backend"},
		{"cache capacity", valid, cache.NewLRU[int64, int](3), storage.NewMemory(8), nil, "cache capacity"},
		{"nil buffer", valid, cache.NewLRU[int64, int](4), storage.NewMemory(8), func(*testing.T) buffer.Buffer { return nil }, "buffer"},
		{"buffer size", valid, cache.NewLRU[int64, int](4), storage.NewMemory(8), func(t *testing.T) buffer.Buffer { return newHeap(t, 31) }, "buffer size"},
		{"misaligned", valid, cache.NewLRU[int64, int](4), storage.NewMemory(8), func(t *testing.T) buffer.Buffer {
			return buffer.Slice(newHeap(t, 33).Bytes()[1:])
		}, "buffer alignment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := newHeap(t, 32)
			if tt.buf != nil {
				buf = tt.buf(t)
			}
			s := NewDenseStore[int64, float32](tt.cfg, tt.cache, tt.back)
			err := s.Initialize(buf)
			require.ErrorIs(t, err, ErrConfiguration)

			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestInitialize_NonEmptyCache(t *testing.T) {
	c := cache.NewLRU[int64, int](4)
	c.Put(1, 0)

	s := NewDenseStore[int64, float32](Config{Dim: 2, Capacity: 4}, c, storage.NewMemory(8))
	assert.ErrorIs(t, s.Initialize(newHeap(t, 32)), ErrConfiguration)
}

func TestInitialize_Twice(t *testing.T) {
	s := newStore(t, 4, 2, storage.NewMemory(8))
	assert.ErrorIs(t, s.Initialize(newHeap(t, 32)), ErrAlreadyInitialized)
}

func TestNotInitialized(t *testing.T) {
	ctx := context.Background()
	s := NewDenseStore[int64, float32](Config{Dim: 2, Capacity: 4}, cache.NewLRU[int64, int](4), storage.NewMemory(8))

	assert.ErrorIs(t, s.Get(ctx, []int64{1}, make([]float32, 2)), ErrNotInitialized)
	assert.ErrorIs(t, s.Put(ctx, []int64{1}, make([]float32, 2)), ErrNotInitialized)
	assert.ErrorIs(t, s.Flush(ctx), ErrNotInitialized)
	assert.ErrorIs(t, s.CheckInvariants(), ErrNotInitialized)
	assert.Zero(t, s.Stats().Occupied)
}

func TestBatchShape(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 4, 2, storage.NewMemory(8))

	assert.ErrorIs(t, s.Put(ctx, []int64{1, 2}, make([]float32, 3)), ErrInvalidArgument)
	assert.ErrorIs(t, s.Get(ctx, []int64{1}, make([]float32, 4)), ErrInvalidArgument)
	assert.Zero(t, s.Stats().Occupied)
}

func TestBatchMissHandling(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory(2 * 4)
	s := newStore(t, 4, 2, backend)

	require.NoError(t, s.Put(ctx, []int64{1, 2, 3, 4}, rowsOf(2, 1, 2, 3, 4)))
	st := s.Stats()
	assert.Equal(t, 4, st.Occupied)
	assert.Zero(t, st.Free)
	assert.Zero(t, st.Evictions)

	require.NoError(t, s.Put(ctx, []int64{5}, rowsOf(2, 5)))
	st = s.Stats()
	assert.Equal(t, int64(1), st.Evictions)
	assert.Equal(t, 4, st.Occupied)
	require.NoError(t, s.CheckInvariants())

	// Key 1 was least recently used; its last value is in the backend.
	raw := make([]byte, 8)
	require.NoError(t, backend.Read(ctx, []uint64{1}, raw))
	assert.Equal(t, rowOf(2, 1), asElems[float32](raw))

	n, err := backend.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 2, 3, storage.NewMemory(12))

	for k := range int64(10) {
		require.NoError(t, s.Put(ctx, []int64{k}, rowOf(3, float32(k))))

		out := make([]float32, 3)
		require.NoError(t, s.Get(ctx, []int64{k}, out))
		assert.Equal(t, rowOf(3, float32(k)), out)
	}
}

func TestEvictionDurability(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 2, 2, storage.NewMemory(8))

	require.NoError(t, s.Put(ctx, []int64{1}, rowOf(2, 1)))
	require.NoError(t, s.Put(ctx, []int64{1}, rowOf(2, 11)))
	require.NoError(t, s.Put(ctx, []int64{2, 3}, rowsOf(2, 2, 3)))

	out := make([]float32, 2)
	require.NoError(t, s.Get(ctx, []int64{1}, out))
	assert.Equal(t, rowOf(2, 11), out)
	assert.Equal(t, int64(1), s.Stats().BackendReads)
	require.NoError(t, s.CheckInvariants())
}

func TestRandomOperations(t *testing.T) {
	policies := map[string]func(int) cache.Cache[int64, int]{
		"lru":    func(n int) cache.Cache[int64, int] { return cache.NewLRU[int64, int](n) },
		"lfu":    func(n int) cache.Cache[int64, int] { return cache.NewLFU[int64, int](n) },
		"fifo":   func(n int) cache.Cache[int64, int] { return cache.NewFIFO[int64, int](n) },
		"random": func(n int) cache.Cache[int64, int] { return cache.NewRandom[int64, int](n, 7) },
	}

	for name, newCache := range policies {
		t.Run(name, func(t *testing.T) {
			const capacity, dim = 8, 4
			ctx := context.Background()
			rng := rand.New(rand.NewPCG(1, 2))

			s := NewDenseStore[int64, float32](Config{Dim: dim, Capacity: capacity}, newCache(capacity), storage.NewMemory(dim*4))
			require.NoError(t, s.Initialize(newHeap(t, capacity*dim*4)))

			model := map[int64][]float32{}
			for range 500 {
				n := 1 + rng.IntN(capacity)
				keys := make([]int64, n)
				for i := range keys {
					keys[i] = rng.Int64N(24)
				}

				if rng.IntN(2) == 0 {
					values := make([]float32, n*dim)
					for i := range values {
						values[i] = rng.Float32()
					}
					distinct := map[int64]bool{}
					for _, k := range keys {
						distinct[k] = true
					}
					err := s.Put(ctx, keys, values)
					if len(distinct) > capacity {
						require.ErrorIs(t, err, ErrOutOfCacheSpace)
					} else {
						require.NoError(t, err)
						for i, k := range keys {
							model[k] = values[i*dim : (i+1)*dim]
						}
					}
				} else {
					known := keys[:0]
					for _, k := range keys {
						if _, ok := model[k]; ok {
							known = append(known, k)
						}
					}
					out := make([]float32, len(known)*dim)
					require.NoError(t, s.Get(ctx, known, out))
					for i, k := range known {
						assert.Equal(t, model[k], out[i*dim:(i+1)*dim], "key %d", k)
					}
				}

				st := s.Stats()
				require.Equal(t, capacity, st.Occupied+st.Free)
				require.NoError(t, s.CheckInvariants())
			}
		})
	}
}

func TestDuplicateKeys(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory(8)
	s := newStore(t, 2, 2, backend)

	t.Run("put miss last wins", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, []int64{7, 7, 7}, rowsOf(2, 1, 2, 3)))
		out := make([]float32, 2)
		require.NoError(t, s.Get(ctx, []int64{7}, out))
		assert.Equal(t, rowOf(2, 3), out)
		assert.Equal(t, 1, s.Stats().Occupied)
	})

	t.Run("put hit last wins", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, []int64{7, 7}, rowsOf(2, 4, 5)))
		out := make([]float32, 2)
		require.NoError(t, s.Get(ctx, []int64{7}, out))
		assert.Equal(t, rowOf(2, 5), out)
	})

	t.Run("get miss reads once", func(t *testing.T) {
		require.NoError(t, s.Put(ctx, []int64{8, 9}, rowsOf(2, 8, 9)))
		reads := s.Stats().BackendReads

		out := make([]float32, 6)
		require.NoError(t, s.Get(ctx, []int64{7, 7, 7}, out))
		assert.Equal(t, rowsOf(2, 5, 5, 5), out)
		assert.Equal(t, reads+1, s.Stats().BackendReads)
		require.NoError(t, s.CheckInvariants())
	})
}

func TestZeroLengthBatch(t *testing.T) {
	ctx := context.Background()
	metrics := &BasicMetricsCollector{}
	s := newStore(t, 2, 2, storage.NewMemory(8), WithMetricsCollector(metrics))

	before := s.Stats()
	require.NoError(t, s.Get(ctx, nil, nil))
	require.NoError(t, s.Put(ctx, []int64{}, []float32{}))
	assert.Equal(t, before, s.Stats())

	ms := metrics.GetStats()
	assert.Equal(t, int64(1), ms.GetCount)
	assert.Equal(t, int64(1), ms.PutCount)
	assert.Zero(t, ms.GetKeys)
}

func TestFinalize_Idempotent(t *testing.T) {
	ctx := context.Background()
	c := cache.NewLRU[int64, int](2)
	s := NewDenseStore[int64, float32](Config{Dim: 2, Capacity: 2}, c, storage.NewMemory(8))

	require.NoError(t, s.Finalize())

	require.NoError(t, s.Initialize(newHeap(t, 16)))
	require.NoError(t, s.Put(ctx, []int64{1, 2}, rowsOf(2, 1, 2)))
	require.NoError(t, s.Finalize())
	require.NoError(t, s.Finalize())
	assert.Zero(t, c.Len())

	require.NoError(t, s.Initialize(newHeap(t, 16)))
	st := s.Stats()
	assert.Zero(t, st.Occupied)
	assert.Equal(t, 2, st.Free)
	require.NoError(t, s.CheckInvariants())
	require.NoError(t, s.Put(ctx, []int64{3}, rowsOf(2, 3)))
}

func TestFinalize_WritesBackResidentRows(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory(8)
	s := NewDenseStore[int64, float32](Config{Dim: 2, Capacity: 4}, cache.NewLRU[int64, int](4), backend)

	require.NoError(t, s.Initialize(newHeap(t, 32)))
	require.NoError(t, s.Put(ctx, []int64{7, 8}, rowsOf(2, 7, 8)))
	require.NoError(t, s.Finalize())

	n, err := backend.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A fresh buffer proves the rows come back from the backend.
	require.NoError(t, s.Initialize(newHeap(t, 32)))
	out := make([]float32, 4)
	require.NoError(t, s.Get(ctx, []int64{7, 8}, out))
	assert.Equal(t, rowsOf(2, 7, 8), out)
	assert.Equal(t, int64(2), s.Stats().BackendReads)
	require.NoError(t, s.Finalize())
}

func TestFinalize_WriteBackFailureKeepsStore(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	backend := &mockBackend{}
	backend.On("Write", mock.Anything, []uint64{1}, mock.Anything).Return(boom).Once()
	backend.On("Write", mock.Anything, []uint64{1}, mock.Anything).Return(nil).Once()

	c := cache.NewLRU[int64, int](2)
	s := NewDenseStore[int64, float32](Config{Dim: 2, Capacity: 2}, c, backend)
	require.NoError(t, s.Initialize(newHeap(t, 16)))
	require.NoError(t, s.Put(ctx, []int64{1}, rowsOf(2, 1)))

	err := s.Finalize()
	require.ErrorIs(t, err, ErrBackend)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, c.Len())
	require.NoError(t, s.CheckInvariants())

	out := make([]float32, 2)
	require.NoError(t, s.Get(ctx, []int64{1}, out))
	assert.Equal(t, rowOf(2, 1), out)

	require.NoError(t, s.Finalize())
	assert.Zero(t, c.Len())
	backend.AssertExpectations(t)
}

func TestRelease_ReportsDoubleFree(t *testing.T) {
	s := newStore(t, 2, 2, storage.NewMemory(8))

	got, ok := s.slots.take(1)
	require.True(t, ok)
	require.NoError(t, s.release(got))

	err := s.release(got)
	require.ErrorIs(t, err, ErrInvariant)
	assert.Contains(t, err.Error(), "freed twice")
	assert.Equal(t, 2, s.slots.len())
	require.NoError(t, s.CheckInvariants())
}

func TestWriteBackFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")
	backend := &mockBackend{}
	backend.On("Write", mock.Anything, mock.Anything, mock.Anything).Return(boom)

	s := newStore(t, 2, 2, backend)
	require.NoError(t, s.Put(ctx, []int64{1, 2}, rowsOf(2, 1, 2)))

	err := s.Put(ctx, []int64{3}, rowsOf(2, 3))
	require.ErrorIs(t, err, ErrBackend)
	require.ErrorIs(t, err, boom)

	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "write", be.Op)
	assert.Equal(t, 1, be.Keys)

	st := s.Stats()
	assert.Equal(t, 2, st.Occupied)
	assert.Zero(t, st.Free)
	assert.Zero(t, st.Evictions)
	require.NoError(t, s.CheckInvariants())

	out := make([]float32, 4)
	require.NoError(t, s.Get(ctx, []int64{1, 2}, out))
	assert.Equal(t, rowsOf(2, 1, 2), out)
	backend.AssertNotCalled(t, "Read", mock.Anything, mock.Anything, mock.Anything)
}

func TestReadFailureKeepsInvariants(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("timeout")
	backend := &mockBackend{}
	backend.On("Write", mock.Anything, []uint64{1}, mock.Anything).Return(nil).Once()
	backend.On("Read", mock.Anything, []uint64{3}, mock.Anything).Return(boom).Once()
	backend.On("Write", mock.Anything, []uint64{2}, mock.Anything).Return(nil).Once()

	s := newStore(t, 2, 2, backend)
	require.NoError(t, s.Put(ctx, []int64{1, 2}, rowsOf(2, 1, 2)))

	err := s.Get(ctx, []int64{2, 3}, make([]float32, 4))
	require.ErrorIs(t, err, boom)

	st := s.Stats()
	assert.Equal(t, 1, st.Occupied)
	assert.Equal(t, 1, st.Free)
	require.NoError(t, s.CheckInvariants())

	require.NoError(t, s.Finalize())
	backend.AssertExpectations(t)
}

func TestOutOfCacheSpace(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, 2, 2, storage.NewMemory(8))

	err := s.Put(ctx, []int64{1, 2, 3}, rowsOf(2, 1, 2, 3))
	var se *SpaceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 3, se.Need)
	assert.Zero(t, s.Stats().Occupied)
}

// stingyCache refuses to evict anything.
type stingyCache struct {
	cache.Cache[int64, int]
}

func (stingyCache) TryEvict(_ int, evicted []cache.Entry[int64, int]) ([]cache.Entry[int64, int], bool) {
	return evicted, false
}

func TestOutOfCacheSpace_PolicyUnderDelivers(t *testing.T) {
	ctx := context.Background()
	s := NewDenseStore[int64, float32](Config{Dim: 2, Capacity: 2}, stingyCache{cache.NewLRU[int64, int](2)}, storage.NewMemory(8))
	require.NoError(t, s.Initialize(newHeap(t, 16)))

	require.NoError(t, s.Put(ctx, []int64{1, 2}, rowsOf(2, 1, 2)))
	err := s.Put(ctx, []int64{3}, rowsOf(2, 3))
	require.ErrorIs(t, err, ErrOutOfCacheSpace)
	require.NoError(t, s.CheckInvariants())
}

func TestCanceledContext(t *testing.T) {
	s := newStore(t, 1, 2, storage.NewMemory(8))
	require.NoError(t, s.Put(context.Background(), []int64{1}, rowsOf(2, 1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Hits need no eviction and succeed.
	require.NoError(t, s.Get(ctx, []int64{1}, make([]float32, 2)))
	assert.ErrorIs(t, s.Put(ctx, []int64{2}, rowsOf(2, 2)), context.Canceled)
	assert.Equal(t, 1, s.Stats().Occupied)
}

func TestFlush(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory(8)
	metrics := &BasicMetricsCollector{}

	s := NewDenseStore[int64, float32](Config{Dim: 2, Capacity: 5, FlushBatchSize: 2}, cache.NewLRU[int64, int](5), backend, WithMetricsCollector(metrics))
	require.NoError(t, s.Initialize(newHeap(t, 40)))
	require.NoError(t, s.Put(ctx, []int64{1, 2, 3, 4, 5}, rowsOf(2, 1, 2, 3, 4, 5)))
	require.NoError(t, s.Flush(ctx))

	n, err := backend.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 5, s.Stats().Occupied)
	assert.Equal(t, int64(5), s.Stats().BackendWrites)
	assert.Equal(t, int64(5), metrics.GetStats().FlushedRows)

	raw := make([]byte, 8)
	require.NoError(t, backend.Read(ctx, []uint64{4}, raw))
	assert.Equal(t, rowOf(2, 4), asElems[float32](raw))
}

func TestNegativeKeys(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory(4)
	s := NewDenseStore[int32, int32](Config{Dim: 1, Capacity: 1}, cache.NewLRU[int32, int](1), backend)
	require.NoError(t, s.Initialize(newHeap(t, 4)))

	require.NoError(t, s.Put(ctx, []int32{-1}, []int32{42}))
	require.NoError(t, s.Put(ctx, []int32{-2}, []int32{43}))

	raw := make([]byte, 4)
	require.NoError(t, backend.Read(ctx, []uint64{^uint64(0)}, raw))

	out := make([]int32, 1)
	require.NoError(t, s.Get(ctx, []int32{-1}, out))
	assert.Equal(t, []int32{42}, out)
}

func TestElementTypes(t *testing.T) {
	ctx := context.Background()

	t.Run("float16", func(t *testing.T) {
		s := NewDenseStore[uint32, uint16](Config{Dim: 2, Capacity: 1, DType: DTypeFloat16}, cache.NewLRU[uint32, int](1), storage.NewMemory(4))
		require.NoError(t, s.Initialize(newHeap(t, 4)))
		require.NoError(t, s.Put(ctx, []uint32{1}, []uint16{0x3c00, 0x4000}))
		require.NoError(t, s.Put(ctx, []uint32{2}, []uint16{0, 0}))

		out := make([]uint16, 2)
		require.NoError(t, s.Get(ctx, []uint32{1}, out))
		assert.Equal(t, []uint16{0x3c00, 0x4000}, out)
	})

	t.Run("bool", func(t *testing.T) {
		s := NewDenseStore[uint64, bool](Config{Dim: 3, Capacity: 1, DType: DTypeBool}, cache.NewFIFO[uint64, int](1), storage.NewMemory(3))
		require.NoError(t, s.Initialize(newHeap(t, 3)))
		require.NoError(t, s.Put(ctx, []uint64{1}, []bool{true, false, true}))
		require.NoError(t, s.Put(ctx, []uint64{2}, []bool{false, false, false}))

		out := make([]bool, 3)
		require.NoError(t, s.Get(ctx, []uint64{1}, out))
		assert.Equal(t, []bool{true, false, true}, out)
	})

	t.Run("float64", func(t *testing.T) {
		s := NewDenseStore[int64, float64](Config{Dim: 2, Capacity: 1}, cache.NewLRU[int64, int](1), storage.NewMemory(16))
		require.NoError(t, s.Initialize(newHeap(t, 16)))
		require.NoError(t, s.Put(ctx, []int64{1}, []float64{1.5, -2.5}))
		require.NoError(t, s.Put(ctx, []int64{2}, []float64{0, 0}))

		out := make([]float64, 2)
		require.NoError(t, s.Get(ctx, []int64{1}, out))
		assert.Equal(t, []float64{1.5, -2.5}, out)
	})
}

func TestResourceController_MemoryLimit(t *testing.T) {
	ctx := context.Background()
	rc := resource.NewController(resource.Config{MemoryLimitBytes: 8})
	s := newStore(t, 2, 2, storage.NewMemory(8), WithResourceController(rc))

	require.NoError(t, s.Put(ctx, []int64{1, 2}, rowsOf(2, 1, 2)))
	require.NoError(t, s.Put(ctx, []int64{3}, rowsOf(2, 3)))

	// Two evictions need a 16 byte scratch buffer.
	err := s.Put(ctx, []int64{4, 5}, rowsOf(2, 4, 5))
	require.ErrorIs(t, err, resource.ErrLimitExceeded)
	assert.Zero(t, rc.MemoryUsage())
	require.NoError(t, s.CheckInvariants())
	assert.Equal(t, 2, s.Stats().Occupied)
}

func TestMappedBuffer(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/rows.bin"

	buf, err := buffer.Map(path, 4*2*4)
	if errors.Is(err, buffer.ErrUnsupported) {
		t.Skip("mmap not supported")
	}
	require.NoError(t, err)
	defer buf.Close()

	s := NewDenseStore[int64, float32](Config{Dim: 2, Capacity: 4}, cache.NewLRU[int64, int](4), storage.NewMemory(8))
	require.NoError(t, s.Initialize(buf))
	require.NoError(t, s.Put(ctx, []int64{9}, rowsOf(2, 9)))

	// Slot 0 is handed out first.
	assert.Equal(t, rowOf(2, 9), asElems[float32](buf.Bytes()[:8]))
	require.NoError(t, s.Finalize())
}

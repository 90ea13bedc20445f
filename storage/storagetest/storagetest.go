// Package storagetest provides a conformance suite for storage.Backend
// implementations.
package storagetest

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/embedstore/storage"
)

// Factory returns a fresh, empty backend for rows of rowSize bytes.
// The suite closes it.
type Factory func(t *testing.T, rowSize int) storage.Backend

// RowSize is the row width used by the suite.
const RowSize = 16

// Rows builds a batch where every byte of row i equals seed+i.
func Rows(n int, seed byte) []byte {
	out := make([]byte, 0, n*RowSize)
	for i := range n {
		out = append(out, bytes.Repeat([]byte{seed + byte(i)}, RowSize)...)
	}
	return out
}

// Run exercises the Backend contract and any optional interfaces the
// backend implements.
func Run(t *testing.T, newBackend Factory) {
	t.Helper()

	open := func(t *testing.T) storage.Backend {
		b := newBackend(t, RowSize)
		t.Cleanup(func() { _ = b.Close() })
		return b
	}

	t.Run("RoundTrip", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()

		require.NoError(t, b.Write(ctx, []uint64{1, 2, 3}, Rows(3, 10)))

		out := make([]byte, 3*RowSize)
		require.NoError(t, b.Read(ctx, []uint64{3, 1, 2}, out))
		assert.Equal(t, Rows(1, 12), out[:RowSize])
		assert.Equal(t, Rows(1, 10), out[RowSize:2*RowSize])
		assert.Equal(t, Rows(1, 11), out[2*RowSize:])
	})

	t.Run("Overwrite", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()

		require.NoError(t, b.Write(ctx, []uint64{5}, Rows(1, 1)))
		require.NoError(t, b.Write(ctx, []uint64{5}, Rows(1, 2)))

		out := make([]byte, RowSize)
		require.NoError(t, b.Read(ctx, []uint64{5}, out))
		assert.Equal(t, Rows(1, 2), out)
	})

	t.Run("DuplicateKeysLastWins", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()

		require.NoError(t, b.Write(ctx, []uint64{4, 6, 4}, Rows(3, 20)))

		out := make([]byte, 2*RowSize)
		require.NoError(t, b.Read(ctx, []uint64{4, 6}, out))
		assert.Equal(t, Rows(1, 22), out[:RowSize])
		assert.Equal(t, Rows(1, 21), out[RowSize:])

		if counter, ok := b.(storage.Counter); ok {
			n, err := counter.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()

		require.NoError(t, b.Write(ctx, []uint64{1}, Rows(1, 1)))
		err := b.Read(ctx, []uint64{1, 404}, make([]byte, 2*RowSize))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("BatchShape", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()

		assert.ErrorIs(t, b.Write(ctx, []uint64{1}, make([]byte, RowSize-1)), storage.ErrBatchShape)
		assert.ErrorIs(t, b.Read(ctx, []uint64{1, 2}, make([]byte, RowSize)), storage.ErrBatchShape)
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()

		require.NoError(t, b.Write(ctx, nil, nil))
		require.NoError(t, b.Read(ctx, nil, nil))
	})

	t.Run("WideKeys", func(t *testing.T) {
		b := open(t)
		ctx := context.Background()

		require.NoError(t, b.Write(ctx, []uint64{math.MaxUint64, 1 << 63}, Rows(2, 50)))
		require.NoError(t, b.Write(ctx, []uint64{0, 1 << 63}, Rows(2, 60)))

		out := make([]byte, 2*RowSize)
		require.NoError(t, b.Read(ctx, []uint64{math.MaxUint64, 1 << 63}, out))
		assert.Equal(t, Rows(1, 50), out[:RowSize])
		assert.Equal(t, Rows(1, 61), out[RowSize:])
	})

	t.Run("Delete", func(t *testing.T) {
		b := open(t)
		d, ok := b.(storage.Deleter)
		if !ok {
			t.Skip("backend does not implement storage.Deleter")
		}
		ctx := context.Background()

		require.NoError(t, b.Write(ctx, []uint64{1, 2}, Rows(2, 1)))
		require.NoError(t, d.Delete(ctx, []uint64{1, 99}))

		assert.ErrorIs(t, b.Read(ctx, []uint64{1}, make([]byte, RowSize)), storage.ErrNotFound)
		require.NoError(t, b.Read(ctx, []uint64{2}, make([]byte, RowSize)))
	})

	t.Run("Count", func(t *testing.T) {
		b := open(t)
		c, ok := b.(storage.Counter)
		if !ok {
			t.Skip("backend does not implement storage.Counter")
		}
		ctx := context.Background()

		n, err := c.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		require.NoError(t, b.Write(ctx, []uint64{1, 2, 3}, Rows(3, 1)))
		require.NoError(t, b.Write(ctx, []uint64{2}, Rows(1, 9)))

		n, err = c.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
	})

	t.Run("Keys", func(t *testing.T) {
		b := open(t)
		l, ok := b.(storage.Lister)
		if !ok {
			t.Skip("backend does not implement storage.Lister")
		}
		ctx := context.Background()

		keys, err := l.Keys(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)

		require.NoError(t, b.Write(ctx, []uint64{math.MaxUint64, 7, 1 << 40}, Rows(3, 1)))

		keys, err = l.Keys(ctx)
		require.NoError(t, err)
		assert.Equal(t, []uint64{7, 1 << 40, math.MaxUint64}, keys)
	})

	t.Run("Sync", func(t *testing.T) {
		b := open(t)
		s, ok := b.(storage.Syncer)
		if !ok {
			t.Skip("backend does not implement storage.Syncer")
		}
		ctx := context.Background()

		require.NoError(t, b.Write(ctx, []uint64{1}, Rows(1, 1)))
		require.NoError(t, s.Sync(ctx))
	})
}

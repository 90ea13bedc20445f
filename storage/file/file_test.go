package file

import (
	"context"
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/embedstore/compress"
	"github.com/hupe1980/embedstore/internal/fs"
	"github.com/hupe1980/embedstore/resource"
	"github.com/hupe1980/embedstore/storage"
	"github.com/hupe1980/embedstore/storage/storagetest"
)

func TestConformance(t *testing.T) {
	for _, kind := range []compress.Kind{compress.None, compress.LZ4, compress.ZSTD} {
		t.Run(kind.String(), func(t *testing.T) {
			storagetest.Run(t, func(t *testing.T, rowSize int) storage.Backend {
				b, err := Open(t.TempDir(), rowSize, WithCompression(kind))
				require.NoError(t, err)
				return b
			})
		})
	}
}

func TestReopenRebuildsIndex(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	const rowSize = storagetest.RowSize

	b, err := Open(dir, rowSize, WithEmbeddingKey(3), WithSyncOnWrite(true))
	require.NoError(t, err)
	require.NoError(t, b.Write(ctx, []uint64{1, 2, 3}, storagetest.Rows(3, 1)))
	require.NoError(t, b.Write(ctx, []uint64{2}, storagetest.Rows(1, 9)))
	require.NoError(t, b.Delete(ctx, []uint64{3}))
	require.NoError(t, b.Close())
	assert.Contains(t, b.Path(), "emb-3.rows")

	b, err = Open(dir, rowSize, WithEmbeddingKey(3))
	require.NoError(t, err)
	defer b.Close()

	n, err := b.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out := make([]byte, 2*rowSize)
	require.NoError(t, b.Read(ctx, []uint64{1, 2}, out))
	assert.Equal(t, storagetest.Rows(1, 1), out[:rowSize])
	assert.Equal(t, storagetest.Rows(1, 9), out[rowSize:])

	assert.ErrorIs(t, b.Read(ctx, []uint64{3}, make([]byte, rowSize)), storage.ErrNotFound)
	assert.Positive(t, b.Garbage())
}

func TestReopenRejectsCorruptRecordSize(t *testing.T) {
	ctx := context.Background()

	for _, kind := range []compress.Kind{compress.None, compress.LZ4} {
		t.Run(kind.String(), func(t *testing.T) {
			dir := t.TempDir()
			b, err := Open(dir, 4, WithCompression(kind))
			require.NoError(t, err)
			require.NoError(t, b.Write(ctx, []uint64{1, 2, 3}, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}))
			require.NoError(t, b.Close())

			raw, err := os.ReadFile(b.Path())
			require.NoError(t, err)
			before := len(raw)

			// The size field of the first record claims far more than a row.
			binary.LittleEndian.PutUint32(raw[8:], 1<<20)
			require.NoError(t, os.WriteFile(b.Path(), raw, 0o644))

			_, err = Open(dir, 4, WithCompression(kind))
			require.ErrorIs(t, err, storage.ErrCorrupt)

			info, err := os.Stat(b.Path())
			require.NoError(t, err)
			assert.Equal(t, int64(before), info.Size())
		})
	}
}

func TestReopenRejectsShiftedRecordSize(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := Open(dir, 8, WithCompression(compress.LZ4))
	require.NoError(t, err)
	require.NoError(t, b.Write(ctx, []uint64{1, 2, 3}, make([]byte, 24)))
	require.NoError(t, b.Close())

	raw, err := os.ReadFile(b.Path())
	require.NoError(t, err)
	before := len(raw)

	// A plausible but wrong size in the middle misaligns every later record.
	size := binary.LittleEndian.Uint32(raw[8:])
	binary.LittleEndian.PutUint32(raw[8:], size+1)
	require.NoError(t, os.WriteFile(b.Path(), raw, 0o644))

	_, err = Open(dir, 8, WithCompression(compress.LZ4))
	require.ErrorIs(t, err, storage.ErrCorrupt)

	info, err := os.Stat(b.Path())
	require.NoError(t, err)
	assert.Equal(t, int64(before), info.Size())
}

func TestTablesAreSeparate(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	a, err := Open(dir, 4, WithEmbeddingKey(1))
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(dir, 4, WithEmbeddingKey(2))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.Write(ctx, []uint64{1}, []byte{1, 1, 1, 1}))
	assert.ErrorIs(t, b.Read(ctx, []uint64{1}, make([]byte, 4)), storage.ErrNotFound)
}

func TestTornTailIsTruncated(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := Open(dir, 4)
	require.NoError(t, err)
	require.NoError(t, b.Write(ctx, []uint64{1}, []byte{1, 2, 3, 4}))
	require.NoError(t, b.Close())

	// Simulate a crash mid-append: half a record at the end.
	f, err := os.OpenFile(b.Path(), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write(appendRecord(nil, 2, []byte{5, 6, 7, 8})[:headerSize+2])
	require.NoError(t, err)
	require.NoError(t, f.Close())

	b, err = Open(dir, 4)
	require.NoError(t, err)
	defer b.Close()

	info, err := os.Stat(b.Path())
	require.NoError(t, err)
	assert.Equal(t, int64(headerSize+4), info.Size())

	out := make([]byte, 4)
	require.NoError(t, b.Read(ctx, []uint64{1}, out))
	assert.Equal(t, []byte{1, 2, 3, 4}, out)
	assert.ErrorIs(t, b.Read(ctx, []uint64{2}, out), storage.ErrNotFound)

	// Appends continue after the cut.
	require.NoError(t, b.Write(ctx, []uint64{2}, []byte{5, 6, 7, 8}))
	require.NoError(t, b.Read(ctx, []uint64{2}, out))
	assert.Equal(t, []byte{5, 6, 7, 8}, out)
}

func TestCorruptRecordFailsOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := Open(dir, 4)
	require.NoError(t, err)
	require.NoError(t, b.Write(ctx, []uint64{1, 2}, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	require.NoError(t, b.Close())

	raw, err := os.ReadFile(b.Path())
	require.NoError(t, err)
	raw[headerSize] ^= 0xFF
	require.NoError(t, os.WriteFile(b.Path(), raw, 0o644))

	_, err = Open(dir, 4)
	assert.ErrorIs(t, err, storage.ErrCorrupt)
}

func TestFailedWriteLeavesNoPartialRecord(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule(".rows", fs.Fault{FailAfterBytes: headerSize + 4})

	b, err := Open(dir, 4, WithFileSystem(ffs))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Write(ctx, []uint64{1}, []byte{1, 1, 1, 1}))
	err = b.Write(ctx, []uint64{2}, []byte{2, 2, 2, 2})
	require.ErrorIs(t, err, fs.ErrInjected)

	assert.ErrorIs(t, b.Read(ctx, []uint64{2}, make([]byte, 4)), storage.ErrNotFound)
	n, err := b.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	info, err := os.Stat(b.Path())
	require.NoError(t, err)
	assert.Equal(t, int64(headerSize+4), info.Size())
}

func TestFailedReadIsReported(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b, err := Open(dir, 4)
	require.NoError(t, err)
	require.NoError(t, b.Write(ctx, []uint64{1}, []byte{1, 1, 1, 1}))
	require.NoError(t, b.Close())

	ffs := fs.NewFaultyFS(nil)
	ffs.AddRule(".rows", fs.Fault{FailAfterBytes: -1, FailOnRead: true})

	// Recovery scans through the faulty file too.
	_, err = Open(dir, 4, WithFileSystem(ffs))
	assert.ErrorIs(t, err, fs.ErrInjected)
}

func TestCompact(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	const rowSize = storagetest.RowSize

	b, err := Open(dir, rowSize, WithCompression(compress.LZ4))
	require.NoError(t, err)

	for i := range 5 {
		require.NoError(t, b.Write(ctx, []uint64{1, 2}, storagetest.Rows(2, byte(i*2))))
	}
	require.NoError(t, b.Delete(ctx, []uint64{2}))
	require.NoError(t, b.Write(ctx, []uint64{3}, storagetest.Rows(1, 77)))

	before, err := os.Stat(b.Path())
	require.NoError(t, err)
	require.NoError(t, b.Compact(ctx))
	assert.Zero(t, b.Garbage())

	after, err := os.Stat(b.Path())
	require.NoError(t, err)
	assert.Less(t, after.Size(), before.Size())

	out := make([]byte, 2*rowSize)
	require.NoError(t, b.Read(ctx, []uint64{1, 3}, out))
	assert.Equal(t, storagetest.Rows(1, 8), out[:rowSize])
	assert.Equal(t, storagetest.Rows(1, 77), out[rowSize:])

	require.NoError(t, b.Write(ctx, []uint64{4}, storagetest.Rows(1, 4)))
	require.NoError(t, b.Close())

	b, err = Open(dir, rowSize, WithCompression(compress.LZ4))
	require.NoError(t, err)
	defer b.Close()
	n, err := b.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRateLimitedIO(t *testing.T) {
	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 20})
	ctx := context.Background()

	b, err := Open(t.TempDir(), 4, WithResourceController(rc))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Write(ctx, []uint64{1}, []byte{1, 2, 3, 4}))
	require.NoError(t, b.Read(ctx, []uint64{1}, make([]byte, 4)))
	assert.Equal(t, int64(2*(headerSize+4)), rc.IOBytes())
}

func TestOpenRejectsBadRowSize(t *testing.T) {
	_, err := Open(t.TempDir(), 0)
	assert.ErrorIs(t, err, storage.ErrBatchShape)
}

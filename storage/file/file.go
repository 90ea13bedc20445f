package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/hupe1980/embedstore/compress"
	"github.com/hupe1980/embedstore/internal/fs"
	"github.com/hupe1980/embedstore/internal/hash"
	"github.com/hupe1980/embedstore/resource"
	"github.com/hupe1980/embedstore/storage"
)

// Backend is an append-only row log. Every Write appends records and the
// newest record of a key wins. The in-memory index is rebuilt by scanning
// the log on open. A torn tail left by a crash is truncated away.
type Backend struct {
	mu      sync.RWMutex
	opts    options
	path    string
	rowSize int
	f       fs.File
	size    int64
	index   map[uint64]location
	garbage int64 // bytes of superseded records
	closed  bool
}

// Open opens (creating if needed) the log for rows of rowSize bytes in dir.
func Open(dir string, rowSize int, optFns ...Option) (*Backend, error) {
	if rowSize <= 0 {
		return nil, fmt.Errorf("%w: row size %d", storage.ErrBatchShape, rowSize)
	}

	opts := options{fs: fs.Default}
	for _, fn := range optFns {
		fn(&opts)
	}

	if err := opts.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	b := &Backend{
		opts:    opts,
		path:    filepath.Join(dir, storage.Namespace(opts.embeddingKey)+".rows"),
		rowSize: rowSize,
		index:   make(map[uint64]location),
	}

	f, err := opts.fs.OpenFile(b.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	b.f = f

	if err := b.recover(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return b, nil
}

// Path returns the log file path.
func (b *Backend) Path() string { return b.path }

// recover scans the log, rebuilding the index and truncating a torn tail.
// Only a record cut short by the end of the file counts as torn. A size
// no Write could produce or a checksum mismatch is reported as corruption.
func (b *Backend) recover() error {
	if _, err := b.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	maxFrame := int64(compress.MaxEncodedLen(b.opts.compression, b.rowSize))
	r := bufio.NewReaderSize(b.f, 64*1024)

	var (
		off  int64
		hdr  [headerSize]byte
		body []byte
	)
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return b.truncateTail(off)
			}
			return err
		}

		h := decodeHeader(hdr[:])
		n := h.payloadLen()
		if n > maxFrame {
			return fmt.Errorf("%w: record size %d at offset %d exceeds %d", storage.ErrCorrupt, n, off, maxFrame)
		}
		if cap(body) < int(n) {
			body = make([]byte, n)
		}
		body = body[:n]
		if _, err := io.ReadFull(r, body); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return b.truncateTail(off)
			}
			return err
		}
		if hash.Row(h.key, body) != h.crc {
			return fmt.Errorf("%w: checksum mismatch at offset %d", storage.ErrCorrupt, off)
		}

		if old, ok := b.index[h.key]; ok {
			b.garbage += headerSize + int64(old.size)
		}
		if h.deleted() {
			delete(b.index, h.key)
			b.garbage += headerSize
		} else {
			b.index[h.key] = location{off: off + headerSize, size: h.size}
		}
		off += headerSize + n
	}

	b.size = off
	return nil
}

func (b *Backend) truncateTail(off int64) error {
	if err := b.f.Truncate(off); err != nil {
		return fmt.Errorf("truncate torn tail: %w", err)
	}
	b.size = off
	return nil
}

func (b *Backend) Write(ctx context.Context, keys []uint64, values []byte) error {
	if err := storage.ValidateBatch(keys, values, b.rowSize); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	buf := make([]byte, 0, len(keys)*(headerSize+b.rowSize))
	locs := make([]location, len(keys))
	for i, k := range keys {
		frame, err := compress.Encode(b.opts.compression, storage.Row(values, b.rowSize, i))
		if err != nil {
			return err
		}
		locs[i] = location{off: int64(len(buf)) + headerSize, size: uint32(len(frame))}
		buf = appendRecord(buf, k, frame)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return storage.ErrClosed
	}
	if err := b.append(ctx, buf); err != nil {
		return err
	}

	base := b.size - int64(len(buf))
	for i, k := range keys {
		if old, ok := b.index[k]; ok {
			b.garbage += headerSize + int64(old.size)
		}
		b.index[k] = location{off: base + locs[i].off, size: locs[i].size}
	}
	return nil
}

// append writes buf at the end of the log. On failure the log is cut back
// so no partial record survives.
func (b *Backend) append(ctx context.Context, buf []byte) error {
	w := io.Writer(b.f)
	if b.opts.rc != nil {
		w = resource.NewRateLimitedWriter(ctx, b.f, b.opts.rc)
	}

	if _, err := w.Write(buf); err != nil {
		if terr := b.f.Truncate(b.size); terr != nil {
			return errors.Join(err, terr)
		}
		return err
	}
	if b.opts.syncOnWrite {
		if err := b.f.Sync(); err != nil {
			return err
		}
	}
	b.size += int64(len(buf))
	return nil
}

func (b *Backend) Read(ctx context.Context, keys []uint64, values []byte) error {
	if err := storage.ValidateBatch(keys, values, b.rowSize); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return storage.ErrClosed
	}

	r := io.ReaderAt(b.f)
	if b.opts.rc != nil {
		r = resource.NewRateLimitedReaderAt(ctx, b.f, b.opts.rc)
	}

	var frame []byte
	for i, k := range keys {
		loc, ok := b.index[k]
		if !ok {
			return &storage.NotFoundError{Key: k}
		}
		if cap(frame) < int(loc.size) {
			frame = make([]byte, loc.size)
		}
		frame = frame[:loc.size]
		if _, err := r.ReadAt(frame, loc.off); err != nil {
			return fmt.Errorf("read key %d: %w", k, err)
		}

		var hdr [headerSize]byte
		if _, err := r.ReadAt(hdr[:], loc.off-headerSize); err != nil {
			return fmt.Errorf("read key %d: %w", k, err)
		}
		if h := decodeHeader(hdr[:]); h.key != k || hash.Row(k, frame) != h.crc {
			return fmt.Errorf("%w: key %d at offset %d", storage.ErrCorrupt, k, loc.off)
		}

		if err := compress.Decode(b.opts.compression, frame, storage.Row(values, b.rowSize, i)); err != nil {
			return fmt.Errorf("%w: key %d: %v", storage.ErrCorrupt, k, err)
		}
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, keys []uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return storage.ErrClosed
	}

	var buf []byte
	for _, k := range keys {
		if _, ok := b.index[k]; ok {
			buf = appendTombstone(buf, k)
		}
	}
	if len(buf) == 0 {
		return nil
	}
	if err := b.append(ctx, buf); err != nil {
		return err
	}
	for _, k := range keys {
		if old, ok := b.index[k]; ok {
			b.garbage += 2*headerSize + int64(old.size)
			delete(b.index, k)
		}
	}
	return nil
}

func (b *Backend) Sync(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return storage.ErrClosed
	}
	return b.f.Sync()
}

func (b *Backend) Len(_ context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, storage.ErrClosed
	}
	return len(b.index), nil
}

func (b *Backend) Keys(_ context.Context) ([]uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, storage.ErrClosed
	}
	return slices.Sorted(maps.Keys(b.index)), nil
}

// Garbage returns the number of log bytes held by superseded records and
// tombstones. Compact reclaims them.
func (b *Backend) Garbage() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.garbage
}

// Compact rewrites the log with only live records and atomically swaps it in.
func (b *Backend) Compact(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return storage.ErrClosed
	}

	tmpPath := b.path + ".compact"
	tmp, err := b.opts.fs.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	fail := func(err error) error {
		_ = tmp.Close()
		_ = b.opts.fs.Remove(tmpPath)
		return err
	}

	index := make(map[uint64]location, len(b.index))
	w := bufio.NewWriterSize(tmp, 64*1024)
	var off int64
	var frame []byte
	for k, loc := range b.index {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if cap(frame) < int(loc.size) {
			frame = make([]byte, loc.size)
		}
		frame = frame[:loc.size]
		if _, err := b.f.ReadAt(frame, loc.off); err != nil {
			return fail(err)
		}
		rec := appendRecord(nil, k, frame)
		if _, err := w.Write(rec); err != nil {
			return fail(err)
		}
		index[k] = location{off: off + headerSize, size: loc.size}
		off += int64(len(rec))
	}
	if err := w.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = b.opts.fs.Remove(tmpPath)
		return err
	}

	if err := b.opts.fs.Rename(tmpPath, b.path); err != nil {
		_ = b.opts.fs.Remove(tmpPath)
		return err
	}

	f, err := b.opts.fs.OpenFile(b.path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		b.closed = true
		return err
	}
	_ = b.f.Close()
	b.f = f
	b.index = index
	b.size = off
	b.garbage = 0
	return b.opts.fs.SyncDir(filepath.Dir(b.path))
}

// Close closes the log. It is idempotent.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.f.Close()
}

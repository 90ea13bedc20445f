package bolt

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hupe1980/embedstore/compress"
	"github.com/hupe1980/embedstore/storage"
)

// Option configures a bolt backend.
type Option func(*options)

type options struct {
	embeddingKey int32
	compression  compress.Kind
	timeout      time.Duration
	noSync       bool
}

// WithEmbeddingKey selects the bucket rows are stored in.
func WithEmbeddingKey(key int32) Option {
	return func(o *options) { o.embeddingKey = key }
}

// WithCompression compresses each row with the given codec.
func WithCompression(kind compress.Kind) Option {
	return func(o *options) { o.compression = kind }
}

// WithTimeout bounds how long Open waits for the database file lock.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithNoSync skips fsync after each commit. Sync flushes explicitly.
func WithNoSync(enabled bool) Option {
	return func(o *options) { o.noSync = enabled }
}

// Backend stores rows in one bbolt bucket per embedding table. Each Write,
// Read and Delete runs in a single transaction, so batches are atomic.
type Backend struct {
	db      *bolt.DB
	bucket  []byte
	rowSize int
	opts    options
	closed  atomic.Bool
}

// Open opens (creating if needed) the database at path.
func Open(path string, rowSize int, optFns ...Option) (*Backend, error) {
	if rowSize <= 0 {
		return nil, fmt.Errorf("%w: row size %d", storage.ErrBatchShape, rowSize)
	}

	opts := options{timeout: time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: opts.timeout, NoSync: opts.noSync})
	if err != nil {
		return nil, err
	}

	b := &Backend{
		db:      db,
		bucket:  []byte(storage.Namespace(opts.embeddingKey)),
		rowSize: rowSize,
		opts:    opts,
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(b.bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func encodeKey(k uint64) []byte {
	var out [8]byte
	binary.BigEndian.PutUint64(out[:], k)
	return out[:]
}

func (b *Backend) Write(ctx context.Context, keys []uint64, values []byte) error {
	if err := storage.ValidateBatch(keys, values, b.rowSize); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.update(func(bk *bolt.Bucket) error {
		for i, k := range keys {
			frame, err := compress.Encode(b.opts.compression, storage.Row(values, b.rowSize, i))
			if err != nil {
				return err
			}
			// bbolt keeps the slice until commit; frame may alias values.
			if err := bk.Put(encodeKey(k), append([]byte(nil), frame...)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Backend) Read(ctx context.Context, keys []uint64, values []byte) error {
	if err := storage.ValidateBatch(keys, values, b.rowSize); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.view(func(bk *bolt.Bucket) error {
		for i, k := range keys {
			v := bk.Get(encodeKey(k))
			if v == nil {
				return &storage.NotFoundError{Key: k}
			}
			if err := compress.Decode(b.opts.compression, v, storage.Row(values, b.rowSize, i)); err != nil {
				return fmt.Errorf("%w: key %d: %v", storage.ErrCorrupt, k, err)
			}
		}
		return nil
	})
}

func (b *Backend) Delete(ctx context.Context, keys []uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.update(func(bk *bolt.Bucket) error {
		for _, k := range keys {
			if err := bk.Delete(encodeKey(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Backend) Len(_ context.Context) (int, error) {
	var n int
	err := b.view(func(bk *bolt.Bucket) error {
		n = bk.Stats().KeyN
		return nil
	})
	return n, err
}

// Keys walks the bucket; big-endian keys iterate in ascending order.
func (b *Backend) Keys(_ context.Context) ([]uint64, error) {
	var keys []uint64
	err := b.view(func(bk *bolt.Bucket) error {
		return bk.ForEach(func(k, _ []byte) error {
			keys = append(keys, binary.BigEndian.Uint64(k))
			return nil
		})
	})
	return keys, err
}

func (b *Backend) Sync(_ context.Context) error {
	if err := b.open(); err != nil {
		return err
	}
	return b.db.Sync()
}

// Close closes the database. It is idempotent.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}

func (b *Backend) open() error {
	if b.closed.Load() {
		return storage.ErrClosed
	}
	return nil
}

func (b *Backend) update(fn func(*bolt.Bucket) error) error {
	if err := b.open(); err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(b.bucket))
	})
}

func (b *Backend) view(fn func(*bolt.Bucket) error) error {
	if err := b.open(); err != nil {
		return err
	}
	return b.db.View(func(tx *bolt.Tx) error {
		return fn(tx.Bucket(b.bucket))
	})
}

package blob

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/embedstore/blobstore"
	"github.com/hupe1980/embedstore/compress"
	"github.com/hupe1980/embedstore/resource"
	"github.com/hupe1980/embedstore/storage"
)

// Option configures an object-store backend.
type Option func(*options)

type options struct {
	embeddingKey int32
	compression  compress.Kind
	concurrency  int
	rc           *resource.Controller
}

// WithEmbeddingKey selects the object prefix rows are stored under.
func WithEmbeddingKey(key int32) Option {
	return func(o *options) { o.embeddingKey = key }
}

// WithCompression compresses each row object with the given codec.
func WithCompression(kind compress.Kind) Option {
	return func(o *options) { o.compression = kind }
}

// WithConcurrency bounds in-flight object requests per batch. Default 16.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// WithResourceController bounds object requests across backends sharing rc
// and charges transferred bytes to its IO budget.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) { o.rc = rc }
}

// Backend stores one object per row, named <namespace>/<key as 16 hex digits>.
// Batches fan out over a bounded errgroup. A failed Write may leave a subset
// of its rows written; each row object is replaced atomically.
type Backend struct {
	store   blobstore.Store
	prefix  string
	rowSize int
	opts    options
}

// New creates a backend for rows of rowSize bytes on store.
func New(store blobstore.Store, rowSize int, optFns ...Option) (*Backend, error) {
	if rowSize <= 0 {
		return nil, fmt.Errorf("%w: row size %d", storage.ErrBatchShape, rowSize)
	}

	opts := options{concurrency: 16}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.concurrency <= 0 {
		opts.concurrency = 16
	}

	return &Backend{
		store:   store,
		prefix:  storage.Namespace(opts.embeddingKey) + "/",
		rowSize: rowSize,
		opts:    opts,
	}, nil
}

func (b *Backend) name(key uint64) string {
	return fmt.Sprintf("%s%016x", b.prefix, key)
}

// parseName reverses name. ok is false for foreign objects under the prefix.
func (b *Backend) parseName(name string) (uint64, bool) {
	hex, found := strings.CutPrefix(name, b.prefix)
	if !found || len(hex) != 16 {
		return 0, false
	}
	k, err := strconv.ParseUint(hex, 16, 64)
	return k, err == nil
}

// each runs fn for every index in [0, n) with bounded concurrency.
func (b *Backend) each(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.concurrency)

	for i := range n {
		g.Go(func() error {
			if err := b.opts.rc.AcquireRequest(gctx); err != nil {
				return err
			}
			defer b.opts.rc.ReleaseRequest()
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

func (b *Backend) Write(ctx context.Context, keys []uint64, values []byte) error {
	if err := storage.ValidateBatch(keys, values, b.rowSize); err != nil {
		return err
	}

	// Puts run concurrently, so a duplicated key is written once with its
	// last row.
	idx := storage.LastIndices(keys)
	return b.each(ctx, len(idx), func(ctx context.Context, j int) error {
		i := idx[j]
		frame, err := compress.Encode(b.opts.compression, storage.Row(values, b.rowSize, i))
		if err != nil {
			return err
		}
		if err := b.opts.rc.AcquireIO(ctx, len(frame)); err != nil {
			return err
		}
		return b.store.Put(ctx, b.name(keys[i]), frame)
	})
}

func (b *Backend) Read(ctx context.Context, keys []uint64, values []byte) error {
	if err := storage.ValidateBatch(keys, values, b.rowSize); err != nil {
		return err
	}

	return b.each(ctx, len(keys), func(ctx context.Context, i int) error {
		k := keys[i]
		frame, err := b.store.Get(ctx, b.name(k))
		if errors.Is(err, blobstore.ErrNotFound) {
			return &storage.NotFoundError{Key: k}
		}
		if err != nil {
			return err
		}
		if err := b.opts.rc.AcquireIO(ctx, len(frame)); err != nil {
			return err
		}
		if err := compress.Decode(b.opts.compression, frame, storage.Row(values, b.rowSize, i)); err != nil {
			return fmt.Errorf("%w: key %d: %v", storage.ErrCorrupt, k, err)
		}
		return nil
	})
}

func (b *Backend) Delete(ctx context.Context, keys []uint64) error {
	return b.each(ctx, len(keys), func(ctx context.Context, i int) error {
		return b.store.Delete(ctx, b.name(keys[i]))
	})
}

// Len lists the table's objects.
func (b *Backend) Len(ctx context.Context) (int, error) {
	names, err := b.store.List(ctx, b.prefix)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, name := range names {
		if _, ok := b.parseName(name); ok {
			n++
		}
	}
	return n, nil
}

// Keys returns every stored row key of the table in ascending name order.
func (b *Backend) Keys(ctx context.Context) ([]uint64, error) {
	names, err := b.store.List(ctx, b.prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]uint64, 0, len(names))
	for _, name := range names {
		if k, ok := b.parseName(name); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Close is a no-op; the blob store is owned by the caller.
func (b *Backend) Close() error { return nil }

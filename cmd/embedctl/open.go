package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/embedstore"
	"github.com/hupe1980/embedstore/blobstore"
	miniostore "github.com/hupe1980/embedstore/blobstore/minio"
	s3store "github.com/hupe1980/embedstore/blobstore/s3"
	"github.com/hupe1980/embedstore/buffer"
	"github.com/hupe1980/embedstore/cache"
	"github.com/hupe1980/embedstore/compress"
	"github.com/hupe1980/embedstore/resource"
	"github.com/hupe1980/embedstore/storage"
	"github.com/hupe1980/embedstore/storage/blob"
	"github.com/hupe1980/embedstore/storage/bolt"
	"github.com/hupe1980/embedstore/storage/dynamo"
	"github.com/hupe1980/embedstore/storage/file"
	"github.com/hupe1980/embedstore/storage/sqlite"
)

const elemBytes = 4

var errPathRequired = errors.New("backend path is required")

func newLogger(w io.Writer, s logSettings) *embedstore.Logger {
	level := slog.LevelWarn
	if s.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(s.Format, "json") {
		return embedstore.NewLogger(slog.NewJSONHandler(w, opts))
	}
	return embedstore.NewLogger(slog.NewTextHandler(w, opts))
}

func newCache(s cacheSettings, capacity int) (cache.Cache[int64, int], error) {
	switch strings.ToLower(s.Policy) {
	case "", "lru":
		return cache.NewLRU[int64, int](capacity), nil
	case "lfu":
		return cache.NewLFU[int64, int](capacity), nil
	case "fifo":
		return cache.NewFIFO[int64, int](capacity), nil
	case "random":
		return cache.NewRandom[int64, int](capacity, s.Seed), nil
	default:
		return nil, fmt.Errorf("unknown cache policy %q", s.Policy)
	}
}

func ensureParent(path string) error {
	if path == "" {
		return errPathRequired
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// openBackend opens the configured backend for rows of rowSize bytes.
func openBackend(ctx context.Context, s settings, rowSize int, rc *resource.Controller) (storage.Backend, error) {
	b := s.Backend
	key := s.Table.EmbeddingKey

	kind, err := compress.ParseKind(b.Compression)
	if err != nil {
		return nil, err
	}

	blobOpts := []blob.Option{
		blob.WithEmbeddingKey(key),
		blob.WithCompression(kind),
		blob.WithConcurrency(b.Concurrency),
		blob.WithResourceController(rc),
	}

	switch strings.ToLower(b.Kind) {
	case "memory":
		return storage.NewMemory(rowSize), nil

	case "file":
		if b.Path == "" {
			return nil, errPathRequired
		}
		fb, err := file.Open(b.Path, rowSize,
			file.WithEmbeddingKey(key),
			file.WithCompression(kind),
			file.WithSyncOnWrite(b.SyncOnWrite),
			file.WithResourceController(rc),
		)
		if err != nil {
			return nil, err
		}
		return fb, nil

	case "bolt":
		if err := ensureParent(b.Path); err != nil {
			return nil, err
		}
		bb, err := bolt.Open(b.Path, rowSize,
			bolt.WithEmbeddingKey(key),
			bolt.WithCompression(kind),
			bolt.WithNoSync(!b.SyncOnWrite),
		)
		if err != nil {
			return nil, err
		}
		return bb, nil

	case "sqlite":
		if err := ensureParent(b.Path); err != nil {
			return nil, err
		}
		sb, err := sqlite.Open(b.Path, rowSize, key)
		if err != nil {
			return nil, err
		}
		return sb, nil

	case "local":
		if b.Path == "" {
			return nil, errPathRequired
		}
		return blob.New(blobstore.NewLocalStore(b.Path), rowSize, blobOpts...)

	case "s3":
		opts := []s3store.Option{s3store.WithPrefix(b.Prefix)}
		if b.Region != "" {
			opts = append(opts, s3store.WithRegion(b.Region))
		}
		if b.Endpoint != "" {
			opts = append(opts, s3store.WithEndpoint(b.Endpoint, true))
		}
		st, err := s3store.New(ctx, b.Bucket, opts...)
		if err != nil {
			return nil, err
		}
		return blob.New(st, rowSize, blobOpts...)

	case "minio":
		client, err := minio.New(b.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(b.AccessKey, b.SecretKey, ""),
			Secure: b.Secure,
			Region: b.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return blob.New(miniostore.NewStore(client, b.Bucket, b.Prefix), rowSize, blobOpts...)

	case "dynamo":
		opts := []dynamo.Option{dynamo.WithEmbeddingKey(key), dynamo.WithCompression(kind)}
		if b.Region != "" {
			opts = append(opts, dynamo.WithConfigOptions(config.WithRegion(b.Region)))
		}
		return dynamo.New(ctx, b.Table, rowSize, opts...)

	default:
		return nil, fmt.Errorf("unknown backend %q", b.Kind)
	}
}

// session is an initialized store with the resources it was opened with.
type session struct {
	store   *embedstore.DenseStore[int64, float32]
	backend storage.Backend
	metrics *embedstore.BasicMetricsCollector
	mapped  *buffer.Mapped
}

func openSession(ctx context.Context, s settings, logOut io.Writer) (*session, error) {
	cfg, err := s.storeConfig()
	if err != nil {
		return nil, err
	}

	c, err := newCache(s.Cache, cfg.Capacity)
	if err != nil {
		return nil, err
	}

	rc := s.resourceController()
	backend, err := openBackend(ctx, s, cfg.Dim*elemBytes, rc)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", s.Backend.Kind, err)
	}

	sess := &session{backend: backend, metrics: &embedstore.BasicMetricsCollector{}}

	var buf buffer.Buffer
	if s.Table.BufferPath != "" {
		m, err := buffer.Map(s.Table.BufferPath, cfg.BufferSize(elemBytes))
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
		sess.mapped = m
		buf = m
	} else {
		h, err := buffer.NewHeap(cfg.BufferSize(elemBytes))
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
		buf = h
	}

	sess.store = embedstore.NewDenseStore[int64, float32](cfg, c, backend,
		embedstore.WithLogger(newLogger(logOut, s.Log)),
		embedstore.WithMetricsCollector(sess.metrics),
		embedstore.WithResourceController(rc),
	)
	if err := sess.store.Initialize(buf); err != nil {
		_ = sess.close()
		return nil, err
	}
	return sess, nil
}

// close finalizes the store, which writes resident rows back, then
// releases the buffer and backend.
func (s *session) close() error {
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Finalize())
	}
	if s.mapped != nil {
		errs = append(errs, s.mapped.Close())
	}
	errs = append(errs, s.backend.Close())
	return errors.Join(errs...)
}

package file

import (
	"github.com/hupe1980/embedstore/compress"
	"github.com/hupe1980/embedstore/internal/fs"
	"github.com/hupe1980/embedstore/resource"
)

// Option configures a file backend.
type Option func(*options)

type options struct {
	fs           fs.FileSystem
	compression  compress.Kind
	embeddingKey int32
	syncOnWrite  bool
	rc           *resource.Controller
}

// WithFileSystem replaces the local file system (tests inject fs.FaultyFS).
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

// WithCompression compresses each row with the given codec.
func WithCompression(kind compress.Kind) Option {
	return func(o *options) {
		o.compression = kind
	}
}

// WithEmbeddingKey selects the table; each table is its own log file.
func WithEmbeddingKey(key int32) Option {
	return func(o *options) {
		o.embeddingKey = key
	}
}

// WithSyncOnWrite fsyncs the log after every Write.
func WithSyncOnWrite(enabled bool) Option {
	return func(o *options) {
		o.syncOnWrite = enabled
	}
}

// WithResourceController rate-limits log reads and writes.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

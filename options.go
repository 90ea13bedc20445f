package embedstore

import (
	"github.com/hupe1980/embedstore/resource"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	allocator        Allocator
	resources        *resource.Controller
}

// Option configures a store's runtime collaborators.
type Option func(*options)

// WithLogger sets the logger. Pass nil to disable logging.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &embedstore.BasicMetricsCollector{}
//	s := embedstore.NewDenseStore[int64, float32](cfg, c, backend, embedstore.WithMetricsCollector(metrics))
//	// ... use s ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithAllocator sets the allocator for backend scratch buffers.
func WithAllocator(a Allocator) Option {
	return func(o *options) {
		o.allocator = a
	}
}

// WithResourceController charges scratch buffers to rc's memory budget.
// It has no effect when WithAllocator supplies a custom allocator.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

func applyOptions(optFns []Option) options {
	var o options
	for _, fn := range optFns {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.allocator == nil {
		o.allocator = NewPoolAllocator(o.resources)
	}
	return o
}

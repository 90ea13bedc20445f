package embedstore

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with store-specific helpers and consistent
// field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that writes JSON to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that writes human-readable text to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// With returns a Logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// LogInitialize logs binding a store to its buffer.
func (l *Logger) LogInitialize(ctx context.Context, cfg Config, err error) {
	if err != nil {
		l.ErrorContext(ctx, "initialize failed",
			"capacity", cfg.Capacity,
			"dim", cfg.Dim,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "store initialized",
		"capacity", cfg.Capacity,
		"dim", cfg.Dim,
		"dtype", cfg.DType.String(),
	)
}

// LogGet logs a batched lookup.
func (l *Logger) LogGet(ctx context.Context, keys, misses int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "get failed",
			"keys", keys,
			"misses", misses,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "get completed",
		"keys", keys,
		"misses", misses,
	)
}

// LogPut logs a batched update.
func (l *Logger) LogPut(ctx context.Context, keys, misses int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "put failed",
			"keys", keys,
			"misses", misses,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "put completed",
		"keys", keys,
		"misses", misses,
	)
}

// LogEviction logs a write-back of evicted rows.
func (l *Logger) LogEviction(ctx context.Context, reserve, evicted int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "eviction failed",
			"reserve", reserve,
			"evicted", evicted,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "eviction completed",
		"reserve", reserve,
		"evicted", evicted,
	)
}

// LogFlush logs a checkpoint of all resident rows.
func (l *Logger) LogFlush(ctx context.Context, rows int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "flush failed",
			"rows", rows,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "flush completed",
		"rows", rows,
	)
}

package memvec

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/memvec/model"
	"github.com/hupe1980/memvec/resolver"
)

// Logger wraps slog.Logger with memvec-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithID adds an ID field to the logger (useful for tagging operations).
func (l *Logger) WithID(id model.VectorID) *Logger {
	return &Logger{
		Logger: l.Logger.With("id", id.String()),
	}
}

// WithK adds a k (result count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// LogQuery logs a completed query.
func (l *Logger) LogQuery(ctx context.Context, k, candidates, results int, quality model.Quality, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"k", k,
			"candidates", candidates,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"k", k,
			"candidates", candidates,
			"results", results,
			"quality", quality.String(),
		)
	}
}

// LogResolve logs the outcome of a candidate resolution.
func (l *Logger) LogResolve(ctx context.Context, stats resolver.Stats) {
	if stats.Degraded {
		l.WarnContext(ctx, "resolution degraded",
			"hits", stats.Hits,
			"misses", stats.Misses,
		)
	} else {
		l.DebugContext(ctx, "resolution completed",
			"hits", stats.Hits,
			"misses", stats.Misses,
			"stale", stats.Stale,
		)
	}
}

// LogShortCircuit logs a quality-threshold short-circuit decision.
func (l *Logger) LogShortCircuit(ctx context.Context, k int, bestScore float32) {
	l.DebugContext(ctx, "short-circuited on cached candidates",
		"k", k,
		"best_score", bestScore,
	)
}

// LogInvalidate logs a cache invalidation.
func (l *Logger) LogInvalidate(ctx context.Context, id model.VectorID) {
	l.DebugContext(ctx, "entry invalidated",
		"id", id.String(),
	)
}

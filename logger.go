package spectra

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with collection-specific helpers so
// operations log with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses the default text handler to stderr.
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

// NoopLogger creates a Logger that discards all log output. It is the
// default: a library stays quiet unless asked otherwise.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// LogPeaksRead logs a completed peak read.
func (l *Logger) LogPeaksRead(ctx context.Context, count, partitions int) {
	l.DebugContext(ctx, "peaks read",
		"count", count,
		"partitions", partitions,
	)
}

// LogFilter logs a filter application with its selectivity.
func (l *Logger) LogFilter(ctx context.Context, name string, in, out int) {
	l.DebugContext(ctx, "filter applied",
		"filter", name,
		"in", in,
		"out", out,
	)
}

// LogApply logs a processing queue materialization.
func (l *Logger) LogApply(ctx context.Context, steps, count int) {
	l.InfoContext(ctx, "processing applied",
		"steps", steps,
		"count", count,
	)
}

// LogMigration logs a backend migration.
func (l *Logger) LogMigration(ctx context.Context, count int) {
	l.InfoContext(ctx, "backend migrated",
		"count", count,
	)
}

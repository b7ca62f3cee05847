package gridfilter

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with gridfilter-specific context.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithColumn adds a column key field to the logger.
func (l *Logger) WithColumn(columnKey string) *Logger {
	return &Logger{
		Logger: l.Logger.With("column", columnKey),
	}
}

// LogRebuild logs a cache rebuild.
func (l *Logger) LogRebuild(ctx context.Context, columnKey string, distinct int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "cache rebuild failed",
			"column", columnKey,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "cache rebuild completed",
			"column", columnKey,
			"distinct", distinct,
		)
	}
}

// LogDelta logs an incremental cache update.
func (l *Logger) LogDelta(ctx context.Context, columnKey string, added, removed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "cache delta failed",
			"column", columnKey,
			"added", added,
			"removed", removed,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "cache delta applied",
			"column", columnKey,
			"added", added,
			"removed", removed,
		)
	}
}

// LogSynchronize logs a synchronization pass.
func (l *Logger) LogSynchronize(ctx context.Context, columnKey, strategy string, suppressed bool, reason string) {
	if suppressed {
		l.DebugContext(ctx, "synchronization suppressed",
			"column", columnKey,
			"reason", reason,
		)
	} else {
		l.DebugContext(ctx, "synchronization completed",
			"column", columnKey,
			"strategy", strategy,
		)
	}
}

// LogApply logs a filter application.
func (l *Logger) LogApply(ctx context.Context, columnKey, kind, errorMessage string) {
	if errorMessage != "" {
		l.WarnContext(ctx, "filter application degraded",
			"column", columnKey,
			"kind", kind,
			"error", errorMessage,
		)
	} else {
		l.DebugContext(ctx, "filter applied",
			"column", columnKey,
			"kind", kind,
		)
	}
}

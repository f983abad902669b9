package vtab

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with vtab-specific context.
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

// WithPartition adds a grouping-key field to the logger.
func (l *Logger) WithPartition(key string) *Logger {
	return &Logger{
		Logger: l.Logger.With("partition", key),
	}
}

// WithRow adds a logical-row field to the logger.
func (l *Logger) WithRow(row int) *Logger {
	return &Logger{
		Logger: l.Logger.With("row", row),
	}
}

// LogRebuild logs a full row-map rebuild.
func (l *Logger) LogRebuild(rows, partitions int) {
	l.Debug("row map rebuilt",
		"rows", rows,
		"partitions", partitions,
	)
}

// LogPatchFallback logs a failed incremental patch that forced a rebuild.
func (l *Logger) LogPatchFallback(reason any) {
	l.Error("incremental patch failed, falling back to full rebuild",
		"reason", reason,
	)
}

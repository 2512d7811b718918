package shardset

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with shardset-specific context.
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
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{Logger: slog.New(handler)}
}

// LogVersionConflict logs a sibling directory holding a different
// dataset version. Informational only; the build continues.
func (l *Logger) LogVersionConflict(ctx context.Context, name, dataDir, found, declared string) {
	l.WarnContext(ctx, "found a different dataset version on disk, using the declared version",
		"dataset", name,
		"data_dir", dataDir,
		"found_version", found,
		"declared_version", declared,
	)
}

// LogReuse logs that an existing complete dataset is reused as-is.
func (l *Logger) LogReuse(ctx context.Context, name, dir string) {
	l.InfoContext(ctx, "reusing existing dataset",
		"dataset", name,
		"dir", dir,
	)
}

// LogGenerateSplit logs the start of generation for one split.
func (l *Logger) LogGenerateSplit(ctx context.Context, name string, shardCount int) {
	l.InfoContext(ctx, "generating split",
		"split", name,
		"shard_count", shardCount,
	)
}

// LogSplitsCapped logs that the per-split example cap stopped a
// generator early.
func (l *Logger) LogSplitsCapped(ctx context.Context, max int) {
	l.WarnContext(ctx, "splits capped at max examples",
		"max_examples_per_split", max,
	)
}

// LogBuildCommitted logs a successfully promoted build.
func (l *Logger) LogBuildCommitted(ctx context.Context, name, dir string, totalExamples int) {
	l.InfoContext(ctx, "dataset build committed",
		"dataset", name,
		"dir", dir,
		"total_examples", totalExamples,
	)
}

// LogBuildFailed logs an aborted build.
func (l *Logger) LogBuildFailed(ctx context.Context, name string, err error) {
	l.ErrorContext(ctx, "dataset build failed",
		"dataset", name,
		"error", err,
	)
}

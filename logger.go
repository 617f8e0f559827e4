package vectora

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with vectora-specific context.
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

// WithDataset adds a dataset field to the logger.
func (l *Logger) WithDataset(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataset", name),
	}
}

// LogInsert logs a bulk insert operation.
func (l *Logger) LogInsert(ctx context.Context, dataset string, inserted, failed int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "insert failed",
			"dataset", dataset,
			"error", err,
		)
	case failed > 0:
		l.WarnContext(ctx, "insert completed with failures",
			"dataset", dataset,
			"inserted", inserted,
			"failed", failed,
		)
	default:
		l.DebugContext(ctx, "insert completed",
			"dataset", dataset,
			"inserted", inserted,
		)
	}
}

// LogSetupSubmitted logs the submission of a training job.
func (l *Logger) LogSetupSubmitted(ctx context.Context, dataset, model string, records int) {
	l.InfoContext(ctx, "training job submitted",
		"dataset", dataset,
		"model", model,
		"records", records,
	)
}

// LogSetupFinished logs the outcome of a training job.
func (l *Logger) LogSetupFinished(ctx context.Context, dataset string, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "training failed",
			"dataset", dataset,
			"duration", duration,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "training completed",
			"dataset", dataset,
			"duration", duration,
		)
	}
}

// LogQuery logs a similarity query.
func (l *Logger) LogQuery(ctx context.Context, dataset string, queries, k int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"dataset", dataset,
			"queries", queries,
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"dataset", dataset,
			"queries", queries,
			"k", k,
		)
	}
}

// LogDelete logs a dataset or raw-data deletion.
func (l *Logger) LogDelete(ctx context.Context, dataset, what string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			"dataset", dataset,
			"what", what,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "delete completed",
			"dataset", dataset,
			"what", what,
		)
	}
}

// LogSnapshot logs a snapshot save or load.
func (l *Logger) LogSnapshot(ctx context.Context, dataset, blob string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"dataset", dataset,
			"blob", blob,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot completed",
			"dataset", dataset,
			"blob", blob,
		)
	}
}

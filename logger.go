package exthash

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with index-specific helpers, so operations log
// with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses a default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))
}

// LogSplit logs a bucket split.
func (l *Logger) LogSplit(fileName string, localDepth, globalDepth int) {
	l.Debug("bucket split",
		"bucket", fileName,
		"local_depth", localDepth,
		"global_depth", globalDepth,
	)
}

// LogDoubling logs a directory doubling.
func (l *Logger) LogDoubling(globalDepth, directorySize int) {
	l.Debug("directory doubled",
		"global_depth", globalDepth,
		"directory_size", directorySize,
	)
}

// LogCheckpoint logs a checkpoint save.
func (l *Logger) LogCheckpoint(root string, buckets int, err error) {
	if err != nil {
		l.Error("checkpoint failed",
			"root", root,
			"error", err,
		)
	} else {
		l.Info("checkpoint saved",
			"root", root,
			"buckets", buckets,
		)
	}
}

// LogRestore logs a checkpoint restore.
func (l *Logger) LogRestore(root string, buckets, globalDepth int, err error) {
	if err != nil {
		l.Error("restore failed",
			"root", root,
			"error", err,
		)
	} else {
		l.Info("restore completed",
			"root", root,
			"buckets", buckets,
			"global_depth", globalDepth,
		)
	}
}

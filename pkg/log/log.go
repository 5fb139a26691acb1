// Package log configures the process-wide slog logger and provides
// helpers for module- and thread-scoped loggers.
package log

import (
	"log/slog"
	"os"
)

func Setup(logLevel string) {
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}

// WithThread returns a logger bound to a workflow thread. All node and
// service logs for one conversation share the same thread_id attribute.
func WithThread(logger *slog.Logger, threadID string) *slog.Logger {
	return logger.With("thread_id", threadID)
}

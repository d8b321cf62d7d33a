// Package log provides structured logging for the pomodoro app.
// It wraps slog so every component logs through the same handler.
package log

import (
	"log/slog"
	"os"
	"sync"
)

var (
	logger  *slog.Logger
	lvl     = new(slog.LevelVar)
	initLog sync.Once
)

// Init configures the global logger. Valid levels: "debug", "info",
// "warn", "error". Subsequent calls only adjust the level.
func Init(level string) {
	switch level {
	case "debug":
		lvl.Set(slog.LevelDebug)
	case "warn":
		lvl.Set(slog.LevelWarn)
	case "error":
		lvl.Set(slog.LevelError)
	default:
		lvl.Set(slog.LevelInfo)
	}

	initLog.Do(func() {
		opts := &slog.HandlerOptions{Level: lvl}

		// JSON in production, text for development.
		if os.Getenv("GO_ENV") == "production" {
			logger = slog.New(slog.NewJSONHandler(os.Stdout, opts))
		} else {
			logger = slog.New(slog.NewTextHandler(os.Stdout, opts))
		}

		slog.SetDefault(logger)
	})
}

// L returns the global logger instance.
func L() *slog.Logger {
	if logger == nil {
		Init("info")
	}
	return logger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

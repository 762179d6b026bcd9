package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
)

type contextKey struct{}

var (
	loggerKey       = contextKey{}
	defaultLogger   *slog.Logger
	defaultLoggerMu sync.RWMutex
)

// Logs go to stderr so that stdout carries only model answers and tool output.
func init() {
	defaultLogger = New("info", os.Stderr)
}

// ParseLevel converts a level name to slog.Level.
// Accepts: "debug", "info", "warn", "warning", "error" (case-insensitive)
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, goerr.New("invalid log level", goerr.V("level", level))
	}
}

// New creates a new console logger. An unknown level falls back to info.
func New(level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	lvl, err := ParseLevel(level)

	handler := clog.New(
		clog.WithWriter(w),
		clog.WithLevel(lvl),
		clog.WithTimeFmt("15:04:05"),
		clog.WithSource(false),
		clog.WithAttrHook(clog.GoerrHook),
	)
	logger := slog.New(handler)

	if err != nil {
		logger.Warn("invalid log level, falling back to info", "level", level)
	}
	return logger
}

// Default returns the default logger
func Default() *slog.Logger {
	defaultLoggerMu.RLock()
	defer defaultLoggerMu.RUnlock()
	return defaultLogger
}

// SetDefault sets the default logger
func SetDefault(logger *slog.Logger) {
	defaultLoggerMu.Lock()
	defer defaultLoggerMu.Unlock()
	defaultLogger = logger
}

// With returns a new context with the logger attached
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// From retrieves the logger from the context
// If no logger is found, it returns the default logger
func From(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return Default()
}

// Package log provides structured logging for the side-ledger execution core.
// It wraps go-ethereum's slog-based logger with per-module child loggers so
// every subsystem (state, txqueue, gasprice, miner, executor) tags its own
// records.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	gethlog "github.com/ethereum/go-ethereum/log"
)

// Additional levels exposed by go-ethereum's handler set.
const (
	LevelTrace = gethlog.LevelTrace
	LevelCrit  = gethlog.LevelCrit
)

// Logger wraps a go-ethereum logger with module-scoped context.
type Logger struct {
	inner gethlog.Logger
}

// defaultLogger is the process-wide logger used by the package-level
// convenience functions.
var defaultLogger *Logger

func init() {
	defaultLogger = New(slog.LevelInfo)
}

// New creates a Logger that writes terminal-formatted records to stderr at
// the given level.
func New(level slog.Level) *Logger {
	return NewTerminal(os.Stderr, level, false)
}

// NewTerminal creates a Logger using go-ethereum's terminal format.
func NewTerminal(w io.Writer, level slog.Level, color bool) *Logger {
	return NewWithHandler(gethlog.NewTerminalHandlerWithLevel(w, level, color))
}

// NewJSON creates a Logger that emits one JSON object per record.
func NewJSON(w io.Writer, level slog.Level) *Logger {
	return NewWithHandler(gethlog.JSONHandlerWithLevel(w, level))
}

// NewWithHandler creates a Logger backed by the supplied slog.Handler. This
// is useful for testing or for writing to a custom destination.
func NewWithHandler(h slog.Handler) *Logger {
	return &Logger{inner: gethlog.NewLogger(h)}
}

// SetDefault replaces the package-level default logger. The go-ethereum root
// logger is redirected as well so library output shares the same sink.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
		gethlog.SetDefault(l.inner)
	}
}

// Default returns the current package-level default logger.
func Default() *Logger {
	return defaultLogger
}

// Module returns a child logger of the default logger.
func Module(name string) *Logger {
	return defaultLogger.Module(name)
}

// Module returns a child logger with an additional "module" attribute.
func (l *Logger) Module(name string) *Logger {
	return &Logger{inner: l.inner.With("module", name)}
}

// With returns a child logger with additional key-value context.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{inner: l.inner.With(args...)}
}

// Enabled reports whether records at level would be emitted.
func (l *Logger) Enabled(level slog.Level) bool {
	return l.inner.Enabled(context.Background(), level)
}

func (l *Logger) Trace(msg string, args ...any) { l.inner.Trace(msg, args...) }
func (l *Logger) Debug(msg string, args ...any) { l.inner.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any) { l.inner.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any) { l.inner.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.inner.Error(msg, args...) }

// Debug logs at LevelDebug using the default logger.
func Debug(msg string, args ...any) { defaultLogger.Debug(msg, args...) }

// Info logs at LevelInfo using the default logger.
func Info(msg string, args ...any) { defaultLogger.Info(msg, args...) }

// Warn logs at LevelWarn using the default logger.
func Warn(msg string, args ...any) { defaultLogger.Warn(msg, args...) }

// Error logs at LevelError using the default logger.
func Error(msg string, args ...any) { defaultLogger.Error(msg, args...) }

// ParseLevel maps a configuration string onto a level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "crit":
		return LevelCrit, nil
	}
	return slog.LevelInfo, fmt.Errorf("log: unknown level %q", s)
}

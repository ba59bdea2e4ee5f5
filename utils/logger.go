package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// Logger provides leveled, printf-style logging on top of slog.
type Logger struct {
	internal *slog.Logger
	level    *slog.LevelVar
}

// NewLogger creates an info-level Logger writing coloured output to stdout.
func NewLogger() *Logger {
	return NewLeveledLogger(os.Stdout, "info")
}

// NewLeveledLogger creates a Logger writing to w at the named level
// (debug, info, warn, error). Unknown names fall back to info.
func NewLeveledLogger(w io.Writer, level string) *Logger {
	lvl := new(slog.LevelVar)
	lvl.Set(ParseLevel(level))

	handler := tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: "2006-01-02 15:04:05",
	})

	return &Logger{internal: slog.New(handler), level: lvl}
}

// ParseLevel maps a level name to its slog value.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) Info(format string, args ...any) {
	l.log(slog.LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(slog.LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(slog.LevelError, format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.log(slog.LevelDebug, format, args...)
}

// With returns a child logger carrying the given key/value attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{internal: l.internal.With(args...), level: l.level}
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level slog.Level) bool {
	return l.internal.Enabled(context.Background(), level)
}

func (l *Logger) log(level slog.Level, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	l.internal.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

// Package core holds the ambient infrastructure shared by every other
// package: structured logging, YAML configuration, the cooperative
// single-threaded runtime, and its scheduler. None of it is forwarding
// logic; it is the scaffolding the forwarding logic runs on.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Level is the daemon's own narrower level enum (TRACE..FATAL), mapped onto
// slog's level space so every other package logs through one Logger type
// without depending on log/slog directly.
type Level int

const (
	LevelTrace Level = -8
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
	LevelFatal Level = 12
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses one of TRACE/DEBUG/INFO/WARN/ERROR/FATAL.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	}
	return LevelInfo, fmt.Errorf("invalid log level: %s", s)
}

// Logger wraps slog, always prefixing the emitting module's identity (a
// fmt.Stringer, e.g. a Strategy or mgmt Module) as the first structured
// field. Call sites read Log.Info(self, "message", "key", value, ...).
type Logger struct {
	inner *slog.Logger
	level Level
}

// Log is the process-wide logger. Tests may swap it out.
var Log = NewLogger(LevelInfo, os.Stderr)

// NewLogger builds a Logger writing text-formatted records at or above
// level to w.
func NewLogger(level Level, w *os.File) *Logger {
	// The handler admits every level; l.level does the filtering, so a later
	// SetLevel can lower the threshold as well as raise it.
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.Level(LevelTrace)})
	return &Logger{inner: slog.New(h), level: level}
}

// SetLevel adjusts the minimum level that will be emitted.
func (l *Logger) SetLevel(level Level) { l.level = level }

func (l *Logger) log(level Level, who fmt.Stringer, msg string, kv ...any) {
	if level < l.level {
		return
	}
	args := make([]any, 0, len(kv)+2)
	args = append(args, "module", who.String())
	args = append(args, kv...)
	l.inner.Log(context.Background(), slog.Level(level), msg, args...)
}

func (l *Logger) Trace(who fmt.Stringer, msg string, kv ...any) { l.log(LevelTrace, who, msg, kv...) }
func (l *Logger) Debug(who fmt.Stringer, msg string, kv ...any) { l.log(LevelDebug, who, msg, kv...) }
func (l *Logger) Info(who fmt.Stringer, msg string, kv ...any)  { l.log(LevelInfo, who, msg, kv...) }
func (l *Logger) Warn(who fmt.Stringer, msg string, kv ...any)  { l.log(LevelWarn, who, msg, kv...) }
func (l *Logger) Error(who fmt.Stringer, msg string, kv ...any) { l.log(LevelError, who, msg, kv...) }

// Fatal logs at FATAL and exits the process: reserved for
// ErrInvalidStateTransition-class programmer errors (spec.md §7), never for
// externally triggered conditions.
func (l *Logger) Fatal(who fmt.Stringer, msg string, kv ...any) {
	l.log(LevelFatal, who, msg, kv...)
	os.Exit(1)
}

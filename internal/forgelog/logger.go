// Package forgelog is the ambient structured logger used throughout the
// module: a process-wide log/slog logger with a terminal-aware text
// handler and a JSON handler for pipes and files. Its field vocabulary is
// pipeline-shaped: command path, invocation id, pipeline state.
//
// Log output goes to stderr by default so it never interleaves with a
// command's own stdout payload.
package forgelog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Config selects the process logger's level, format, and destination.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or a file path
}

// level is shared by every handler this package builds, so a level change
// takes effect without swapping the active logger.
var level slog.LevelVar

// current is the active logger, swapped atomically by Init so log calls
// are lock-free and never observe a half-configured logger.
var current atomic.Pointer[slog.Logger]

// cfgMu serializes Init against itself; the sink fields below are only
// touched under it.
var (
	cfgMu    sync.Mutex
	sinkW    io.Writer = os.Stderr
	sinkTTY  bool
	jsonMode bool
)

func init() {
	sinkTTY = isTerminal(os.Stderr.Fd())
	rebuild()
}

func rebuild() {
	var h slog.Handler
	if jsonMode {
		h = slog.NewJSONHandler(sinkW, &slog.HandlerOptions{Level: &level})
	} else {
		h = newTextHandler(sinkW, &level, sinkTTY)
	}
	current.Store(slog.New(h))
}

// Init configures the package logger from cfg. Empty fields keep their
// previous values; an unknown level or format, or an unopenable output
// file, is an error.
func Init(cfg Config) error {
	cfgMu.Lock()
	defer cfgMu.Unlock()

	if cfg.Level != "" {
		lv, err := parseLevel(cfg.Level)
		if err != nil {
			return err
		}
		level.Set(lv)
	}

	switch strings.ToLower(cfg.Format) {
	case "":
	case "text":
		jsonMode = false
	case "json":
		jsonMode = true
	default:
		return fmt.Errorf("forgelog: unknown format %q", cfg.Format)
	}

	if cfg.Output != "" {
		w, tty, err := openSink(cfg.Output)
		if err != nil {
			return err
		}
		sinkW, sinkTTY = w, tty
	}

	rebuild()
	return nil
}

// InitWithWriter points the logger at w, bypassing terminal detection.
// Tests use it to assert on rendered output.
func InitWithWriter(w io.Writer, levelName, format string, color bool) error {
	cfgMu.Lock()
	defer cfgMu.Unlock()

	if levelName != "" {
		lv, err := parseLevel(levelName)
		if err != nil {
			return err
		}
		level.Set(lv)
	}
	sinkW, sinkTTY = w, color
	jsonMode = strings.EqualFold(format, "json")
	rebuild()
	return nil
}

func openSink(name string) (io.Writer, bool, error) {
	switch strings.ToLower(name) {
	case "stderr":
		return os.Stderr, isTerminal(os.Stderr.Fd()), nil
	case "stdout":
		return os.Stdout, isTerminal(os.Stdout.Fd()), nil
	default:
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, false, fmt.Errorf("forgelog: opening log file %q: %w", name, err)
		}
		return f, false, nil
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("forgelog: unknown level %q", s)
}

func active() *slog.Logger { return current.Load() }

// Debug logs at debug level with structured key/value pairs.
func Debug(msg string, args ...any) { active().Debug(msg, args...) }

// Info logs at info level with structured key/value pairs.
func Info(msg string, args ...any) { active().Info(msg, args...) }

// Warn logs at warn level with structured key/value pairs.
func Warn(msg string, args ...any) { active().Warn(msg, args...) }

// Error logs at error level with structured key/value pairs.
func Error(msg string, args ...any) { active().Error(msg, args...) }

// DebugCtx logs at debug level, prefixing the invocation fields bound to
// ctx, if any.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	active().Debug(msg, withInvocationFields(ctx, args)...)
}

// InfoCtx logs at info level with invocation fields from ctx.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	active().Info(msg, withInvocationFields(ctx, args)...)
}

// WarnCtx logs at warn level with invocation fields from ctx.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	active().Warn(msg, withInvocationFields(ctx, args)...)
}

// ErrorCtx logs at error level with invocation fields from ctx.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	active().Error(msg, withInvocationFields(ctx, args)...)
}

func withInvocationFields(ctx context.Context, args []any) []any {
	ic := FromContext(ctx)
	if ic == nil {
		return args
	}
	fields := make([]any, 0, 6+len(args))
	if ic.InvocationID != "" {
		fields = append(fields, KeyInvocationID, ic.InvocationID)
	}
	if ic.CommandPath != "" {
		fields = append(fields, KeyCommandPath, ic.CommandPath)
	}
	if ic.State != "" {
		fields = append(fields, KeyState, ic.State)
	}
	return append(fields, args...)
}

// With returns a child logger with pre-bound attributes.
func With(args ...any) *slog.Logger { return active().With(args...) }

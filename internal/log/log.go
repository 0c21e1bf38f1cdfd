// Package log provides category-scoped structured logging on top of slog.
// Call Init once at startup; until then messages go to stderr at info level.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Category groups related log messages.
type Category string

const (
	CatHTTP     Category = "http"     // Request handling and access log
	CatLedger   Category = "ledger"   // Seat reservation and release
	CatWorkflow Category = "workflow" // Registration state machine
	CatDB       Category = "db"       // Store adapters and migrations
	CatNotify   Category = "notify"   // Lifecycle message publishing
	CatConfig   Category = "config"   // Configuration loading
	CatCache    Category = "cache"    // Idempotency cache
)

// Config selects the handler and minimum level.
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// Init replaces the global logger.
func Init(cfg Config, w io.Writer) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	current.Store(slog.New(h))
	return nil
}

// ParseLevel maps a level name onto slog levels. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger returns the global logger.
func Logger() *slog.Logger {
	return current.Load()
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	emit(context.Background(), slog.LevelDebug, cat, msg, fields)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	emit(context.Background(), slog.LevelInfo, cat, msg, fields)
}

// Warn logs at warn level.
func Warn(cat Category, msg string, fields ...any) {
	emit(context.Background(), slog.LevelWarn, cat, msg, fields)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	emit(context.Background(), slog.LevelError, cat, msg, fields)
}

// ErrorContext logs at error level with the request context attached.
func ErrorContext(ctx context.Context, cat Category, msg string, fields ...any) {
	emit(ctx, slog.LevelError, cat, msg, fields)
}

// ErrorErr logs an error with its message under the "error" key.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	emit(context.Background(), slog.LevelError, cat, msg, append(fields, "error", err))
}

func emit(ctx context.Context, level slog.Level, cat Category, msg string, fields []any) {
	l := current.Load()
	if !l.Enabled(ctx, level) {
		return
	}
	l.Log(ctx, level, msg, append([]any{"cat", string(cat)}, fields...)...)
}

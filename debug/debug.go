// Package debug owns the process-wide logger used by roomsync components.
//
// Debug output is off by default and is switched on with ROOMSYNC_DEBUG=1
// or Enable.
package debug

import (
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"
)

var (
	level  = new(slog.LevelVar)
	logger atomic.Pointer[slog.Logger]
)

func init() {
	logger.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	level.Set(slog.LevelInfo)
	debugEnv, exists := os.LookupEnv("ROOMSYNC_DEBUG")
	if exists {
		if val, err := strconv.ParseBool(debugEnv); err == nil && val {
			level.Set(slog.LevelDebug)
		}
	}
}

// Logger returns the shared logger.
func Logger() *slog.Logger {
	return logger.Load()
}

// Component returns the shared logger tagged with a component name.
func Component(name string) *slog.Logger {
	return logger.Load().With("component", name)
}

// SetOutput replaces the handler behind Logger while keeping the level switch.
// Loggers derived before the call keep writing to the old handler.
func SetOutput(h func(opts *slog.HandlerOptions) slog.Handler) {
	logger.Store(slog.New(h(&slog.HandlerOptions{Level: level})))
}

func Enabled() bool {
	return level.Level() <= slog.LevelDebug
}

func Enable() {
	level.Set(slog.LevelDebug)
}

func Disable() {
	level.Set(slog.LevelInfo)
}

// Package corelog wraps log/slog with the level parsing and default-logger
// conventions the rest of the core relies on. It intentionally stays thin:
// the core never needs structured sinks beyond what slog already offers.
package corelog

import (
	"log/slog"
	"os"
	"strings"
)

// ParseLevel converts a string log level to slog.Level. Unrecognized
// strings fall back to LevelWarn rather than erroring, since log level is
// rarely worth failing startup over.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// New builds a text-handler slog.Logger at the given level, writing to
// os.Stderr. component is attached as a constant "component" attribute so
// dispatcher/aggregator/broker/solver logs can be told apart at a glance.
func New(component string, level slog.Level) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("component", component)
}

// Noop returns a logger that discards everything. Components default to
// this when no logger is configured, mirroring the tracer/metrics no-op
// discipline elsewhere in the core.
func Noop() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

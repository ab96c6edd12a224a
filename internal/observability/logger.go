// Package observability wires the engine's ambient stack — structured
// logging, Prometheus metrics, OpenTelemetry tracing, and Sentry error
// reporting — the same libraries the teacher wires in cmd/worker/main.go
// and internal/tracing, carried regardless of which engine features a
// deployment turns on (SPEC_FULL.md §2.1).
package observability

import (
	"log/slog"
	"os"

	"github.com/nodeflow/engine/internal/config"
)

// NewLogger builds the process-wide slog logger, JSON-formatted by
// default the way cmd/worker/main.go configures its own, with the level
// driven by ObservabilityConfig.LogLevel.
func NewLogger(cfg config.ObservabilityConfig) *slog.Logger {
	level := parseLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogJSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

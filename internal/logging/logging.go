// Package logging configures structured logging using slog.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logging configuration.
type Config struct {
	Format string `json:"format" yaml:"format"` // "json" | "text"
	Level  string `json:"level" yaml:"level"`   // "debug" | "info" | "warn" | "error"
}

// Setup installs the default slog logger writing to stderr.
func Setup(cfg Config) *slog.Logger {
	return SetupWriter(os.Stderr, cfg)
}

// SetupWriter installs the default slog logger writing to w.
func SetupWriter(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel converts a string level to slog.Level. Unknown values map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Component returns a logger with a component name.
func Component(name string) *slog.Logger {
	return slog.With("component", name)
}

// TaskLogger returns a logger scoped to one (date, chunk) task.
func TaskLogger(base *slog.Logger, date string, chunk int) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With("date", date, "chunk", chunk)
}

// Package logging provides structured logging with per-subsystem levels.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const loggerKey contextKey = "logger"

// Subsystem names for per-subsystem logging configuration.
const (
	SubsystemImages     = "IMAGES"
	SubsystemContainers = "CONTAINERS"
	SubsystemNetwork    = "NETWORK"
	SubsystemCgroups    = "CGROUPS"
	SubsystemRuntime    = "RUNTIME"
	SubsystemCLI        = "CLI"
)

// Config holds logging configuration.
type Config struct {
	// DefaultLevel is the default log level for all subsystems.
	DefaultLevel slog.Level
	// SubsystemLevels maps subsystem names to their specific log levels.
	// If a subsystem is not in this map, DefaultLevel is used.
	SubsystemLevels map[string]slog.Level
}

// NewConfig builds a Config from environment variables.
// Reads LOG_LEVEL for the default level and LOG_LEVEL_<SUBSYSTEM> for
// per-subsystem overrides.
func NewConfig() Config {
	cfg := Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
	}

	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		cfg.DefaultLevel = parseLevel(levelStr)
	}

	subsystems := []string{
		SubsystemImages, SubsystemContainers, SubsystemNetwork,
		SubsystemCgroups, SubsystemRuntime, SubsystemCLI,
	}
	for _, subsystem := range subsystems {
		if levelStr := os.Getenv("LOG_LEVEL_" + subsystem); levelStr != "" {
			cfg.SubsystemLevels[subsystem] = parseLevel(levelStr)
		}
	}

	return cfg
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFor returns the configured level for the given subsystem.
func (c Config) LevelFor(subsystem string) slog.Level {
	if level, ok := c.SubsystemLevels[subsystem]; ok {
		return level
	}
	return c.DefaultLevel
}

// NewSubsystemLogger creates a slog.Logger scoped to a subsystem, writing
// JSON to stderr (stdout is reserved for the contained process and command
// output) at the subsystem's configured level.
func NewSubsystemLogger(subsystem string, cfg Config) *slog.Logger {
	level := cfg.LevelFor(subsystem)
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("subsystem", subsystem)
}

// AddToContext returns a context carrying the given logger.
func AddToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger stashed in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

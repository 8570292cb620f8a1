// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key, TTL)
//   - Per-page fetch details (cursor, batch size)
//   - Quota observations per credential
//
// Info: Normal operation events
//   - Page collected (running total vs target)
//   - Credential rotations
//   - Pause/resume around quota resets
//   - Export results (rows written, rows published)
//
// Warn: Warning conditions that don't prevent operation
//   - Rate limit hit on a credential
//   - Transient errors being retried
//   - Cache errors (fallback to direct fetch)
//   - Target above the search API result cap
//
// Error: Error conditions requiring attention
//   - Run failed (retries exhausted, no usable credential, deadline)
//   - Credential revoked (authentication failure)
//   - Export sink failures
//
// Context Fields:
//   - credential: masked token identifier (never the token itself)
//   - cursor: pagination cursor in use
//   - collected: records collected so far
//   - target: configured collection target
//   - remaining: rate-limit budget remaining on the active credential
//   - reset_at: rate-limit reset time
//   - state: engine state (fetching, advancing, rotating, paused, done, failed)
//   - error_class: error classification (auth, rate_limit, transient, client)
//   - cache_hit: boolean indicating a page served from cache

// Package logging configures the zerolog logger shared by the gallery
// client, the pagination controller and the commands.
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

	// LevelDisabled silences all output. The terminal browser uses it
	// unless a log file is given, since log lines would corrupt the screen.
	LevelDisabled LogLevel = "disabled"
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
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
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
	case "disabled", "off", "none":
		return zerolog.Disabled
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
// Debug: request flow and internal state
//   - Cache hit/miss, conditional requests, ETags
//   - Lookup strategy steps (direct info lookup, page scan)
//   - Pagination transitions and joined in-flight loads
//   - Scroll trigger decisions
//
// Info: lifecycle events
//   - Pages applied to a gallery, gallery exhausted
//   - Gallery sessions created and closed
//   - Server startup/shutdown
//
// Warn: degraded but working
//   - Retry attempts, rate limit cooldowns
//   - Cache errors (request goes to the service directly)
//   - Failed page loads that leave the gallery retryable
//
// Error: failures that need attention
//   - Requests failed after all retries
//   - Configuration errors
//
// Context Fields:
//   - component: picsum-client, pagination, scroll, cache, ratelimit, gallery-server
//   - endpoint: service path
//   - page, page_size: pagination coordinates
//   - photo_id: single-photo lookups
//   - status: HTTP status code
//   - error_class: client, server, rate_limit, network
//   - gallery_id: HTTP gallery session

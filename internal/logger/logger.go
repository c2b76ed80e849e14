// Package logger provides a configured zerolog logger.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a new zerolog.Logger configured for the application.
// Logs go to stderr so CLI JSON output on stdout stays machine-readable.
func New(serviceName string) zerolog.Logger {
	return zerolog.New(os.Stderr).With().
		Str("service", serviceName).
		Timestamp().
		Logger().
		Level(levelFromEnv())
}

// levelFromEnv reads DAYBOOK_LOG_LEVEL (debug|info|warn|error); default info.
func levelFromEnv() zerolog.Level {
	switch strings.ToLower(os.Getenv("DAYBOOK_LOG_LEVEL")) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

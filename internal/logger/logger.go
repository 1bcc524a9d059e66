// Package logger provides a thin wrapper around zerolog.Logger used across
// passkeep. Embedding zerolog.Logger exposes the full zerolog API while
// letting the application add constructors without modifying the upstream
// type.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is a thin wrapper around zerolog.Logger.
type Logger struct {
	zerolog.Logger
}

// New constructs a JSON logger writing to w with a "role" field
// (e.g. "session", "cli") and a timestamp on every entry.
func New(w io.Writer, role string) *Logger {
	if w == nil {
		w = os.Stderr
	}
	l := zerolog.New(w).With().
		Str("role", role).
		Timestamp().
		Logger()
	return &Logger{l}
}

// Nop returns a *Logger that discards all output. Intended for tests and
// for library callers that do not configure logging.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// SetLevel applies a named level ("debug", "info", "warn", "error") to the
// logger, defaulting to info for unknown names.
func (l *Logger) SetLevel(name string) *Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(name) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}
	return &Logger{l.Level(level)}
}

// Package logging builds the zerolog loggers used by the CLI, web UI and MCP server.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hpungsan/juris/internal/config"
)

// New creates a logger writing to w at the configured level.
// Console format is the default; "json" emits one JSON object per line.
func New(w io.Writer, level, format string) zerolog.Logger {
	var out io.Writer = w
	if !strings.EqualFold(format, "json") {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(out).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Logger()
}

// FromConfig creates a stderr logger from cfg. Stdout is left alone because
// the CLI prints JSON results there and MCP uses it as the protocol stream.
func FromConfig(cfg *config.Config) zerolog.Logger {
	if cfg == nil {
		return New(os.Stderr, "info", "")
	}
	return New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Nop returns a disabled logger for tests and library callers that do not log.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

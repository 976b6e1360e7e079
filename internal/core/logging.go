package core

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// NewLogger builds the root logger from config. Components derive their own
// loggers with .With().Str("component", …). Logs always go to stderr so
// stdout stays clean for scriptable output.
func NewLogger(cfg LoggingConfig) zerolog.Logger {
	var w io.Writer = os.Stderr
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.WarnLevel
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

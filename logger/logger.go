package logger

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger with caller info in development and a JSON logger otherwise.
// An unknown level falls back to info.
func New(env, level string, out io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			Level(lvl).
			With().
			Timestamp().
			Caller().
			Logger()
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

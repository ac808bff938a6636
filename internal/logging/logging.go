// Package logging builds the zerolog loggers shared by the toolkit and its command line tool.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a JSON logger writing to w at the given level, with timestamps.
func New(writer io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// NewConsole returns a human readable logger on stderr. verbose enables
// debug output.
func NewConsole(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return New(consoleWriter, level)
}

// Component returns a child logger tagged with a component field.
func Component(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

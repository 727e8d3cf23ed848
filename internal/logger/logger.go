// Package logger builds the engine's slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level  slog.Level
	writer io.Writer
}

// Option configures a logger created with New.
type Option func(*config)

// WithDebug sets the log level to Debug when true, Info otherwise.
func WithDebug(debug bool) Option {
	return func(c *config) {
		if debug {
			c.level = slog.LevelDebug
		} else {
			c.level = slog.LevelInfo
		}
	}
}

// WithWriter overrides the output writer. Defaults to os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writer = w
	}
}

// New returns a slog.Logger backed by a charmbracelet/log handler for
// human-friendly CLI output.
func New(opts ...Option) *slog.Logger {
	c := config{level: slog.LevelInfo, writer: os.Stderr}
	for _, opt := range opts {
		opt(&c)
	}

	h := charmlog.NewWithOptions(c.writer, charmlog.Options{
		ReportTimestamp: true,
	})
	if c.level == slog.LevelDebug {
		h.SetLevel(charmlog.DebugLevel)
	}
	return slog.New(h)
}

// Nop returns a logger that discards everything. Used by tests and by
// library callers that don't want engine logs.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

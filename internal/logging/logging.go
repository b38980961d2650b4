// Package logging builds the service *slog.Logger: a console handler (tint
// for humans, JSON for machines) optionally fanned out to Fluent Bit.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// TimeFormat is the console timestamp layout.
const TimeFormat = "2006-01-02 15:04:05"

type Options struct {
	Level  string
	Format string // text or json
	Writer io.Writer
	Fluent FluentOptions
}

type FluentOptions struct {
	Enabled   bool
	Host      string
	Port      int
	TagPrefix string
}

// New returns the logger described by opts and a close function that
// flushes remote sinks. The close function is never nil.
func New(opts Options) (*slog.Logger, func() error, error) {
	level := ParseLevel(opts.Level)
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	console := NewConsoleHandler(w, opts.Format, level)
	if !opts.Fluent.Enabled {
		return slog.New(console), func() error { return nil }, nil
	}

	client, err := NewFluentClient(opts.Fluent)
	if err != nil {
		return nil, nil, err
	}
	h := Fanout(console, NewFluentHandler(client, level))
	return slog.New(h), client.Close, nil
}

// NewConsoleHandler returns a JSON handler for format "json" and a tint
// handler otherwise.
func NewConsoleHandler(w io.Writer, format string, level slog.Leveler) slog.Handler {
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: TimeFormat,
	})
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else
// is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

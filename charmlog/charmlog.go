// Package charmlog adapts github.com/charmbracelet/log to the
// bouncer.Logger interface.
//
// charmbracelet/log takes key-value pairs like slog but has no *Context
// method variants, so a thin adapter bridges the two. The request context is
// dropped; charm loggers carry their own fields via With.
package charmlog

import (
	"context"

	charm "github.com/charmbracelet/log"
	"github.com/ipsentry/bouncer"
)

// Logger wraps a charm logger as a bouncer.Logger.
type Logger struct {
	l *charm.Logger
}

// New wraps logger for use with bouncer.WithLogger. A nil logger falls back
// to the charm default.
func New(logger *charm.Logger) Logger {
	if logger == nil {
		logger = charm.Default()
	}
	return Logger{l: logger}
}

// WithLogger returns a bouncer option installing a charm-backed logger.
func WithLogger(logger *charm.Logger) bouncer.Option {
	return bouncer.WithLogger(New(logger))
}

func (a Logger) DebugContext(_ context.Context, msg string, args ...any) {
	a.l.Debug(msg, args...)
}

func (a Logger) InfoContext(_ context.Context, msg string, args ...any) {
	a.l.Info(msg, args...)
}

func (a Logger) WarnContext(_ context.Context, msg string, args ...any) {
	a.l.Warn(msg, args...)
}

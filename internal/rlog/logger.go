// Package rlog adapts github.com/datawire/dlib/dlog's context-scoped
// structured logging to the minimal Logln/Logf logger shape the rest of
// this module's call sites use, so a caller threading a context through a
// provider or the constraint builder doesn't need to import dlog directly.
package rlog

import (
	"context"

	"github.com/datawire/dlib/dlog"
)

// Logger logs against the context it was built from. It carries no state
// of its own; every call is a thin pass-through to dlog so log level,
// formatting, and output destination stay centrally configured by
// whatever attached a logger to ctx in the first place.
type Logger struct {
	ctx context.Context
}

// New returns a Logger bound to ctx.
func New(ctx context.Context) *Logger {
	return &Logger{ctx: ctx}
}

// Logln logs args at info level, space-separated, as with fmt.Sprintln.
func (l *Logger) Logln(args ...interface{}) {
	dlog.Info(l.ctx, args...)
}

// Logf logs a formatted message at info level.
func (l *Logger) Logf(format string, args ...interface{}) {
	dlog.Infof(l.ctx, format, args...)
}

// Debugf logs a formatted message at debug level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	dlog.Debugf(l.ctx, format, args...)
}

// Errorf logs a formatted message at error level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	dlog.Errorf(l.ctx, format, args...)
}

// WithField returns a context carrying an additional structured field for
// every subsequent log call made against it, e.g. WithField(ctx,
// "package", name).
func WithField(ctx context.Context, key string, value interface{}) context.Context {
	return dlog.WithField(ctx, key, value)
}

// Package logging wraps github.com/rs/zerolog with the context-carried
// correlation fields every loop and command handler logs through.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

type ctxKey int

const engineIDKey ctxKey = iota

// New builds the base logger. It writes a pretty console format when out
// is a terminal, and compact JSON otherwise.
func New(out *os.File, level zerolog.Level) zerolog.Logger {
	var w io.Writer = out
	if isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd()) {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// ContextWithEngineID attaches an engine instance id that WithContext will
// append to every log line derived from ctx.
func ContextWithEngineID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, engineIDKey, id)
}

// EngineIDFromContext retrieves the id set by ContextWithEngineID, if any.
func EngineIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(engineIDKey).(string)
	return id, ok
}

// WithContext enriches logger with any correlation fields found on ctx.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	l := logger.With()
	if id, ok := EngineIDFromContext(ctx); ok {
		l = l.Str("engine_id", id)
	}
	return l.Logger()
}

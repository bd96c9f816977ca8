package util

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey int

const ctxKeyLogger contextKey = iota

// WithLogger attaches a request/operation scoped logger to the context.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, &l)
}

// LogFromContext returns the logger attached to the context, falling back to
// the process-wide logger when none is set.
func LogFromContext(ctx context.Context) *zerolog.Logger {
	if l, ok := ctx.Value(ctxKeyLogger).(*zerolog.Logger); ok && l != nil {
		return l
	}

	return &log.Logger
}

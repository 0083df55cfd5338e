package logger

import (
	"context"

	"go.uber.org/zap"
)

// ctxKey is unexported so only this package can place loggers in a context.
type ctxKey struct{}

// ContextWithLogger returns a child context carrying logger.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request-scoped logger placed by the HTTP
// middleware, or a no-op logger when the context carries none.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

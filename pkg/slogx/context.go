package slogx

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// WithOperation tags the contextual logger with a lifecycle operation name
// and its correlation id.
func WithOperation(ctx context.Context, op, opID string) context.Context {
	l := FromContext(ctx)
	return WithContext(ctx, l.With("op", op, "op_id", opID))
}

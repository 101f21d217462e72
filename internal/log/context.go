package log

import "context"

type ctxKey struct{}

// WithContext returns a copy of ctx carrying l.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request-scoped Logger, or Nop when none is attached.
func FromContext(ctx context.Context) Logger {
	return FromContextOr(ctx, Nop())
}

// FromContextOr returns the Logger stored in ctx, or fallback.
func FromContextOr(ctx context.Context, fallback Logger) Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(Logger); ok && l != nil {
			return l
		}
	}
	if fallback == nil {
		return Nop()
	}
	return fallback
}

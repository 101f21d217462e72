// Package reqid carries the per-request correlation id on a context.
package reqid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the correlation header honored on requests and echoed on responses.
const Header = "X-Request-Id"

type ctxKey struct{}

// WithID returns a copy of ctx carrying id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the request id, or "" when none is attached.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// New returns a random (v4) UUID string.
func New() string { return uuid.NewString() }

package health

import (
	"context"
	"sync/atomic"

	"github.com/keithlinneman/pasaeventos-api/internal/xerrors"
)

// Check gates the ops liveness/readiness endpoints.
// nil = pass, non-nil = fail with reason.
type Check interface{ Check(context.Context) error }

// CheckFunc adapts a function into a Check.
type CheckFunc func(context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Fixed always passes, or always fails with reason.
func Fixed(ok bool, reason string) CheckFunc {
	if ok {
		return func(context.Context) error { return nil }
	}
	if reason == "" {
		reason = "unhealthy"
	}
	return func(context.Context) error { return xerrors.New(reason) }
}

// All passes only if every non-nil check passes; returns the first error.
func All(cs ...Check) CheckFunc {
	return func(ctx context.Context) error {
		for _, c := range cs {
			if c == nil {
				continue
			}
			if err := c.Check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// ShutdownGate flips readiness to false during drain/shutdown.
type ShutdownGate struct {
	draining atomic.Bool
	reason   atomic.Value
}

func (g *ShutdownGate) Set(reason string) {
	g.draining.Store(true)
	g.reason.Store(reason)
}

func (g *ShutdownGate) Clear() {
	g.draining.Store(false)
	g.reason.Store("")
}

func (g *ShutdownGate) Check() CheckFunc {
	return func(context.Context) error {
		if !g.draining.Load() {
			return nil
		}
		r, _ := g.reason.Load().(string)
		if r == "" {
			r = "draining"
		}
		return xerrors.New(r)
	}
}

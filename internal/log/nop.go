package log

import "context"

// nopLogger discards everything; used as the context fallback and in tests.
type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any)        {}
func (nopLogger) Info(context.Context, string, ...any)         {}
func (nopLogger) Warn(context.Context, string, ...any)         {}
func (nopLogger) Error(context.Context, error, string, ...any) {}
func (nopLogger) Sync() error                                  { return nil }
func (n nopLogger) With(...any) Logger                         { return n }

// Nop returns a no-op Logger.
func Nop() Logger { return nopLogger{} }

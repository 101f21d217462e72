package xerrors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

type withStack struct {
	err error
	pcs []uintptr
}

func (w *withStack) Error() string       { return w.err.Error() }
func (w *withStack) Unwrap() error       { return w.err }
func (w *withStack) StackPCs() []uintptr { return w.pcs }
func (w *withStack) IsXerrorsWrapper()   {}

// stackCarrier is implemented by any error that captured program counters.
type stackCarrier interface{ StackPCs() []uintptr }

const maxDepth = 64

// Callers captures the current goroutine's program counters, skipping
// skip frames above the caller of Callers.
func Callers(skip int) []uintptr {
	pcs := make([]uintptr, maxDepth)
	// value of 2 means skip runtime.Callers + Callers
	n := runtime.Callers(2+skip, pcs)
	return pcs[:n]
}

func withStackSkip(err error, skip int) error {
	if err == nil {
		return nil
	}
	return &withStack{err: err, pcs: Callers(skip)}
}

func WithStack(err error) error { return withStackSkip(err, 2) }

// EnsureTrace attaches a stack unless one is already somewhere in the chain.
func EnsureTrace(err error) error {
	if err == nil {
		return nil
	}
	if len(StackPCs(err)) > 0 {
		return err
	}
	return withStackSkip(err, 2)
}

// StackPCs returns the first captured stack found in err's chain, or nil.
func StackPCs(err error) []uintptr {
	var sc stackCarrier
	if errors.As(err, &sc) && sc != nil {
		return sc.StackPCs()
	}
	return nil
}

// FormatStack renders program counters as "func\n\tfile:line" pairs,
// stopping at the first runtime frame.
func FormatStack(pcs []uintptr) string {
	if len(pcs) == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs)
	var b strings.Builder
	for {
		fr, more := frames.Next()
		if strings.HasPrefix(fr.Function, "runtime.") {
			break
		}
		if fr.Function != "" {
			fmt.Fprintf(&b, "%s\n\t%s:%d\n", fr.Function, fr.File, fr.Line)
		}
		if !more {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

// Stack renders the first captured stack in err's chain, "" when none.
func Stack(err error) string { return FormatStack(StackPCs(err)) }

type wrap struct {
	err error
	msg string
	pc  uintptr
}

func (w *wrap) Error() string     { return w.msg + ": " + w.err.Error() }
func (w *wrap) Unwrap() error     { return w.err }
func (w *wrap) PC() uintptr       { return w.pc }
func (w *wrap) IsXerrorsWrapper() {}

func callerPC(skip int) uintptr {
	var pcs [1]uintptr
	// value of 2 means skip runtime.Callers + callerPC
	if n := runtime.Callers(2+skip, pcs[:]); n == 0 {
		return 0
	}
	return pcs[0]
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrap{err: err, msg: msg, pc: callerPC(1)}
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrap{err: err, msg: fmt.Sprintf(format, args...), pc: callerPC(1)}
}

func New(msg string) error             { return withStackSkip(errors.New(msg), 2) }
func Newf(f string, args ...any) error { return withStackSkip(fmt.Errorf(f, args...), 2) }

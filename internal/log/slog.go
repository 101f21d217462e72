package log

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/pasaeventos-api/internal/xerrors"
)

type slogLogger struct {
	h                 slog.Handler
	attrs             []slog.Attr
	includeErrorLinks bool
	maxErrorLinks     int
}

type hasPC interface {
	PC() uintptr
}

func newSlog(opts Options) (Logger, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	if opts.StacktraceLevel == 0 {
		opts.StacktraceLevel = slog.LevelError
	}
	if opts.MaxErrorLinks <= 0 {
		opts.MaxErrorLinks = 8
	}

	ho := &slog.HandlerOptions{Level: opts.Level, AddSource: true}
	var h slog.Handler
	if opts.JsonFormat {
		h = slog.NewJSONHandler(w, ho)
	} else {
		h = slog.NewTextHandler(w, ho)
	}
	h = otelHandler{next: h}
	h = stackHandler{next: h, level: opts.StacktraceLevel}

	base := []slog.Attr{slog.String("app", opts.App)}
	if opts.Version != "" {
		base = append(base, slog.String("version", opts.Version))
	}
	if opts.Environment != "" {
		base = append(base, slog.String("env", opts.Environment))
	}

	return &slogLogger{
		h:                 h,
		attrs:             base,
		includeErrorLinks: opts.IncludeErrorLinks,
		maxErrorLinks:     opts.MaxErrorLinks,
	}, nil
}

func (s *slogLogger) With(kv ...any) Logger {
	add := kvAttrs(kv)
	// copy-on-write so loggers are safe to share concurrently
	next := make([]slog.Attr, 0, len(s.attrs)+len(add))
	next = append(next, s.attrs...)
	next = append(next, add...)
	return &slogLogger{
		h:                 s.h,
		attrs:             next,
		includeErrorLinks: s.includeErrorLinks,
		maxErrorLinks:     s.maxErrorLinks,
	}
}

func (s *slogLogger) Debug(ctx context.Context, msg string, kv ...any) {
	s.emit(ctx, slog.LevelDebug, msg, kv)
}

func (s *slogLogger) Info(ctx context.Context, msg string, kv ...any) {
	s.emit(ctx, slog.LevelInfo, msg, kv)
}

func (s *slogLogger) Warn(ctx context.Context, msg string, kv ...any) {
	s.emit(ctx, slog.LevelWarn, msg, kv)
}

func (s *slogLogger) Error(ctx context.Context, err error, msg string, kv ...any) {
	if err != nil {
		surface, root := classifyTypes(err)
		kv = append(kv,
			"err", err,
			"error_type", surface,
			"cause_type", root,
		)
		if chain := errorChain(err); len(chain) > 1 {
			kv = append(kv, "error_chain", chain)
		}
		if s.includeErrorLinks {
			kv = append(kv, "error_links", chainLinks(err, s.maxErrorLinks))
		}
	}
	s.emit(ctx, slog.LevelError, msg, kv)
}

func (s *slogLogger) Sync() error { return nil }

func kvAttrs(kv []any) []slog.Attr {
	out := make([]slog.Attr, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			out = append(out, slog.Any(k, kv[i+1]))
		}
	}
	return out
}

func (s *slogLogger) emit(ctx context.Context, lvl slog.Level, msg string, kv []any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.h.Enabled(ctx, lvl) {
		return
	}
	// skip runtime.Callers, emit, and the exported level method
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])

	r := slog.NewRecord(time.Now(), lvl, msg, pcs[0])
	r.AddAttrs(s.attrs...)
	r.AddAttrs(kvAttrs(kv)...)
	_ = s.h.Handle(ctx, r)
}

// otelHandler adds trace_id/span_id when the context carries a valid span.
type otelHandler struct{ next slog.Handler }

func (h otelHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h otelHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, r)
}

func (h otelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return otelHandler{next: h.next.WithAttrs(attrs)}
}

func (h otelHandler) WithGroup(name string) slog.Handler {
	return otelHandler{next: h.next.WithGroup(name)}
}

// stackHandler attaches a stack at or above level: the one captured on the
// "err" attr when present, otherwise the logging call site's.
type stackHandler struct {
	next  slog.Handler
	level slog.Level
}

func (h stackHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.next.Enabled(ctx, lvl)
}

func (h stackHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level {
		var stack string
		r.Attrs(func(a slog.Attr) bool {
			if a.Key != "err" {
				return true
			}
			if err, ok := a.Value.Any().(error); ok {
				stack = xerrors.Stack(err)
			}
			return false
		})
		if stack == "" {
			stack = callSiteStack()
		}
		r.AddAttrs(slog.String("stack", stack))
	}
	return h.next.Handle(ctx, r)
}

func (h stackHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return stackHandler{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h stackHandler) WithGroup(name string) slog.Handler {
	return stackHandler{next: h.next.WithGroup(name), level: h.level}
}

// callSiteStack renders the current stack minus slog and this package.
func callSiteStack() string {
	frames := runtime.CallersFrames(xerrors.Callers(1))
	var b strings.Builder
	for {
		fr, more := frames.Next()
		if strings.HasPrefix(fr.Function, "runtime.") {
			break
		}
		if b.Len() > 0 || !isLogFrame(fr.Function) {
			fmt.Fprintf(&b, "%s\n\t%s:%d\n", fr.Function, fr.File, fr.Line)
		}
		if !more {
			break
		}
	}
	return strings.TrimSpace(b.String())
}

func isLogFrame(fn string) bool {
	return strings.HasPrefix(fn, "log/slog.") ||
		strings.Contains(fn, "/internal/log.") ||
		strings.Contains(fn, "/internal/xerrors.")
}

func errorChain(err error) []string {
	out := make([]string, 0, 8)
	var prev string
	for e := err; e != nil; e = errors.Unwrap(e) {
		if msg := e.Error(); msg != prev {
			out = append(out, msg)
			prev = msg
		}
	}
	// errors.Join(...)
	if m, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range m.Unwrap() {
			if s := e.Error(); s != prev {
				out = append(out, s)
				prev = s
			}
		}
	}
	return out
}

func chainLinks(err error, max int) []map[string]any {
	links := make([]map[string]any, 0, 8)
	depth := 0
	for e := err; e != nil && (max <= 0 || depth < max); e = errors.Unwrap(e) {
		link := map[string]any{"msg": e.Error()}
		havePos := false
		if hp, ok := e.(hasPC); ok && hp.PC() != 0 {
			fr, _ := runtime.CallersFrames([]uintptr{hp.PC()}).Next()
			link["func"], link["file"], link["line"] = fr.Function, fr.File, fr.Line
			havePos = true
		} else if pcs := xerrors.StackPCs(e); len(pcs) > 0 {
			if fn, file, line, ok := firstExtFrame(pcs); ok {
				link["func"], link["file"], link["line"] = fn, file, line
				havePos = true
			}
		}
		if depth == 0 || havePos {
			links = append(links, link)
		}
		depth++
	}
	return links
}

func firstExtFrame(pcs []uintptr) (fn, file string, line int, ok bool) {
	frames := runtime.CallersFrames(pcs)
	for {
		fr, more := frames.Next()
		if !strings.HasPrefix(fr.Function, "runtime.") && !isLogFrame(fr.Function) {
			return fr.Function, fr.File, fr.Line, true
		}
		if !more {
			return "", "", 0, false
		}
	}
}

// classifyTypes reports the first non-wrapper type in the chain and the root cause type.
func classifyTypes(err error) (surface, root string) {
	if err == nil {
		return "", ""
	}
	var last error
	for e := err; e != nil; e = errors.Unwrap(e) {
		last = e
		if surface != "" {
			continue
		}
		t := reflect.TypeOf(e)
		u := t
		for u.Kind() == reflect.Ptr {
			u = u.Elem()
		}
		if strings.Contains(u.PkgPath(), "/internal/xerrors") {
			continue
		}
		if u.PkgPath() == "fmt" && u.Name() == "wrapError" {
			continue
		}
		surface = t.String()
	}
	if surface == "" {
		surface = fmt.Sprintf("%T", err)
	}
	return surface, fmt.Sprintf("%T", last)
}

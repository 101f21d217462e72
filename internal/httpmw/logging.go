package httpmw

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/pasaeventos-api/internal/log"
	"github.com/keithlinneman/pasaeventos-api/internal/reqid"
)

// responseWriter records status and size, and times the response write in
// a child span once the first byte goes out.
type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64

	ctx      context.Context
	reqStart time.Time

	writeSpan    trace.Span
	writeStarted bool
	firstWriteAt time.Duration
	writeBlocked time.Duration
	writeErr     error
}

func (rw *responseWriter) startWrite() {
	if rw.writeStarted {
		return
	}
	rw.writeStarted = true
	rw.firstWriteAt = time.Since(rw.reqStart)

	if !trace.SpanFromContext(rw.ctx).IsRecording() {
		return
	}
	_, rw.writeSpan = otel.Tracer("pasaeventos/httpmw").Start(rw.ctx, "response.write",
		trace.WithAttributes(attribute.Float64("http.server.ttfb_seconds", rw.firstWriteAt.Seconds())),
	)
}

func (rw *responseWriter) endWrite() {
	if rw.writeSpan == nil {
		return
	}
	rw.writeSpan.SetAttributes(
		attribute.Int("http.response.status_code", rw.statusCode()),
		attribute.Int64("http.response.body.size", rw.bytes),
		attribute.Float64("http.server.write.block_seconds", rw.writeBlocked.Seconds()),
	)
	if rw.writeErr != nil {
		rw.writeSpan.RecordError(rw.writeErr)
		rw.writeSpan.SetStatus(codes.Error, rw.writeErr.Error())
	}
	rw.writeSpan.End()
}

func (rw *responseWriter) statusCode() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.startWrite()
	if rw.status == 0 {
		rw.status = code
	}
	start := time.Now()
	rw.ResponseWriter.WriteHeader(code)
	rw.writeBlocked += time.Since(start)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.startWrite()
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	start := time.Now()
	n, err := rw.ResponseWriter.Write(b)
	rw.writeBlocked += time.Since(start)
	rw.bytes += int64(n)
	if err != nil && rw.writeErr == nil {
		rw.writeErr = err
	}
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
	}
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// WithLogger attaches a request-scoped logger carrying caller and request
// attributes. The request id is left off: the error pipeline only logs it
// in production, and the access log adds it itself.
func WithLogger(base log.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			client := ClientIPFromContext(ctx)
			peer := r.RemoteAddr
			if host, _, err := net.SplitHostPort(peer); err == nil {
				peer = host
			}
			if client == "" {
				client = peer
			}
			scheme := schemeFromRequest(r)

			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(
					attribute.String("client.address", client),
					attribute.String("network.peer.address", peer),
					attribute.String("url.scheme", scheme),
				)
			}

			L := base.With(
				"client.address", client,
				"network.peer.address", peer,
				"server.address", r.Host,
				"http.request.method", r.Method,
				"url.path", r.URL.Path,
				"url.scheme", scheme,
			)
			next.ServeHTTP(w, r.WithContext(log.WithContext(ctx, L)))
		})
	}
}

// quietPaths are logged at debug: polled by load balancers and uptime checks.
var quietPaths = map[string]bool{"/health": true}

// AccessLog writes one line per request once the handler returns. It
// installs a chi route context so the matched pattern is visible here.
func AccessLog() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			if chi.RouteContext(r.Context()) == nil {
				r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, chi.NewRouteContext()))
			}

			var reqBodySize int64
			if r.ContentLength > 0 {
				reqBodySize = r.ContentLength
			}

			rw := &responseWriter{ResponseWriter: w, ctx: r.Context(), reqStart: start}
			next.ServeHTTP(rw, r)
			rw.endWrite()

			ctx := r.Context()
			L := log.FromContext(ctx)
			kv := []any{
				"request_id", reqid.FromContext(ctx),
				"http.response.status_code", rw.statusCode(),
				"http.server.request.duration", time.Since(start).Seconds(),
				"http.response.body.size", rw.bytes,
				"http.request.body.size", reqBodySize,
				"http.route", RoutePattern(r),
			}
			if quietPaths[r.URL.Path] {
				L.Debug(ctx, "http request", kv...)
				return
			}
			L.Info(ctx, "http request", kv...)
		})
	}
}

func schemeFromRequest(r *http.Request) string {
	// ClientIP strips X-Forwarded-Proto unless the peer is a trusted proxy
	if xf := r.Header.Get("X-Forwarded-Proto"); xf != "" {
		return strings.TrimSpace(strings.Split(xf, ",")[0])
	}
	if r.URL != nil && r.URL.Scheme != "" {
		return r.URL.Scheme
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// Scope tags the request logger and span with a handler name.
func Scope(handler string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = log.WithContext(ctx, log.FromContext(ctx).With("handler", handler))
			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(attribute.String("app.handler", handler))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

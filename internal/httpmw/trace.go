package httpmw

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/pasaeventos-api/internal/reqid"
)

// TraceResponseHeaders exposes the active trace and span ids on the
// response so callers can quote them alongside the request id.
func TraceResponseHeaders(traceHeader, spanHeader string) func(http.Handler) http.Handler {
	if traceHeader == "" {
		traceHeader = "X-Trace-Id"
	}
	if spanHeader == "" {
		spanHeader = "X-Span-Id"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sc := trace.SpanFromContext(r.Context()).SpanContext(); sc.IsValid() {
				w.Header().Set(traceHeader, sc.TraceID().String())
				w.Header().Set(spanHeader, sc.SpanID().String())
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AnnotateHTTPRoute names the server span after the matched chi pattern and
// tags it with the request id. Runs inside the router.
func AnnotateHTTPRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)

		ctx := r.Context()
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}
		route := RoutePattern(r)
		span.SetAttributes(attribute.String("http.route", route))
		if id := reqid.FromContext(ctx); id != "" {
			span.SetAttributes(attribute.String("request_id", id))
		}
		span.SetName(r.Method + " " + route)
	})
}

// RoutePattern returns the matched chi pattern, or the raw path when no
// route matched.
func RoutePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

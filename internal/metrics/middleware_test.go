package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/trace"
)

// statusWriter

func TestStatusWriter_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec}

	sw.WriteHeader(http.StatusNotFound)
	sw.WriteHeader(http.StatusOK)
	sw.Write([]byte("aaa"))
	sw.Write([]byte("bbbbb"))

	if sw.status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", sw.status)
	}
	if sw.n != 8 {
		t.Fatalf("bytes = %d, want 8", sw.n)
	}
}

func TestStatusWriter_WriteDefaultsTo200(t *testing.T) {
	sw := &statusWriter{ResponseWriter: httptest.NewRecorder()}
	sw.Write([]byte("hello"))
	if sw.status != http.StatusOK {
		t.Fatalf("status = %d, want 200", sw.status)
	}
}

// Middleware

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestMiddleware_UnmatchedRouteLabel(t *testing.T) {
	m := New()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	serve(h, http.MethodGet, "/some/raw/path")

	if got := testutil.ToFloat64(m.reqTotal.WithLabelValues("GET", "unmatched", "418")); got != 1 {
		t.Fatalf("requests{GET,unmatched,418} = %v, want 1", got)
	}
}

func TestMiddleware_NoWriteDefaultsTo200(t *testing.T) {
	m := New()
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	serve(h, http.MethodPost, "/")

	if got := testutil.ToFloat64(m.reqTotal.WithLabelValues("POST", "unmatched", "200")); got != 1 {
		t.Fatalf("requests{POST,unmatched,200} = %v, want 1", got)
	}
}

func TestMiddleware_ChiRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	serve(r, http.MethodGet, "/users/42")
	serve(r, http.MethodGet, "/users/43")

	if got := testutil.ToFloat64(m.reqTotal.WithLabelValues("GET", "/users/{id}", "200")); got != 2 {
		t.Fatalf("requests{/users/{id}} = %v, want 2", got)
	}
	if c := histogramCount(t, m.reg, "http_response_size_bytes", "/users/{id}"); c != 2 {
		t.Fatalf("response size samples = %d, want 2", c)
	}
}

func TestMiddleware_ErrorCounterOnlyFor5xx(t *testing.T) {
	m := New()
	status := http.StatusOK
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	for _, s := range []int{200, 404, 429, 500, 503} {
		status = s
		serve(h, http.MethodGet, "/")
	}

	if got := testutil.ToFloat64(m.errorsTotal.WithLabelValues("GET", "unmatched")); got != 2 {
		t.Fatalf("http_errors_total = %v, want 2", got)
	}
}

func TestMiddleware_InflightReturnsToZero(t *testing.T) {
	m := New()
	var during float64
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		during = testutil.ToFloat64(m.inflight)
	}))

	serve(h, http.MethodGet, "/")

	if during != 1 {
		t.Fatalf("inflight during request = %v, want 1", during)
	}
	if got := testutil.ToFloat64(m.inflight); got != 0 {
		t.Fatalf("inflight after = %v, want 0", got)
	}
}

func TestMiddleware_RecordsDuration(t *testing.T) {
	m := New()
	h := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	serve(h, http.MethodGet, "/")

	if c := histogramCount(t, m.reg, "http_request_duration_seconds", ""); c != 1 {
		t.Fatalf("duration samples = %d, want 1", c)
	}
}

func TestMiddleware_CreatesRouteContext(t *testing.T) {
	m := New()
	var hasRouteCtx bool
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasRouteCtx = chi.RouteContext(r.Context()) != nil
	}))

	serve(h, http.MethodGet, "/")

	if !hasRouteCtx {
		t.Fatal("middleware should inject chi route context when missing")
	}
}

// traceExemplar

func TestTraceExemplar(t *testing.T) {
	sampled := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{2},
		TraceFlags: trace.FlagsSampled,
	})
	unsampled := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1},
		SpanID:  trace.SpanID{2},
	})

	ex := traceExemplar(trace.ContextWithSpanContext(context.Background(), sampled))
	if ex["trace_id"] != sampled.TraceID().String() {
		t.Fatalf("exemplar = %v", ex)
	}
	if traceExemplar(trace.ContextWithSpanContext(context.Background(), unsampled)) != nil {
		t.Fatal("unsampled span should not produce an exemplar")
	}
	if traceExemplar(context.Background()) != nil {
		t.Fatal("no span should not produce an exemplar")
	}
}

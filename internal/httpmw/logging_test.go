package httpmw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/keithlinneman/pasaeventos-api/internal/log"
)

func TestWithLogger_AttachesRequestFields(t *testing.T) {
	spy := newSpyLogger()
	var ctxLogger log.Logger
	h := ClientIP(WithLogger(spy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger = log.FromContext(r.Context())
		ctxLogger.Info(r.Context(), "inside")
	})))

	req := httptest.NewRequest(http.MethodPost, "/events?secret=1", nil)
	req.RemoteAddr = "203.0.113.5:1234"
	h.ServeHTTP(httptest.NewRecorder(), req)

	e, ok := spy.find("inside")
	if !ok {
		t.Fatal("context logger not installed")
	}
	checks := map[string]any{
		"client.address":      "203.0.113.5",
		"http.request.method": http.MethodPost,
		"url.path":            "/events",
		"url.scheme":          "http",
	}
	for k, want := range checks {
		if got, _ := field(e.kv, k); got != want {
			t.Errorf("%s = %v, want %v", k, got, want)
		}
	}
	if _, ok := field(e.kv, "request_id"); ok {
		t.Error("request logger should not carry request_id")
	}
	if _, ok := field(e.kv, "url.query"); ok {
		t.Error("query string leaked into logs")
	}
}

func TestAccessLog_LineAndRoute(t *testing.T) {
	spy := newSpyLogger()
	r := chi.NewRouter()
	r.Get("/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("hello"))
	})
	h := RequestID("")(WithLogger(spy)(AccessLog()(r)))

	req := httptest.NewRequest(http.MethodGet, "/events/42", nil)
	req.Header.Set("X-Request-Id", "rid-7")
	h.ServeHTTP(httptest.NewRecorder(), req)

	e, ok := spy.find("http request")
	if !ok || e.level != "info" {
		t.Fatalf("access line = %+v, %v", e, ok)
	}
	checks := map[string]any{
		"request_id":                "rid-7",
		"http.response.status_code": http.StatusAccepted,
		"http.response.body.size":   int64(5),
		"http.route":                "/events/{id}",
	}
	for k, want := range checks {
		if got, _ := field(e.kv, k); got != want {
			t.Errorf("%s = %v (%T), want %v", k, got, got, want)
		}
	}
}

func TestAccessLog_HealthIsQuiet(t *testing.T) {
	spy := newSpyLogger()
	h := WithLogger(spy)(AccessLog()(okHandler()))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if e, _ := spy.find("http request"); e.level != "debug" {
		t.Fatalf("level = %q, want debug", e.level)
	}
}

func TestAccessLog_DefaultStatus(t *testing.T) {
	spy := newSpyLogger()
	h := WithLogger(spy)(AccessLog()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	e, _ := spy.find("http request")
	if got, _ := field(e.kv, "http.response.status_code"); got != http.StatusOK {
		t.Fatalf("status = %v", got)
	}
	if got, _ := field(e.kv, "http.route"); got != "/x" {
		t.Fatalf("route = %v, want raw path", got)
	}
}

func TestAccessLog_WriteSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	ctx, parent := tp.Tracer("test").Start(context.Background(), "request")

	h := AccessLog()(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	h.ServeHTTP(httptest.NewRecorder(), req)
	parent.End()

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	found := false
	for _, n := range names {
		if n == "response.write" {
			found = true
		}
	}
	if !found {
		t.Fatalf("spans = %v, want response.write", names)
	}
}

func TestScope(t *testing.T) {
	spy := newSpyLogger()
	h := WithLogger(spy)(Scope("health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).Info(r.Context(), "scoped")
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	e, _ := spy.find("scoped")
	if v, _ := field(e.kv, "handler"); v != "health" {
		t.Fatalf("handler = %v", v)
	}
}

func TestSchemeFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if schemeFromRequest(r) != "http" {
		t.Fatal("plain request should be http")
	}
	r.Header.Set("X-Forwarded-Proto", "https, http")
	if schemeFromRequest(r) != "https" {
		t.Fatal("first forwarded proto should win")
	}
}

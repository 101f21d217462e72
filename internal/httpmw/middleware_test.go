package httpmw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/keithlinneman/pasaeventos-api/internal/log"
)

// test helpers

type capturedLog struct {
	level string
	msg   string
	err   error
	kv    []any
}

// spyLogger records every call; With returns a child sharing the sink so
// request-scoped attributes are visible to assertions.
type spyLogger struct {
	sink *spySink
	with []any
}

type spySink struct {
	mu      sync.Mutex
	entries []capturedLog
}

func newSpyLogger() *spyLogger { return &spyLogger{sink: &spySink{}} }

func (s *spyLogger) record(level, msg string, err error, kv []any) {
	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()
	all := append(append([]any{}, s.with...), kv...)
	s.sink.entries = append(s.sink.entries, capturedLog{level: level, msg: msg, err: err, kv: all})
}

func (s *spyLogger) With(kv ...any) log.Logger {
	return &spyLogger{sink: s.sink, with: append(append([]any{}, s.with...), kv...)}
}
func (s *spyLogger) Debug(_ context.Context, msg string, kv ...any) { s.record("debug", msg, nil, kv) }
func (s *spyLogger) Info(_ context.Context, msg string, kv ...any)  { s.record("info", msg, nil, kv) }
func (s *spyLogger) Warn(_ context.Context, msg string, kv ...any)  { s.record("warn", msg, nil, kv) }
func (s *spyLogger) Error(_ context.Context, err error, msg string, kv ...any) {
	s.record("error", msg, err, kv)
}
func (s *spyLogger) Sync() error { return nil }

func (s *spyLogger) find(msg string) (capturedLog, bool) {
	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()
	for i := len(s.sink.entries) - 1; i >= 0; i-- {
		if s.sink.entries[i].msg == msg {
			return s.sink.entries[i], true
		}
	}
	return capturedLog{}, false
}

func field(kv []any, key string) (any, bool) {
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i] == key {
			return kv[i+1], true
		}
	}
	return nil, false
}

// captureErrors is an ErrorWriter that records the failure and answers
// with a fixed status.
type captureErrors struct {
	failures []any
	status   int
}

func (c *captureErrors) write(w http.ResponseWriter, _ *http.Request, failure any) {
	c.failures = append(c.failures, failure)
	status := c.status
	if status == 0 {
		status = http.StatusTeapot
	}
	w.WriteHeader(status)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// Chain

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("outer"), nil, mw("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := strings.Join(order, ","); got != "outer,inner,handler" {
		t.Fatalf("order = %s", got)
	}
}

func TestChain_Empty(t *testing.T) {
	rec := httptest.NewRecorder()
	Chain(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWriteOr500_NilWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	writeOr500(nil, rec, httptest.NewRequest(http.MethodGet, "/", nil), "boom")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/pasaeventos-api/internal/xerrors"
)

func newTestLogger(t *testing.T, buf *bytes.Buffer, opts Options) Logger {
	t.Helper()
	opts.Writer = buf
	l, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

// lastRecord parses the last JSON log line in buf.
func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("parse JSON log line: %v\nraw: %s", err, buf.String())
	}
	return m
}

// ParseLevel / ParseFormat

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" Info ", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatal("ParseLevel(verbose) should fail")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in         string
		production bool
		want       bool
	}{
		{"auto", true, true},
		{"", false, false},
		{"json", false, true},
		{"text", true, false},
		{"logfmt", true, false},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in, tt.production)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q, %v) = %v, %v; want %v", tt.in, tt.production, got, err, tt.want)
		}
	}
	if _, err := ParseFormat("xml", false); err == nil {
		t.Fatal("ParseFormat(xml) should fail")
	}
}

// slog backend

func TestLogger_JSONBaseAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{App: "api", Version: "1.2.3", Environment: "production", JsonFormat: true})

	l.Info(context.Background(), "hello", "k", "v")

	m := lastRecord(t, &buf)
	for key, want := range map[string]string{"msg": "hello", "app": "api", "version": "1.2.3", "env": "production", "k": "v"} {
		if m[key] != want {
			t.Errorf("%s = %v, want %q", key, m[key], want)
		}
	}
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{App: "api"})

	l.Info(context.Background(), "plain text")

	if !strings.Contains(buf.String(), `msg="plain text"`) {
		t.Fatalf("expected logfmt output, got %s", buf.String())
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{App: "api", JsonFormat: true, Level: slog.LevelWarn})

	l.Debug(context.Background(), "dropped")
	l.Info(context.Background(), "dropped")
	if buf.Len() != 0 {
		t.Fatalf("below-level records written: %s", buf.String())
	}
	l.Warn(context.Background(), "kept")
	if m := lastRecord(t, &buf); m["level"] != "WARN" {
		t.Fatalf("level = %v, want WARN", m["level"])
	}
}

func TestLogger_WithIsCopyOnWrite(t *testing.T) {
	var buf bytes.Buffer
	base := newTestLogger(t, &buf, Options{App: "api", JsonFormat: true})
	child := base.With("request_id", "abc")

	base.Info(context.Background(), "base")
	if m := lastRecord(t, &buf); m["request_id"] != nil {
		t.Fatalf("parent picked up child attrs: %v", m)
	}
	child.Info(context.Background(), "child")
	if m := lastRecord(t, &buf); m["request_id"] != "abc" {
		t.Fatalf("request_id = %v, want abc", m["request_id"])
	}
}

func TestLogger_SourceIsCaller(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{App: "api", JsonFormat: true})

	l.Info(context.Background(), "where")

	src, _ := lastRecord(t, &buf)["source"].(map[string]any)
	if file, _ := src["file"].(string); !strings.HasSuffix(file, "log_test.go") {
		t.Fatalf("source file = %v, want log_test.go", src["file"])
	}
}

func TestLogger_ErrorEnrichment(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{App: "api", JsonFormat: true, IncludeErrorLinks: true})

	root := xerrors.New("connection refused")
	err := xerrors.Wrap(root, "ping mysql")
	l.Error(context.Background(), err, "probe failed")

	m := lastRecord(t, &buf)
	if m["err"] != "ping mysql: connection refused" {
		t.Fatalf("err = %v", m["err"])
	}
	chain, _ := m["error_chain"].([]any)
	if len(chain) != 2 {
		t.Fatalf("error_chain = %v, want 2 entries", m["error_chain"])
	}
	if s, _ := m["stack"].(string); !strings.Contains(s, "TestLogger_ErrorEnrichment") {
		t.Fatalf("stack should come from the captured error, got %q", s)
	}
	if links, _ := m["error_links"].([]any); len(links) == 0 {
		t.Fatal("error_links missing")
	}
}

func TestLogger_ErrorWithoutStackUsesCallSite(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{App: "api", JsonFormat: true})

	l.Error(context.Background(), errors.New("plain"), "failed")

	s, _ := lastRecord(t, &buf)["stack"].(string)
	if s == "" {
		t.Fatal("stack missing for error-level record")
	}
	for _, frame := range []string{"callSiteStack", "stackHandler", "slogLogger"} {
		if strings.Contains(s, frame) {
			t.Fatalf("logger frame %s leaked into stack: %q", frame, s)
		}
	}
}

func TestLogger_NilError(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{App: "api", JsonFormat: true})

	l.Error(context.Background(), nil, "no error value")

	if m := lastRecord(t, &buf); m["err"] != nil {
		t.Fatalf("err = %v, want absent", m["err"])
	}
}

func TestLogger_TraceEnrichment(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(t, &buf, Options{App: "api", JsonFormat: true})

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	l.Info(ctx, "traced")

	m := lastRecord(t, &buf)
	if m["trace_id"] != sc.TraceID().String() || m["span_id"] != sc.SpanID().String() {
		t.Fatalf("trace ids = %v/%v", m["trace_id"], m["span_id"])
	}
}

func TestClassifyTypes_SkipsWrappers(t *testing.T) {
	type custom struct{ error }
	err := xerrors.Wrap(fmt.Errorf("fmt: %w", custom{errors.New("x")}), "outer")

	surface, _ := classifyTypes(err)
	if !strings.Contains(surface, "custom") {
		t.Fatalf("surface = %q, want the custom type", surface)
	}
}

// context helpers

func TestFromContext_Fallbacks(t *testing.T) {
	if _, ok := FromContext(context.Background()).(nopLogger); !ok {
		t.Fatal("bare context should yield Nop")
	}
	var buf bytes.Buffer
	fb := newTestLogger(t, &buf, Options{App: "api"})
	if FromContextOr(context.Background(), fb) != fb {
		t.Fatal("FromContextOr should return the fallback")
	}
	ctx := WithContext(context.Background(), Nop())
	if FromContextOr(ctx, fb) == fb {
		t.Fatal("context logger should win over fallback")
	}
}

func TestNop_Safe(t *testing.T) {
	l := Nop().With("a", 1)
	l.Debug(context.Background(), "x")
	l.Error(context.Background(), errors.New("x"), "x")
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

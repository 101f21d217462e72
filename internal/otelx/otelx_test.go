package otelx

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Disabled path

func TestInit_Disabled_ShutdownIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{Enabled: false})
	if err != nil {
		t.Fatalf("Init disabled: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("shutdown %d: %v", i, err)
		}
	}
}

func TestInit_Disabled_SetsSDKProvider(t *testing.T) {
	_, _ = Init(context.Background(), Options{Enabled: false, Endpoint: "ignored:4317", Sample: 0.5})

	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("TracerProvider type = %T, want *sdktrace.TracerProvider", otel.GetTracerProvider())
	}
}

func TestInit_Disabled_SpansHaveIDs(t *testing.T) {
	_, _ = Init(context.Background(), Options{Enabled: false})

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	if !span.SpanContext().IsValid() {
		t.Fatal("spans should carry valid ids for log and header correlation")
	}
}

func TestInit_Propagator(t *testing.T) {
	_, _ = Init(context.Background(), Options{Enabled: false})

	fields := map[string]bool{}
	for _, f := range otel.GetTextMapPropagator().Fields() {
		fields[f] = true
	}
	if !fields["traceparent"] || !fields["baggage"] {
		t.Fatalf("propagator fields = %v, want traceparent and baggage", fields)
	}
}

// Enabled path

func TestInit_Enabled_ReturnsPromptly(t *testing.T) {
	start := time.Now()
	shutdown, err := Init(context.Background(), Options{
		Enabled:     true,
		Endpoint:    "localhost:1",
		Insecure:    true,
		Sample:      1.0,
		Service:     "pasaeventos",
		Component:   "api",
		Version:     "v0.0.0-test",
		Environment: "test",
	})
	if elapsed := time.Since(start); elapsed > 15*time.Second {
		t.Fatalf("Init took %v, expected bounded by dial timeout", elapsed)
	}
	if err != nil {
		return
	}
	defer otel.SetTracerProvider(sdktrace.NewTracerProvider())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = shutdown(ctx)
}

// resource

func TestServiceAttrs(t *testing.T) {
	got := attrMap(serviceAttrs(Options{Service: "pasaeventos", Component: "api", Version: "1.0.0", Environment: "production"}))

	if got[semconv.ServiceNameKey] != "pasaeventos.api" {
		t.Errorf("service.name = %q", got[semconv.ServiceNameKey])
	}
	if got[semconv.ServiceVersionKey] != "1.0.0" {
		t.Errorf("service.version = %q", got[semconv.ServiceVersionKey])
	}
	if got[semconv.DeploymentEnvironmentKey] != "production" {
		t.Errorf("deployment.environment = %q", got[semconv.DeploymentEnvironmentKey])
	}
}

func TestServiceAttrs_NoComponentNoEnv(t *testing.T) {
	got := attrMap(serviceAttrs(Options{Service: "pasaeventos"}))

	if got[semconv.ServiceNameKey] != "pasaeventos" {
		t.Errorf("service.name = %q", got[semconv.ServiceNameKey])
	}
	if _, ok := got[semconv.DeploymentEnvironmentKey]; ok {
		t.Error("deployment.environment should be omitted when empty")
	}
}

func TestNewResource_CarriesServiceAttrs(t *testing.T) {
	res := newResource(context.Background(), Options{Service: "svc", Environment: "test"})

	v, ok := res.Set().Value(semconv.DeploymentEnvironmentKey)
	if !ok || v.AsString() != "test" {
		t.Fatalf("deployment.environment = %v, %v", v, ok)
	}
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]string {
	out := make(map[attribute.Key]string, len(kvs))
	for _, kv := range kvs {
		out[kv.Key] = kv.Value.AsString()
	}
	return out
}

package otelx

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Options struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	Sample      float64
	Service     string
	Component   string
	Version     string
	Environment string
}

// Init installs the global tracer provider and propagator. When disabled
// an unexported SDK provider is still installed so spans started by the
// middleware are valid but never exported.
func Init(ctx context.Context, o Options) (func(context.Context) error, error) {
	setPropagator()
	if !o.Enabled {
		otel.SetTracerProvider(sdktrace.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(o.Endpoint),
	}
	if o.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	// by default this is a blocking call with no timeout
	// we are using a local collector that forwards to otlp
	// backends so setting this to 3 seconds is safe
	dialCtx, dialCancel := context.WithTimeout(ctx, 3*time.Second)
	defer dialCancel()
	exp, err := otlptracegrpc.New(dialCtx, opts...)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(o.Sample),
		)),
		sdktrace.WithBatcher(exp,
			sdktrace.WithMaxQueueSize(2048),
			sdktrace.WithBatchTimeout(5*time.Second),
		),
		sdktrace.WithResource(newResource(ctx, o)),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func setPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
}

// newResource describes this process; detector errors are partial and the
// resource is still usable, so they are dropped.
func newResource(ctx context.Context, o Options) *resource.Resource {
	res, _ := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
		resource.WithAttributes(serviceAttrs(o)...),
	)
	return res
}

func serviceAttrs(o Options) []attribute.KeyValue {
	name := o.Service
	if o.Component != "" {
		name += "." + o.Component
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(name),
		semconv.ServiceVersionKey.String(o.Version),
	}
	if o.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentKey.String(o.Environment))
	}
	return attrs
}

// Package telemetry configures OpenTelemetry tracing for runwatch.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

// Option customises the tracer provider.
type Option func(*options)

type options struct {
	version string
	sampler sdktrace.Sampler
	spanOps []sdktrace.TracerProviderOption
}

// WithVersion tags the resource with a service version.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithSampler overrides the default parent-based always-on sampler.
func WithSampler(s sdktrace.Sampler) Option {
	return func(o *options) { o.sampler = s }
}

// WithSpanProcessor attaches a processor such as an exporter batcher.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *options) { o.spanOps = append(o.spanOps, sdktrace.WithSpanProcessor(sp)) }
}

// InitTracerProvider installs a global tracer provider and the W3C trace
// context and baggage propagators. The caller owns Shutdown.
func InitTracerProvider(ctx context.Context, serviceName string, opts ...Option) (*sdktrace.TracerProvider, error) {
	o := options{sampler: sdktrace.ParentBased(sdktrace.AlwaysSample())}
	for _, opt := range opts {
		opt(&o)
	}

	attrs := resource.WithAttributes(semconv.ServiceName(serviceName))
	if o.version != "" {
		attrs = resource.WithAttributes(semconv.ServiceName(serviceName), semconv.ServiceVersion(o.version))
	}
	res, err := resource.New(ctx, attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tpOpts := append([]sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(o.sampler),
	}, o.spanOps...)
	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp, nil
}

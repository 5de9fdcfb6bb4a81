package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// TracerName identifies spans produced by this service.
const TracerName = "market-alerts"

// InitTracer wires the OTLP/gRPC exporter and installs the global tracer
// provider. The returned func flushes and shuts the provider down.
func InitTracer(endpoint string) (func(context.Context) error, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exporter, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(TracerName),
		)),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// InitNoop installs nothing and returns a no-op shutdown, for processes
// running with tracing disabled.
func InitNoop() (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/nodeflow/engine/internal/config"
)

// InitTracer builds the OpenTelemetry tracer provider, grounded on
// internal/tracing/provider.go's InitTracing (resource + exporter +
// sampler + batch processor wiring) narrowed to what this engine needs:
// a single OTLP-or-stdout exporter behind TracingEnabled. Returns a
// no-op provider and shutdown when tracing is disabled.
func InitTracer(ctx context.Context, cfg config.ObservabilityConfig) (trace.TracerProvider, func(context.Context) error, error) {
	if !cfg.TracingEnabled {
		noop := trace.NewNoopTracerProvider()
		otel.SetTracerProvider(noop)
		return noop, func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.TracingServiceName),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("build resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	if cfg.TracingEndpoint != "" {
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.TracingEndpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	} else {
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	if err != nil {
		return nil, nil, fmt.Errorf("build exporter: %w", err)
	}

	sampler := sdktrace.TraceIDRatioBased(cfg.TracingSampleRate)
	if cfg.TracingSampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if cfg.TracingSampleRate <= 0 {
		sampler = sdktrace.NeverSample()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)
	return tp, tp.Shutdown, nil
}

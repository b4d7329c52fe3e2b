// Package observability provides OpenTelemetry tracing for Chisel.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the name used for the Chisel tracer.
const TracerName = "github.com/tlefevre/chisel"

// TracingConfig configures the OpenTelemetry tracing.
type TracingConfig struct {
	// ServiceName is the name of the service (default: "chisel")
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Environment is the deployment environment (dev, staging, prod)
	Environment string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g., "localhost:4317").
	// If empty, tracing is disabled.
	OTLPEndpoint string

	// SampleRate is the trace sampling rate (0.0 to 1.0, default: 1.0)
	SampleRate float64
}

// DefaultTracingConfig returns a default tracing configuration.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "chisel",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider wraps the OpenTelemetry tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing initializes OpenTelemetry tracing.
// Returns a no-op tracer if OTLPEndpoint is empty.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}

	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{tracer: otel.Tracer(TracerName)}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(), // Use TLS in production
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}, nil
}

// Shutdown gracefully shuts down the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// Tracer returns the underlying tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// StartPassSpan starts a span covering one incremental chunking pass.
func StartPassSpan(ctx context.Context, intakeDir string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, "pipeline.pass",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("chisel.intake_dir", intakeDir),
		),
	)
}

// RecordPassCounts records pass totals on a span.
func RecordPassCounts(span trace.Span, documents, paragraphs, chunks int) {
	span.SetAttributes(
		attribute.Int("chisel.documents", documents),
		attribute.Int("chisel.paragraphs", paragraphs),
		attribute.Int("chisel.chunks", chunks),
	)
}

// StartIndexSpan starts a span covering a full vector collection rebuild.
func StartIndexSpan(ctx context.Context, chunks int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, "indexer.rebuild",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int("chisel.chunks", chunks),
		),
	)
}

// StartQuerySpan starts a span covering one two-stage retrieval query.
func StartQuerySpan(ctx context.Context, topK, finalK int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, "search.query",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.Int("chisel.top_k", topK),
			attribute.Int("chisel.final_k", finalK),
		),
	)
}

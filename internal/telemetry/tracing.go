// Package telemetry configures OpenTelemetry tracing for the gateway.
//
// Custom span attributes use the `synapse.` prefix.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "synapse.io/gateway"

// Tracer returns the package-level tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// InitTraceProvider initialises the OTel trace provider with an OTLP gRPC
// exporter. If endpoint is empty, tracing is disabled (noop provider).
// Returns a shutdown function that must be called on application exit.
func InitTraceProvider(ctx context.Context, endpoint string, version string) (func(context.Context) error, error) {
	if endpoint == "" {
		// No-op: tracing disabled
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(), // TLS configurable via env (OTEL_EXPORTER_OTLP_INSECURE)
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String("synapse-gateway"),
			semconv.ServiceVersionKey.String(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// --- Span helpers ---

// StartQuerySpan creates the parent span for one streaming query.
func StartQuerySpan(ctx context.Context, connID, requestID, analysisType string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "gateway.query_stream",
		trace.WithAttributes(
			attribute.String("synapse.connection_id", connID),
			attribute.String("synapse.request_id", requestID),
			attribute.String("synapse.analysis_type", analysisType),
		),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

// EndQuerySpan enriches a completed query span with stream stats. The
// caller still ends the span.
func EndQuerySpan(span trace.Span, progressChunks int, elapsed time.Duration) {
	span.SetAttributes(
		attribute.Int("synapse.progress_chunks", progressChunks),
		attribute.Int64("synapse.elapsed_ms", elapsed.Milliseconds()),
	)
}

// StartBroadcastSpan creates a span for one channel fan-out.
func StartBroadcastSpan(ctx context.Context, channel string, members int) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "gateway.broadcast",
		trace.WithAttributes(
			attribute.String("synapse.channel", channel),
			attribute.Int("synapse.members", members),
		),
	)
}

// Package observability wires OpenTelemetry tracing for the service.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/sesimlab/counselvoice/internal/config"
)

const tracerName = "github.com/sesimlab/counselvoice"

// Pipeline span names.
const (
	SpanProcessUpload = "pipeline.process_upload"
	SpanTranscribe    = "pipeline.transcribe"
	SpanNormalize     = "pipeline.normalize"
	SpanEnrich        = "pipeline.enrich"
)

// Span attribute keys.
const (
	AttrUploadID = "upload.id"
	AttrVendor   = "stt.vendor"
	AttrRecordID = "record.id"
	AttrSegments = "transcript.segments"
	AttrSpeakers = "transcript.speakers"
)

// Init sets up the global tracer provider with an OTLP HTTP exporter. It
// returns a shutdown function to flush spans on exit. When tracing is
// disabled it returns a no-op shutdown and leaves the default provider in
// place.
func Init(ctx context.Context, cfg config.ObservabilityConfig, svc config.ServiceConfig) (func(context.Context) error, error) {
	if !cfg.TracingEnabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: create trace exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(svc.Name),
			semconv.ServiceVersion(svc.Version),
			attribute.String("environment", svc.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// StartSpan starts a span on the service tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// RecordError marks the span in ctx with err, if one is recording.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span != nil && span.IsRecording() && err != nil {
		span.RecordError(err)
	}
}

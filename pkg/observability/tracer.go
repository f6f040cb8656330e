package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "batchget"

// ConfigureTracer creates and configures tracing based on the provided configuration.
// Tracing is enabled together with metrics.
func ConfigureTracer(cfg *Config, log *slog.Logger) trace.Tracer {
	if !cfg.MetricsEnabled {
		return NoopTracer()
	}

	ctx := context.Background()

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		log.Error("Failed to create OTLP trace exporter", "error", err)
		return NoopTracer()
	}

	res, err := resource.New(ctx, resource.WithAttributes(buildResourceAttributes(cfg)...))
	if err != nil {
		log.Error("Failed to create resource", "error", err)
		return NoopTracer()
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(tracerProvider)

	return tracerProvider.Tracer(instrumentationName)
}

func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer(instrumentationName)
}

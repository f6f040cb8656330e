package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Meter holds the batch read metrics
type Meter struct {
	BatchesTotal  metric.Int64Counter
	BatchesFailed metric.Int64Counter
	KeysRequested metric.Int64Counter
	KeyOutcomes   metric.Int64Counter
	LookupRetries metric.Int64Counter
	BatchDuration metric.Float64Histogram
	KeysPerSecond metric.Float64Gauge

	component string
}

// ConfigureMeter creates and configures metrics based on the provided configuration
func ConfigureMeter(cfg *Config) *Meter {
	if !cfg.MetricsEnabled {
		return nil
	}

	ctx := context.Background()

	// reads OTEL_EXPORTER_OTLP_ENDPOINT from environment
	exporter, err := otlpmetrichttp.New(ctx)
	if err != nil {
		slog.Error("Failed to create OTLP metrics exporter", "error", err)
		return nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(buildResourceAttributes(cfg)...))
	if err != nil {
		slog.Error("Failed to create resource", "error", err)
		return nil
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(10*time.Second),
		)),
	)

	otel.SetMeterProvider(meterProvider)

	return NewMeter(cfg.ServiceName)
}

// NewMeter creates a Meter on the global MeterProvider
func NewMeter(component string) *Meter {
	return NewMeterFromProvider(otel.GetMeterProvider(), component)
}

func NewMeterFromProvider(provider metric.MeterProvider, component string) *Meter {
	meter := provider.Meter(instrumentationName)

	return &Meter{
		BatchesTotal: mustCreateCounter(meter, "batchget_batches_total",
			"Total number of batch reads"),
		BatchesFailed: mustCreateCounter(meter, "batchget_batches_failed_total",
			"Total number of batch reads that failed at call level"),
		KeysRequested: mustCreateCounter(meter, "batchget_keys_requested_total",
			"Total number of keys requested in batch reads"),
		KeyOutcomes: mustCreateCounter(meter, "batchget_key_outcomes_total",
			"Per-key outcomes by status"),
		LookupRetries: mustCreateCounter(meter, "batchget_lookup_retries_total",
			"Total number of retried key lookups"),
		BatchDuration: mustCreateHistogram(meter, "batchget_batch_duration_seconds",
			"Batch read duration in seconds"),
		KeysPerSecond: mustCreateGauge(meter, "batchget_keys_per_second",
			"Keys resolved per second by the last batch"),
		component: component,
	}
}

func (m *Meter) attrs(extra ...attribute.KeyValue) metric.MeasurementOption {
	return metric.WithAttributes(append([]attribute.KeyValue{
		attribute.String("component", m.component),
	}, extra...)...)
}

// RecordBatch records a completed batch read
func (m *Meter) RecordBatch(ctx context.Context, keys int, duration time.Duration, err error) {
	m.BatchesTotal.Add(ctx, 1, m.attrs())
	m.KeysRequested.Add(ctx, int64(keys), m.attrs())
	m.BatchDuration.Record(ctx, duration.Seconds(), m.attrs())

	if err != nil {
		m.BatchesFailed.Add(ctx, 1, m.attrs())
		return
	}

	if duration > 0 {
		m.KeysPerSecond.Record(ctx, float64(keys)/duration.Seconds(), m.attrs())
	}
}

// RecordKeyOutcome records the status of count keys
func (m *Meter) RecordKeyOutcome(ctx context.Context, status string, count int64) {
	m.KeyOutcomes.Add(ctx, count, m.attrs(attribute.String("status", status)))
}

// RecordRetry records a retried key lookup
func (m *Meter) RecordRetry(ctx context.Context) {
	m.LookupRetries.Add(ctx, 1, m.attrs())
}

func mustCreateCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(
		name,
		metric.WithDescription(description),
		metric.WithUnit("1"),
	)
	if err != nil {
		slog.Error("Failed to create counter", "name", name, "error", err)
		panic(fmt.Sprintf("failed to create counter %s: %v", name, err))
	}
	return counter
}

func mustCreateGauge(meter metric.Meter, name, description string) metric.Float64Gauge {
	gauge, err := meter.Float64Gauge(
		name,
		metric.WithDescription(description),
		metric.WithUnit("1/s"),
	)
	if err != nil {
		slog.Error("Failed to create gauge", "name", name, "error", err)
		panic(fmt.Sprintf("failed to create gauge %s: %v", name, err))
	}
	return gauge
}

func mustCreateHistogram(meter metric.Meter, name, description string) metric.Float64Histogram {
	histogram, err := meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit("s"),
	)
	if err != nil {
		slog.Error("Failed to create histogram", "name", name, "error", err)
		panic(fmt.Sprintf("failed to create histogram %s: %v", name, err))
	}
	return histogram
}

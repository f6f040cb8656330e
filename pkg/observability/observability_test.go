package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestConfigureLoggerJSON(t *testing.T) {
	var buf bytes.Buffer

	log := ConfigureLogger(&Config{LogFormat: "json", LogLevel: slog.LevelInfo}, &buf)
	log.Debug("hidden")
	log.Info("batch done", slog.Int("keys", 3))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "batch done", line["msg"])
	assert.EqualValues(t, 3, line["keys"])
}

func TestConfigureLoggerText(t *testing.T) {
	var buf bytes.Buffer

	log := ConfigureLogger(&Config{LogFormat: "text", LogLevel: slog.LevelDebug}, &buf)
	log.Debug("lookup", slog.String("node", "node-a"))

	assert.Contains(t, buf.String(), "lookup")
	assert.Contains(t, buf.String(), "node-a")
}

func TestConfigureMeterDisabled(t *testing.T) {
	assert.Nil(t, ConfigureMeter(&Config{}))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()

	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "not an int64 sum: %T", data)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMeterRecordBatch(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m := NewMeterFromProvider(provider, "client")
	ctx := context.Background()

	m.RecordBatch(ctx, 10, 20*time.Millisecond, nil)
	m.RecordBatch(ctx, 5, time.Millisecond, errors.New("unavailable"))
	m.RecordKeyOutcome(ctx, "ok", 7)
	m.RecordKeyOutcome(ctx, "record not found", 3)
	m.RecordRetry(ctx)

	metrics := collect(t, reader)

	assert.Equal(t, int64(2), sumOf(t, metrics["batchget_batches_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["batchget_batches_failed_total"]))
	assert.Equal(t, int64(15), sumOf(t, metrics["batchget_keys_requested_total"]))
	assert.Equal(t, int64(10), sumOf(t, metrics["batchget_key_outcomes_total"]))
	assert.Equal(t, int64(1), sumOf(t, metrics["batchget_lookup_retries_total"]))

	hist, ok := metrics["batchget_batch_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
}

func TestNoopTracer(t *testing.T) {
	_, span := NoopTracer().Start(context.Background(), "batch")
	defer span.End()

	assert.False(t, span.SpanContext().IsValid())
}

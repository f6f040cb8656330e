package client

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/glassflow/batchget/internal/batch"
	"github.com/glassflow/batchget/internal/cluster"
	"github.com/glassflow/batchget/internal/filter"
	"github.com/glassflow/batchget/internal/models"
	"github.com/glassflow/batchget/pkg/observability"
)

// BatchResult is the value delivered by BatchGetAsync.
type BatchResult struct {
	Entries []models.BatchEntry
	Err     error
}

type BatchGetClientOption func(*BatchGetClient)

func WithPolicy(policy models.BatchPolicy) BatchGetClientOption {
	return func(c *BatchGetClient) {
		c.policy = policy
	}
}

func WithMeter(meter *observability.Meter) BatchGetClientOption {
	return func(c *BatchGetClient) {
		c.meter = meter
	}
}

func WithTracer(tracer trace.Tracer) BatchGetClientOption {
	return func(c *BatchGetClient) {
		c.tracer = tracer
	}
}

// BatchGetClient reads many records in one call. It is safe for concurrent batches.
type BatchGetClient struct {
	cluster    *cluster.Cluster
	dispatcher *batch.Dispatcher
	policy     models.BatchPolicy
	log        *slog.Logger
	meter      *observability.Meter
	tracer     trace.Tracer
}

func NewBatchGetClient(c *cluster.Cluster, log *slog.Logger, opts ...BatchGetClientOption) *BatchGetClient {
	client := &BatchGetClient{ //nolint:exhaustruct // optional config
		cluster: c,
		policy:  models.DefaultBatchPolicy(),
		log:     log,
		tracer:  observability.NoopTracer(),
	}

	for _, opt := range opts {
		opt(client)
	}

	client.dispatcher = batch.NewDispatcher(c, log, client.meter)

	return client
}

// BatchGet returns one entry per key, in input order. Per-key failures are reported
// as entry statuses; the error is set only for invalid input, an unavailable
// cluster, a rejected batch or cancellation, and then no entries are returned.
func (c *BatchGetClient) BatchGet(ctx context.Context, keys []models.Key) ([]models.BatchEntry, error) {
	return c.BatchGetWithPolicy(ctx, keys, c.policy)
}

// BatchSelect is BatchGet returning only the named bins of each record.
func (c *BatchGetClient) BatchSelect(ctx context.Context, keys []models.Key, bins ...string) ([]models.BatchEntry, error) {
	policy := c.policy
	policy.BinNames = bins
	return c.BatchGetWithPolicy(ctx, keys, policy)
}

// BatchGetAsync runs BatchGet in the background. The channel receives exactly one
// result and is then closed.
func (c *BatchGetClient) BatchGetAsync(ctx context.Context, keys []models.Key) <-chan BatchResult {
	return c.BatchGetWithPolicyAsync(ctx, keys, c.policy)
}

func (c *BatchGetClient) BatchGetWithPolicyAsync(ctx context.Context, keys []models.Key, policy models.BatchPolicy) <-chan BatchResult {
	out := make(chan BatchResult, 1)

	go func() {
		defer close(out)
		entries, err := c.BatchGetWithPolicy(ctx, keys, policy)
		out <- BatchResult{Entries: entries, Err: err}
	}()

	return out
}

func (c *BatchGetClient) BatchGetWithPolicy(ctx context.Context, keys []models.Key, policy models.BatchPolicy) ([]models.BatchEntry, error) {
	ctx, span := c.tracer.Start(ctx, "BatchGet", trace.WithAttributes(
		attribute.Int("batch.keys", len(keys)),
	))
	defer span.End()

	start := time.Now()
	entries, stats, err := c.batchGet(ctx, keys, policy)
	duration := time.Since(start)

	if c.meter != nil {
		c.meter.RecordBatch(ctx, len(keys), duration, err)
		if err == nil {
			for status, count := range countStatuses(entries) {
				c.meter.RecordKeyOutcome(ctx, status.String(), int64(count))
			}
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.log.WarnContext(ctx, "batch get failed",
			slog.Int("keys", len(keys)),
			slog.Int("nodes", stats.Nodes),
			slog.Duration("duration", duration),
			slog.Any("error", err))
		return nil, err
	}

	span.SetAttributes(attribute.Int("batch.nodes", stats.Nodes))
	c.log.DebugContext(ctx, "batch get completed",
		slog.Int("keys", len(keys)),
		slog.Int("lookups", stats.Lookups),
		slog.Int("nodes", stats.Nodes),
		slog.Duration("duration", duration))

	return entries, nil
}

func (c *BatchGetClient) batchGet(ctx context.Context, keys []models.Key, policy models.BatchPolicy) ([]models.BatchEntry, batch.Stats, error) {
	if len(keys) == 0 {
		return nil, batch.Stats{}, fmt.Errorf("%w: no keys", models.ErrInvalidArgument)
	}

	for i, key := range keys {
		if err := key.Validate(); err != nil {
			return nil, batch.Stats{}, fmt.Errorf("key %d: %w", i, err)
		}
	}

	if err := policy.Validate(); err != nil {
		return nil, batch.Stats{}, err
	}

	f, err := filter.New(policy.FilterExpression)
	if err != nil {
		return nil, batch.Stats{}, err
	}

	if c.cluster.ActiveNodes() == 0 {
		return nil, batch.Stats{}, fmt.Errorf("%w: no active nodes", models.ErrClusterUnavailable)
	}

	if policy.TotalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.TotalTimeout)
		defer cancel()
	}

	agg := batch.NewAggregator(keys)

	stats, err := c.dispatcher.Dispatch(ctx, agg.Groups(), policy, f, agg.Deliver)
	if err != nil {
		return nil, stats, fmt.Errorf("batch get: %w", err)
	}

	entries, err := agg.Results()
	if err != nil {
		return nil, stats, err
	}

	return entries, stats, nil
}

func (c *BatchGetClient) Policy() models.BatchPolicy {
	return c.policy
}

// Ready reports whether at least one node can serve lookups.
func (c *BatchGetClient) Ready() bool {
	return c.cluster.ActiveNodes() > 0
}

// Close closes the cluster and every node store.
func (c *BatchGetClient) Close() error {
	return c.cluster.Close()
}

func countStatuses(entries []models.BatchEntry) map[models.Status]int {
	counts := make(map[models.Status]int)
	for _, e := range entries {
		counts[e.Status]++
	}
	return counts
}

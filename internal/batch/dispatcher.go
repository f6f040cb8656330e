package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/errgroup"

	"github.com/glassflow/batchget/internal/cluster"
	"github.com/glassflow/batchget/internal/filter"
	"github.com/glassflow/batchget/internal/models"
	"github.com/glassflow/batchget/pkg/observability"
)

var errTransient = errors.New("transient lookup failure")

// Stats summarizes a dispatch.
type Stats struct {
	Nodes            int
	Lookups          int
	ConnectionErrors int
}

type Dispatcher struct {
	cluster *cluster.Cluster
	log     *slog.Logger
	meter   *observability.Meter
}

// NewDispatcher creates a dispatcher. meter may be nil.
func NewDispatcher(c *cluster.Cluster, log *slog.Logger, meter *observability.Meter) *Dispatcher {
	return &Dispatcher{
		cluster: c,
		log:     log,
		meter:   meter,
	}
}

type nodeBatch struct {
	node   *cluster.Node
	groups []int
}

// Dispatch looks up every group and hands exactly one outcome per group to deliver.
// Per-key failures become outcomes; the returned error is reserved for call-level
// failures: cancellation, a rejected batch, or every lookup failing to reach a node.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	groups []Group,
	policy models.BatchPolicy,
	f *filter.Filter,
	deliver func(g int, outcome Outcome),
) (Stats, error) {
	var (
		stats    Stats
		batches  []*nodeBatch
		byNode   = make(map[string]*nodeBatch)
		local    = make(map[int]Outcome)
		connLost atomic.Int64
	)

	for g, group := range groups {
		node, err := d.cluster.NodeFor(group.Key)
		switch {
		case errors.Is(err, models.ErrNamespaceNotFound):
			local[g] = Outcome{Status: models.StatusNamespaceNotFound}
			continue
		case errors.Is(err, models.ErrClusterUnavailable):
			local[g] = Outcome{Status: models.StatusConnectionError}
			stats.Lookups++
			connLost.Add(1)
			continue
		case err != nil:
			return stats, err
		}

		nb, ok := byNode[node.Name()]
		if !ok {
			nb = &nodeBatch{node: node}
			byNode[node.Name()] = nb
			batches = append(batches, nb)
		}
		nb.groups = append(nb.groups, g)
	}

	limit := d.cluster.MaxBatchKeysPerNode()
	for _, nb := range batches {
		if len(nb.groups) > limit {
			return stats, fmt.Errorf("%w: %d keys for node %s exceeds limit %d",
				models.ErrBatchRejected, len(nb.groups), nb.node.Name(), limit)
		}
	}

	for g, outcome := range local {
		deliver(g, outcome)
	}

	stats.Nodes = len(batches)

	eg, egCtx := errgroup.WithContext(ctx)
	if policy.ConcurrentNodes > 0 {
		eg.SetLimit(policy.ConcurrentNodes)
	}

	for _, nb := range batches {
		stats.Lookups += len(nb.groups)

		eg.Go(func() error {
			return d.dispatchNode(egCtx, nb, groups, policy, f, &connLost, deliver)
		})
	}

	if err := eg.Wait(); err != nil {
		return stats, err
	}

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	stats.ConnectionErrors = int(connLost.Load())
	if stats.Lookups > 0 && stats.ConnectionErrors == stats.Lookups {
		return stats, fmt.Errorf("%w: no node could be reached", models.ErrClusterUnavailable)
	}

	return stats, nil
}

func (d *Dispatcher) dispatchNode(
	ctx context.Context,
	nb *nodeBatch,
	groups []Group,
	policy models.BatchPolicy,
	f *filter.Filter,
	connLost *atomic.Int64,
	deliver func(g int, outcome Outcome),
) error {
	eg, egCtx := errgroup.WithContext(ctx)
	if policy.NodeConcurrency > 0 {
		eg.SetLimit(policy.NodeConcurrency)
	}

	for _, g := range nb.groups {
		eg.Go(func() error {
			outcome, err := d.lookup(egCtx, nb.node, groups[g].Key, policy, f)
			if err != nil {
				return err
			}

			if outcome.Status == models.StatusConnectionError {
				connLost.Add(1)
			}

			deliver(g, outcome)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return fmt.Errorf("node %s: %w", nb.node.Name(), err)
	}

	return nil
}

// lookup resolves one key, retrying transient failures.
func (d *Dispatcher) lookup(
	ctx context.Context,
	node *cluster.Node,
	key models.Key,
	policy models.BatchPolicy,
	f *filter.Filter,
) (Outcome, error) {
	var outcome Outcome

	err := retry.Do(
		func() error {
			var err error
			outcome, err = d.attempt(ctx, node, key, policy, f)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if outcome.Status.Transient() {
				return errTransient
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(policy.MaxRetries)+1),
		retry.Delay(policy.SleepBetweenRetries),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, _ error) {
			if d.meter != nil {
				d.meter.RecordRetry(ctx)
			}
			d.log.DebugContext(ctx, "retrying key lookup",
				slog.String("key", key.String()),
				slog.String("node", node.Name()),
				slog.Uint64("attempt", uint64(n)+1),
				slog.String("status", outcome.Status.String()))
		}),
	)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{}, ctxErr
	}
	if err != nil && !errors.Is(err, errTransient) {
		return Outcome{}, err
	}

	return outcome, nil
}

// attempt performs one bounded lookup. The error is non-nil only for call-level
// failures.
func (d *Dispatcher) attempt(
	ctx context.Context,
	node *cluster.Node,
	key models.Key,
	policy models.BatchPolicy,
	f *filter.Filter,
) (Outcome, error) {
	attemptCtx := ctx
	if policy.SocketTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, policy.SocketTimeout)
		defer cancel()
	}

	record, meta, err := node.Store().Get(attemptCtx, key)
	if err == nil {
		if record == nil {
			d.log.WarnContext(ctx, "store returned no record without an error",
				slog.String("key", key.String()),
				slog.String("node", node.Name()))
			return Outcome{Status: models.StatusServerError}, nil
		}

		matched, err := f.Matches(record)
		if err != nil {
			d.log.DebugContext(ctx, "filter evaluation failed",
				slog.String("key", key.String()),
				slog.Any("error", err))
		}
		if !matched {
			return Outcome{Status: models.StatusFilteredOut}, nil
		}

		return Outcome{
			Status: models.StatusOK,
			Record: record.Select(policy.BinNames...),
			Meta:   &meta,
		}, nil
	}

	var statusErr *models.StatusError

	switch {
	case ctx.Err() != nil:
		return Outcome{}, ctx.Err()
	case errors.Is(err, models.ErrBatchRejected):
		return Outcome{}, err
	case errors.Is(err, context.DeadlineExceeded):
		return Outcome{Status: models.StatusTimeout}, nil
	case errors.Is(err, models.ErrRecordNotFound):
		return Outcome{Status: models.StatusRecordNotFound}, nil
	case errors.As(err, &statusErr):
		// a status error never reports success; OK needs a record
		status := models.NormalizeStatus(int(statusErr.Status))
		if status == models.StatusOK {
			status = models.StatusServerError
		}
		return Outcome{Status: status}, nil
	case errors.Is(err, models.ErrConnection):
		return Outcome{Status: models.StatusConnectionError}, nil
	default:
		d.log.WarnContext(ctx, "key lookup failed",
			slog.String("key", key.String()),
			slog.String("node", node.Name()),
			slog.Any("error", err))
		return Outcome{Status: models.StatusServerError}, nil
	}
}

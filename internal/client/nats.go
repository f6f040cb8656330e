package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/glassflow/batchget/internal"
	natsStore "github.com/glassflow/batchget/internal/store/nats"
)

type NATSClient struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	log *slog.Logger
}

// NewNATSClient connects to url, retrying with exponential backoff for up to
// NATSMaxConnectionWait.
func NewNATSClient(ctx context.Context, url string, log *slog.Logger) (*NATSClient, error) {
	var (
		nc  *nats.Conn
		err error
	)

	connCtx, cancel := context.WithTimeout(ctx, internal.NATSMaxConnectionWait)
	defer cancel()

	retryDelay := internal.NATSInitialRetryDelay

	for i := range internal.NATSConnectionRetries {
		select {
		case <-connCtx.Done():
			return nil, fmt.Errorf("timeout after %v waiting to connect to NATS at %s", internal.NATSMaxConnectionWait, url)
		default:
		}

		nc, err = nats.Connect(url, nats.Timeout(internal.NATSConnectionTimeout))
		if err == nil {
			break
		}

		if i < internal.NATSConnectionRetries-1 {
			log.InfoContext(ctx, "retrying connection to NATS",
				slog.String("url", url),
				slog.Duration("retry_delay", retryDelay),
				slog.Any("error", err))

			select {
			case <-time.After(retryDelay):
			case <-connCtx.Done():
				return nil, fmt.Errorf("timeout during retry delay for NATS at %s: %w", url, connCtx.Err())
			}
			retryDelay = min(time.Duration(float64(retryDelay)*1.5), internal.NATSMaxRetryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to connect to JetStream: %w", err)
	}

	return &NATSClient{
		nc:  nc,
		js:  js,
		log: log,
	}, nil
}

// NodeStore opens the record bucket of node.
func (n *NATSClient) NodeStore(ctx context.Context, bucketPrefix, node string) (*natsStore.RecordStore, error) {
	s, err := natsStore.NewRecordStore(ctx, n.js, natsStore.BucketName(bucketPrefix, node))
	if err != nil {
		return nil, fmt.Errorf("open node %s store: %w", node, err)
	}
	return s, nil
}

// DeleteNodeBuckets removes every bucket created with bucketPrefix.
func (n *NATSClient) DeleteNodeBuckets(ctx context.Context, bucketPrefix string) error {
	names := n.js.KeyValueStoreNames(ctx)
	for name := range names.Name() {
		if !strings.HasPrefix(name, bucketPrefix+"-") {
			continue
		}

		err := n.js.DeleteKeyValue(ctx, name)
		if err != nil && !errors.Is(err, jetstream.ErrBucketNotFound) {
			return fmt.Errorf("delete key value store %s: %w", name, err)
		}
	}

	if err := names.Error(); err != nil {
		return fmt.Errorf("list key value stores: %w", err)
	}

	return nil
}

func (n *NATSClient) JetStream() jetstream.JetStream {
	return n.js
}

func (n *NATSClient) Close() error {
	if err := n.nc.Drain(); err != nil {
		n.nc.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}

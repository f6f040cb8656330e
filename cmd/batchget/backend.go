package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/glassflow/batchget/internal"
	"github.com/glassflow/batchget/internal/client"
	"github.com/glassflow/batchget/internal/cluster"
	"github.com/glassflow/batchget/internal/embedded"
	badgerStore "github.com/glassflow/batchget/internal/store/badger"
	"github.com/glassflow/batchget/internal/store/postgres"
)

// openCluster builds one node per configured name on the selected store backend.
// The returned cleanup releases backend resources shared by the node stores and
// must run after the cluster is closed.
func openCluster(ctx context.Context, cfg *config, log *slog.Logger) (*cluster.Cluster, func(), error) {
	if len(cfg.Nodes) == 0 {
		return nil, nil, fmt.Errorf("no cluster nodes configured")
	}

	var (
		nodes   []*cluster.Node
		cleanup func()
		err     error
	)

	switch cfg.StoreBackend {
	case internal.StoreBackendBadger:
		nodes, cleanup, err = badgerNodes(cfg)
	case internal.StoreBackendNATS:
		nodes, cleanup, err = natsNodes(ctx, cfg, log)
	case internal.StoreBackendPostgres:
		nodes, cleanup, err = postgresNodes(ctx, cfg, log)
	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}
	if err != nil {
		return nil, nil, err
	}

	c, err := cluster.New(cluster.Config{
		Namespaces:          cfg.Namespaces,
		MaxBatchKeysPerNode: cfg.MaxBatchKeysPerNode,
	}, nodes...)
	if err != nil {
		for _, n := range nodes {
			_ = n.Store().Close()
		}
		cleanup()
		return nil, nil, fmt.Errorf("create cluster: %w", err)
	}

	log.InfoContext(ctx, "cluster ready",
		slog.String("backend", cfg.StoreBackend),
		slog.Any("nodes", cfg.Nodes),
		slog.Any("namespaces", cfg.Namespaces))

	return c, cleanup, nil
}

func badgerNodes(cfg *config) ([]*cluster.Node, func(), error) {
	if !cfg.BadgerInMemory && cfg.BadgerDir == "" {
		return nil, nil, fmt.Errorf("badger dir is required unless running in memory")
	}

	nodes := make([]*cluster.Node, 0, len(cfg.Nodes))
	for _, name := range cfg.Nodes {
		dir := ""
		if !cfg.BadgerInMemory {
			dir = filepath.Join(cfg.BadgerDir, name)
		}

		db, err := badgerStore.OpenDB(dir, cfg.BadgerInMemory)
		if err != nil {
			var errs []error
			for _, n := range nodes {
				errs = append(errs, n.Store().Close())
			}
			return nil, nil, errors.Join(fmt.Errorf("open node %s: %w", name, err), errors.Join(errs...))
		}

		nodes = append(nodes, cluster.NewNode(name, badgerStore.NewRecordStore(db)))
	}

	return nodes, func() {}, nil
}

func natsNodes(ctx context.Context, cfg *config, log *slog.Logger) ([]*cluster.Node, func(), error) {
	url := cfg.NATSServer

	var srv *embedded.NATSServer
	if cfg.NATSEmbedded {
		var err error
		srv, err = embedded.NewNATSServer(log, cfg.NATSEmbeddedPort, cfg.NATSStoreDir)
		if err != nil {
			return nil, nil, fmt.Errorf("start embedded nats: %w", err)
		}
		url = srv.URL()
	}

	nc, err := client.NewNATSClient(ctx, url, log)
	if err != nil {
		if srv != nil {
			srv.Shutdown()
		}
		return nil, nil, fmt.Errorf("nats client: %w", err)
	}

	cleanup := func() {
		if err := nc.Close(); err != nil {
			log.Error("failed to close nats client", slog.Any("error", err))
		}
		if srv != nil {
			srv.Shutdown()
		}
	}

	nodes := make([]*cluster.Node, 0, len(cfg.Nodes))
	for _, name := range cfg.Nodes {
		s, err := nc.NodeStore(ctx, cfg.NATSBucketPrefix, name)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		nodes = append(nodes, cluster.NewNode(name, s))
	}

	return nodes, cleanup, nil
}

func postgresNodes(ctx context.Context, cfg *config, log *slog.Logger) ([]*cluster.Node, func(), error) {
	if cfg.PostgresDSN == "" {
		return nil, nil, fmt.Errorf("postgres dsn is required for the postgres backend")
	}

	if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	db, err := postgres.NewPostgres(ctx, cfg.PostgresDSN, log)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	nodes := make([]*cluster.Node, 0, len(cfg.Nodes))
	for _, name := range cfg.Nodes {
		nodes = append(nodes, cluster.NewNode(name, db.NodeStore(name)))
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close postgres", slog.Any("error", err))
		}
	}

	return nodes, cleanup, nil
}

package cluster

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/glassflow/batchget/internal"
	"github.com/glassflow/batchget/internal/models"
	"github.com/glassflow/batchget/internal/store"
)

type Config struct {
	// Namespaces served by the cluster. Empty means every namespace.
	Namespaces          []string
	MaxBatchKeysPerNode int
}

// Node is a cluster member backed by its own record store.
type Node struct {
	name   string
	store  store.RecordStore
	active atomic.Bool
}

func NewNode(name string, s store.RecordStore) *Node {
	n := &Node{
		name:  name,
		store: s,
	}
	n.active.Store(true)
	return n
}

func (n *Node) Name() string { return n.name }

func (n *Node) Store() store.RecordStore { return n.store }

func (n *Node) Active() bool { return n.active.Load() }

// SetActive marks the node as reachable or not. Inactive nodes keep their partitions.
func (n *Node) SetActive(active bool) { n.active.Store(active) }

// Cluster is a static set of nodes with a fixed partition map. It is safe for
// concurrent use.
type Cluster struct {
	nodes      []*Node
	partitions [internal.PartitionCount]*Node
	namespaces map[string]struct{}
	maxKeys    int
}

func New(cfg Config, nodes ...*Node) (*Cluster, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: cluster needs at least one node", models.ErrInvalidArgument)
	}

	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if n == nil || n.store == nil {
			return nil, fmt.Errorf("%w: node without a store", models.ErrInvalidArgument)
		}
		if _, ok := seen[n.name]; ok {
			return nil, fmt.Errorf("%w: duplicate node %q", models.ErrInvalidArgument, n.name)
		}
		seen[n.name] = struct{}{}
	}

	c := &Cluster{
		nodes:   slices.Clone(nodes),
		maxKeys: cfg.MaxBatchKeysPerNode,
	}
	if c.maxKeys <= 0 {
		c.maxKeys = internal.DefaultMaxBatchKeysPerNode
	}

	if len(cfg.Namespaces) > 0 {
		c.namespaces = make(map[string]struct{}, len(cfg.Namespaces))
		for _, ns := range cfg.Namespaces {
			c.namespaces[ns] = struct{}{}
		}
	}

	for p := range c.partitions {
		c.partitions[p] = c.nodes[p%len(c.nodes)]
	}

	return c, nil
}

func PartitionID(key models.Key) int {
	return int(key.Digest() % internal.PartitionCount)
}

// NodeFor returns the node owning key's partition. It fails with
// models.ErrNamespaceNotFound for a namespace the cluster does not serve and with
// models.ErrClusterUnavailable when the owning node is inactive.
func (c *Cluster) NodeFor(key models.Key) (*Node, error) {
	if !c.ServesNamespace(key.Namespace) {
		return nil, fmt.Errorf("%w: %s", models.ErrNamespaceNotFound, key.Namespace)
	}

	node := c.partitions[PartitionID(key)]
	if !node.Active() {
		return node, fmt.Errorf("%w: node %s is inactive", models.ErrClusterUnavailable, node.name)
	}

	return node, nil
}

func (c *Cluster) ServesNamespace(namespace string) bool {
	if c.namespaces == nil {
		return true
	}
	_, ok := c.namespaces[namespace]
	return ok
}

func (c *Cluster) Nodes() []*Node {
	return slices.Clone(c.nodes)
}

func (c *Cluster) ActiveNodes() int {
	active := 0
	for _, n := range c.nodes {
		if n.Active() {
			active++
		}
	}
	return active
}

func (c *Cluster) MaxBatchKeysPerNode() int {
	return c.maxKeys
}

// Put writes a record to the node owning key. Used for seeding and tests.
func (c *Cluster) Put(ctx context.Context, key models.Key, record models.Record, meta models.Metadata) error {
	if err := key.Validate(); err != nil {
		return err
	}

	node, err := c.NodeFor(key)
	if err != nil {
		return err
	}

	if err := node.store.Put(ctx, key, record, meta); err != nil {
		return fmt.Errorf("put %s on node %s: %w", key, node.name, err)
	}

	return nil
}

// Close closes every node store.
func (c *Cluster) Close() error {
	var errs []error
	for _, n := range c.nodes {
		n.SetActive(false)
		if err := n.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close node %s: %w", n.name, err))
		}
	}
	return errors.Join(errs...)
}

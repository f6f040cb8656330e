package client

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/glassflow/batchget/internal/cluster"
	"github.com/glassflow/batchget/internal/models"
	badgerStore "github.com/glassflow/batchget/internal/store/badger"
	"github.com/glassflow/batchget/internal/store/mocks"
	"github.com/glassflow/batchget/pkg/observability"
	"github.com/glassflow/batchget/tests/testutils"
)

const (
	testNamespace = "test"
	testSet       = "testset"
)

func newBadgerCluster(t *testing.T, nodes int) *cluster.Cluster {
	t.Helper()

	members := make([]*cluster.Node, nodes)
	for i := range members {
		db, err := badgerStore.OpenDB("", true)
		require.NoError(t, err)
		members[i] = cluster.NewNode(fmt.Sprintf("node-%d", i), badgerStore.NewRecordStore(db))
	}

	c, err := cluster.New(cluster.Config{Namespaces: []string{testNamespace}}, members...)
	require.NoError(t, err)

	return c
}

func newTestClient(t *testing.T, c *cluster.Cluster, opts ...BatchGetClientOption) *BatchGetClient {
	t.Helper()

	client := NewBatchGetClient(c, testutils.NewDiscardLogger(), opts...)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func seed(t *testing.T, c *cluster.Cluster, n int, keyType models.KeyType) (map[string]models.Record, []models.Key) {
	t.Helper()

	rgen := testutils.NewRecordGenerator(map[string]testutils.ValueGenerator{
		"i": testutils.IntegerValue(),
		"s": testutils.StringValue("str-"),
		"b": testutils.BytesValue(4),
	})

	written, keys, err := testutils.Put(context.Background(), c, n,
		testutils.NewKeyGenerator(testNamespace, testSet, keyType).WithRandom(),
		rgen, testutils.MetadataGenerator{TTL: time.Hour})
	require.NoError(t, err)

	return written, keys
}

// ten existing records with an integer, a string and a bytes bin
func TestBatchGetExistingRecords(t *testing.T) {
	c := newBadgerCluster(t, 3)
	client := newTestClient(t, c)

	written, keys := seed(t, c, 10, models.KeyTypeString)

	entries, err := client.BatchGet(context.Background(), keys)
	require.NoError(t, err)
	require.Len(t, entries, len(keys))

	for i, entry := range entries {
		assert.True(t, keys[i].Equal(entry.Key), "entry %d key", i)
		require.Equal(t, models.StatusOK, entry.Status, "entry %d", i)
		if diff := cmp.Diff(written[keys[i].ID()], entry.Record); diff != "" {
			t.Errorf("entry %d record mismatch (-want +got):\n%s", i, diff)
		}
		require.NotNil(t, entry.Meta)
		assert.Equal(t, uint32(1), entry.Meta.Generation)
		assert.Positive(t, entry.Meta.TTL)
	}
}

// ten keys that were never written
func TestBatchGetMissingRecords(t *testing.T) {
	c := newBadgerCluster(t, 3)
	client := newTestClient(t, c)

	keys, err := testutils.NewKeyGenerator(testNamespace, testSet, models.KeyTypeString).WithRandom().Range(10)
	require.NoError(t, err)

	entries, err := client.BatchGet(context.Background(), keys)
	require.NoError(t, err)
	require.Len(t, entries, len(keys))

	for i, entry := range entries {
		assert.True(t, keys[i].Equal(entry.Key))
		assert.Equal(t, models.StatusRecordNotFound, entry.Status)
		assert.Nil(t, entry.Record)
	}
}

// a thousand keys across nodes
func TestBatchGetLargeBatch(t *testing.T) {
	c := newBadgerCluster(t, 4)
	client := newTestClient(t, c)

	written, keys := seed(t, c, 1000, models.KeyTypeInteger)

	entries, err := client.BatchGet(context.Background(), keys)
	require.NoError(t, err)
	require.Len(t, entries, 1000)

	for i, entry := range entries {
		require.True(t, keys[i].Equal(entry.Key))
		require.Equal(t, models.StatusOK, entry.Status)
		require.Equal(t, written[keys[i].ID()], entry.Record)
	}
}

func TestBatchGetMixedFoundAndMissing(t *testing.T) {
	c := newBadgerCluster(t, 2)
	client := newTestClient(t, c)

	written, existing := seed(t, c, 5, models.KeyTypeBytes)
	missing, err := testutils.NewKeyGenerator(testNamespace, testSet, models.KeyTypeBytes).WithPrefix("missing-").Range(5)
	require.NoError(t, err)

	var keys []models.Key
	for i := range existing {
		keys = append(keys, existing[i], missing[i])
	}

	entries, err := client.BatchGet(context.Background(), keys)
	require.NoError(t, err)
	require.Len(t, entries, len(keys))

	for i, entry := range entries {
		if i%2 == 0 {
			assert.Equal(t, models.StatusOK, entry.Status)
			assert.Equal(t, written[keys[i].ID()], entry.Record)
		} else {
			assert.Equal(t, models.StatusRecordNotFound, entry.Status)
		}
	}
}

func TestBatchGetDuplicateKeys(t *testing.T) {
	c := newBadgerCluster(t, 2)
	client := newTestClient(t, c)

	_, keys := seed(t, c, 2, models.KeyTypeString)
	input := []models.Key{keys[0], keys[1], keys[0]}

	entries, err := client.BatchGet(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, entries[0].Record, entries[2].Record)
	entries[2].Record["b"].([]byte)[0] = 0xff
	assert.NotEqual(t, entries[0].Record["b"], entries[2].Record["b"])
}

func TestBatchGetInvalidInput(t *testing.T) {
	store := mocks.NewMockRecordStore()
	c, err := cluster.New(cluster.Config{}, cluster.NewNode("node-0", store))
	require.NoError(t, err)
	client := newTestClient(t, c)

	valid, err := models.NewKey(testNamespace, testSet, "k")
	require.NoError(t, err)

	testCases := []struct {
		desc string
		keys []models.Key
	}{
		{desc: "nil keys", keys: nil},
		{desc: "empty keys", keys: []models.Key{}},
		{desc: "malformed key", keys: []models.Key{valid, {Namespace: "", Set: testSet, UserKey: "k"}}},
		{desc: "unsupported user key", keys: []models.Key{{Namespace: testNamespace, UserKey: 1.5}}},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			entries, err := client.BatchGet(context.Background(), tc.keys)
			require.ErrorIs(t, err, models.ErrInvalidArgument)
			assert.Nil(t, entries)
		})
	}

	policy := models.DefaultBatchPolicy()
	policy.FilterExpression = "i >"
	_, err = client.BatchGetWithPolicy(context.Background(), []models.Key{valid}, policy)
	require.ErrorIs(t, err, models.ErrInvalidArgument)

	assert.Zero(t, store.GetCalls.Load())
}

func TestBatchGetClusterUnavailable(t *testing.T) {
	node := cluster.NewNode("node-0", mocks.NewMockRecordStore())
	c, err := cluster.New(cluster.Config{}, node)
	require.NoError(t, err)
	client := newTestClient(t, c)

	node.SetActive(false)

	key, err := models.NewKey(testNamespace, testSet, "k")
	require.NoError(t, err)

	_, err = client.BatchGet(context.Background(), []models.Key{key})
	require.ErrorIs(t, err, models.ErrClusterUnavailable)
}

func TestBatchGetCancelled(t *testing.T) {
	store := mocks.NewMockRecordStore()
	store.GetFunc = func(ctx context.Context, _ models.Key) (models.Record, models.Metadata, error) {
		<-ctx.Done()
		return nil, models.Metadata{}, ctx.Err()
	}
	c, err := cluster.New(cluster.Config{}, cluster.NewNode("node-0", store))
	require.NoError(t, err)

	policy := models.DefaultBatchPolicy()
	policy.SocketTimeout = 0
	policy.TotalTimeout = 50 * time.Millisecond
	client := newTestClient(t, c, WithPolicy(policy))

	keys, err := testutils.NewKeyGenerator(testNamespace, testSet, models.KeyTypeString).Range(5)
	require.NoError(t, err)

	entries, err := client.BatchGet(context.Background(), keys)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, entries)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.BatchGet(ctx, keys)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBatchGetAsync(t *testing.T) {
	c := newBadgerCluster(t, 2)
	client := newTestClient(t, c)

	written, keys := seed(t, c, 20, models.KeyTypeInteger)

	results := client.BatchGetAsync(context.Background(), keys)

	var result BatchResult
	select {
	case result = <-results:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for async batch")
	}

	require.NoError(t, result.Err)
	require.Len(t, result.Entries, len(keys))
	for i, entry := range result.Entries {
		assert.Equal(t, written[keys[i].ID()], entry.Record)
	}

	_, open := <-results
	assert.False(t, open)

	failed := <-client.BatchGetAsync(context.Background(), nil)
	require.ErrorIs(t, failed.Err, models.ErrInvalidArgument)
}

func TestBatchSelect(t *testing.T) {
	c := newBadgerCluster(t, 2)
	client := newTestClient(t, c)

	written, keys := seed(t, c, 5, models.KeyTypeString)

	entries, err := client.BatchSelect(context.Background(), keys, "i", "s")
	require.NoError(t, err)

	for i, entry := range entries {
		full := written[keys[i].ID()]
		assert.Equal(t, models.Record{"i": full["i"], "s": full["s"]}, entry.Record)
	}
}

func TestBatchGetWithFilter(t *testing.T) {
	c := newBadgerCluster(t, 2)
	client := newTestClient(t, c)

	written, keys := seed(t, c, 10, models.KeyTypeString)

	policy := client.Policy()
	policy.FilterExpression = "i >= 5"

	entries, err := client.BatchGetWithPolicy(context.Background(), keys, policy)
	require.NoError(t, err)

	for i, entry := range entries {
		if written[keys[i].ID()]["i"].(int64) >= 5 {
			assert.Equal(t, models.StatusOK, entry.Status)
		} else {
			assert.Equal(t, models.StatusFilteredOut, entry.Status)
			assert.Nil(t, entry.Record)
		}
	}
}

func TestBatchGetNamespaceNotServed(t *testing.T) {
	c := newBadgerCluster(t, 2)
	client := newTestClient(t, c)

	_, keys := seed(t, c, 1, models.KeyTypeString)
	other, err := models.NewKey("unknown", testSet, "k")
	require.NoError(t, err)

	entries, err := client.BatchGet(context.Background(), []models.Key{keys[0], other})
	require.NoError(t, err)
	assert.Equal(t, models.StatusOK, entries[0].Status)
	assert.Equal(t, models.StatusNamespaceNotFound, entries[1].Status)
}

func TestBatchGetRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	c := newBadgerCluster(t, 2)
	client := newTestClient(t, c,
		WithMeter(observability.NewMeterFromProvider(provider, "test")),
		WithTracer(observability.NoopTracer()))

	_, keys := seed(t, c, 3, models.KeyTypeString)
	_, err := client.BatchGet(context.Background(), keys)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := make(map[string]bool)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names["batchget_batches_total"])
	assert.True(t, names["batchget_key_outcomes_total"])
	assert.True(t, names["batchget_batch_duration_seconds"])
}

func TestBatchGetConcurrentBatches(t *testing.T) {
	c := newBadgerCluster(t, 3)
	client := newTestClient(t, c)

	written, keys := seed(t, c, 100, models.KeyTypeInteger)

	results := make([]<-chan BatchResult, 8)
	for i := range results {
		results[i] = client.BatchGetAsync(context.Background(), keys)
	}

	for _, ch := range results {
		result := <-ch
		require.NoError(t, result.Err)
		for i, entry := range result.Entries {
			require.Equal(t, written[keys[i].ID()], entry.Record)
		}
	}
}

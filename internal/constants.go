package internal

import "time"

// Default values
const (
	// Cluster constants
	PartitionCount             = 4096
	DefaultMaxBatchKeysPerNode = 5000

	// Batch policy defaults
	DefaultBatchTotalTimeout        = 10 * time.Second
	DefaultBatchSocketTimeout       = time.Second
	DefaultBatchMaxRetries          = 2
	DefaultBatchSleepBetweenRetries = 10 * time.Millisecond
	DefaultBatchConcurrentNodes     = 0
	DefaultBatchNodeConcurrency     = 16

	// Role constants
	RoleServer = "server"
	RoleGet    = "get"

	// Store backend constants
	StoreBackendBadger   = "badger"
	StoreBackendNATS     = "nats"
	StoreBackendPostgres = "postgres"

	// NATS constants
	NATSDefaultBucketPrefix = "batchget"
	NATSMaxConnectionWait   = 2 * time.Minute
	NATSConnectionTimeout   = 5 * time.Second
	NATSConnectionRetries   = 12
	NATSInitialRetryDelay   = time.Second
	NATSMaxRetryDelay       = 10 * time.Second
	NATSKeyValueHistory     = 1

	// Postgres constants
	PostgresMaxConns          = 25
	PostgresMinConns          = 5
	PostgresMaxConnectRetries = 5
	PostgresInitialRetryDelay = 500 * time.Millisecond
	PostgresMaxRetryDelay     = 5 * time.Second
)

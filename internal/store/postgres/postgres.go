package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/puddle/v2"

	"github.com/glassflow/batchget/internal"
	"github.com/glassflow/batchget/internal/codec"
	"github.com/glassflow/batchget/internal/models"
	"github.com/glassflow/batchget/internal/store"
)

const connectionTimeout = 5 * time.Second

// Storage owns the connection pool shared by the node stores.
type Storage struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres connects to Postgres, retrying with backoff until the pool answers a ping.
func NewPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.ErrorContext(ctx, "failed to parse postgres config",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	config.MaxConns = internal.PostgresMaxConns
	config.MinConns = internal.PostgresMinConns
	config.MaxConnLifetime = 5 * time.Minute

	var pool *pgxpool.Pool
	retryDelay := internal.PostgresInitialRetryDelay

	for i := range internal.PostgresMaxConnectRetries {
		pool, err = connect(ctx, config)
		if err == nil {
			break
		}

		if i < internal.PostgresMaxConnectRetries-1 {
			select {
			case <-time.After(retryDelay):
				logger.InfoContext(ctx, "retrying postgres connection",
					slog.Int("attempt", i+2),
					slog.Int("max_attempts", internal.PostgresMaxConnectRetries),
					slog.String("retry_delay", retryDelay.String()))
			case <-ctx.Done():
				return nil, fmt.Errorf("timeout during retry delay for Postgres: %w", ctx.Err())
			}
			retryDelay = min(time.Duration(float64(retryDelay)*1.5), internal.PostgresMaxRetryDelay)
		}
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to connect to postgres after retries",
			slog.Int("max_attempts", internal.PostgresMaxConnectRetries),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to connect to Postgres after %d attempts: %w", internal.PostgresMaxConnectRetries, err)
	}

	logger.InfoContext(ctx, "postgres connection established",
		slog.Int("max_conns", internal.PostgresMaxConns),
		slog.Int("min_conns", internal.PostgresMinConns))

	return &Storage{pool: pool, logger: logger}, nil
}

func connect(ctx context.Context, config *pgxpool.Config) (*pgxpool.Pool, error) {
	poolCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(poolCtx, config)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(poolCtx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// NodeStore returns the record store of node. Node stores share the pool; closing
// the Storage closes them all.
func (s *Storage) NodeStore(node string) *RecordStore {
	return &RecordStore{
		pool: s.pool,
		node: node,
		now:  time.Now,
	}
}

func (s *Storage) Close() error {
	s.pool.Close()
	return nil
}

// RecordStore keeps one node's records in the shared records table.
type RecordStore struct {
	pool *pgxpool.Pool
	node string
	now  func() time.Time
}

var _ store.RecordStore = (*RecordStore)(nil)

func (s *RecordStore) Get(ctx context.Context, key models.Key) (models.Record, models.Metadata, error) {
	var (
		data       []byte
		generation int32
		expiresAt  *time.Time
	)

	err := s.pool.QueryRow(ctx, `
		SELECT data, generation, expires_at
		FROM records
		WHERE node = $1 AND namespace = $2 AND digest = $3
	`, s.node, key.Namespace, key.DigestHex()).Scan(&data, &generation, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.Metadata{}, models.ErrRecordNotFound
		}
		return nil, models.Metadata{}, mapError(fmt.Errorf("get record: %w", err))
	}

	entry, err := codec.Decode(data)
	if err != nil {
		return nil, models.Metadata{}, err
	}

	if err := store.CheckKey(key, entry); err != nil {
		return nil, models.Metadata{}, err
	}

	entry.Generation = uint32(generation)
	entry.ExpiresAt = time.Time{}
	if expiresAt != nil {
		entry.ExpiresAt = *expiresAt
	}

	now := s.now()
	if entry.Expired(now) {
		return nil, models.Metadata{}, models.ErrRecordNotFound
	}

	return entry.Record, entry.Metadata(now), nil
}

// Put upserts the record. An expired previous version restarts the generation count.
func (s *RecordStore) Put(ctx context.Context, key models.Key, record models.Record, meta models.Metadata) error {
	now := s.now()
	expires := codec.ExpiresAt(now, meta.TTL)

	data, err := codec.Encode(codec.Entry{
		Key:       key,
		Record:    record,
		ExpiresAt: expires,
	})
	if err != nil {
		return err
	}

	var expiresAt *time.Time
	if !expires.IsZero() {
		expiresAt = &expires
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO records (node, namespace, digest, data, generation, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5, $6)
		ON CONFLICT (node, namespace, digest) DO UPDATE SET
			data = EXCLUDED.data,
			generation = CASE
				WHEN records.expires_at IS NOT NULL AND records.expires_at <= EXCLUDED.updated_at THEN 1
				ELSE records.generation + 1
			END,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`, s.node, key.Namespace, key.DigestHex(), data, expiresAt, now)
	if err != nil {
		return mapError(fmt.Errorf("put record: %w", err))
	}

	return nil
}

// Close is a no-op, the pool is closed by Storage.Close.
func (s *RecordStore) Close() error {
	return nil
}

func mapError(err error) error {
	var (
		netErr     net.Error
		connectErr *pgconn.ConnectError
	)

	switch {
	case errors.Is(err, puddle.ErrClosedPool),
		errors.As(err, &connectErr),
		errors.As(err, &netErr) && !netErr.Timeout():
		return fmt.Errorf("%w: %w", models.ErrConnection, err)
	default:
		return err
	}
}

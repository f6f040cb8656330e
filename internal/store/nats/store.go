package nats

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/glassflow/batchget/internal"
	"github.com/glassflow/batchget/internal/codec"
	"github.com/glassflow/batchget/internal/models"
	"github.com/glassflow/batchget/internal/store"
)

const putConflictAttempts = 5

// RecordStore keeps one node's records in a JetStream key-value bucket. Expiry is
// tracked per record in the stored envelope.
type RecordStore struct {
	kv  jetstream.KeyValue
	now func() time.Time
}

var _ store.RecordStore = (*RecordStore)(nil)

// BucketName is the bucket holding the records of node.
func BucketName(prefix, node string) string {
	return prefix + "-" + node
}

func NewRecordStore(ctx context.Context, js jetstream.JetStream, bucket string) (*RecordStore, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{ //nolint:exhaustruct // optional config
		Bucket:      bucket,
		History:     internal.NATSKeyValueHistory,
		Description: "batchget node records",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get KeyValue store %s: %w", bucket, err)
	}

	return &RecordStore{
		kv:  kv,
		now: time.Now,
	}, nil
}

func storageKey(key models.Key) string {
	return hex.EncodeToString([]byte(key.Namespace)) + "." + key.DigestHex()
}

func (s *RecordStore) Get(ctx context.Context, key models.Key) (models.Record, models.Metadata, error) {
	item, err := s.kv.Get(ctx, storageKey(key))
	if err != nil {
		return nil, models.Metadata{}, mapError(err)
	}

	entry, err := codec.Decode(item.Value())
	if err != nil {
		return nil, models.Metadata{}, err
	}

	if err := store.CheckKey(key, entry); err != nil {
		return nil, models.Metadata{}, err
	}

	now := s.now()
	if entry.Expired(now) {
		return nil, models.Metadata{}, models.ErrRecordNotFound
	}

	return entry.Record, entry.Metadata(now), nil
}

// Put writes with optimistic concurrency on the bucket revision so the generation
// counter stays exact under concurrent writers.
func (s *RecordStore) Put(ctx context.Context, key models.Key, record models.Record, meta models.Metadata) error {
	err := retry.Do(
		func() error {
			return s.put(ctx, key, record, meta)
		},
		retry.Context(ctx),
		retry.Attempts(putConflictAttempts),
		retry.Delay(time.Millisecond),
		retry.RetryIf(isConflict),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return mapError(err)
	}

	return nil
}

func (s *RecordStore) put(ctx context.Context, key models.Key, record models.Record, meta models.Metadata) error {
	sk := storageKey(key)

	var (
		revision   uint64
		generation = uint32(1)
	)

	previous, err := s.kv.Get(ctx, sk)
	switch {
	case err == nil:
		revision = previous.Revision()
		if entry, err := codec.Decode(previous.Value()); err == nil {
			generation = entry.Generation + 1
		}
	case errors.Is(err, jetstream.ErrKeyNotFound), errors.Is(err, jetstream.ErrKeyDeleted):
	default:
		return fmt.Errorf("failed to get value from KeyValue store: %w", err)
	}

	data, err := codec.Encode(codec.Entry{
		Key:        key,
		Record:     record,
		Generation: generation,
		ExpiresAt:  codec.ExpiresAt(s.now(), meta.TTL),
	})
	if err != nil {
		return err
	}

	if revision == 0 {
		_, err = s.kv.Create(ctx, sk, data)
	} else {
		_, err = s.kv.Update(ctx, sk, data, revision)
	}
	if err != nil {
		return fmt.Errorf("failed to put value in KeyValue store: %w", err)
	}

	return nil
}

// Close is a no-op: the connection is owned by the caller.
func (s *RecordStore) Close() error {
	return nil
}

func isConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}

	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

func mapError(err error) error {
	switch {
	case errors.Is(err, jetstream.ErrKeyNotFound), errors.Is(err, jetstream.ErrKeyDeleted):
		return models.ErrRecordNotFound
	case errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrNoResponders),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrConnectionDraining):
		return fmt.Errorf("%w: %w", models.ErrConnection, err)
	default:
		return err
	}
}

package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/glassflow/batchget/internal/codec"
	"github.com/glassflow/batchget/internal/models"
	"github.com/glassflow/batchget/internal/store"
)

// OpenDB opens a badger database in dir, or in memory when inMemory is set.
func OpenDB(dir string, inMemory bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil)
	if inMemory {
		opts = badger.DefaultOptions("").
			WithInMemory(true).
			WithMemTableSize(16 << 20).
			WithLogger(nil).
			WithLoggingLevel(badger.ERROR)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	return db, nil
}

// RecordStore keeps one node's records in a badger database. Expiry uses badger's
// native entry TTL.
type RecordStore struct {
	db  *badger.DB
	now func() time.Time
}

var _ store.RecordStore = (*RecordStore)(nil)

func NewRecordStore(db *badger.DB) *RecordStore {
	return &RecordStore{
		db:  db,
		now: time.Now,
	}
}

func storageKey(key models.Key) []byte {
	return []byte(key.Namespace + "/" + key.DigestHex())
}

func (s *RecordStore) Get(ctx context.Context, key models.Key) (models.Record, models.Metadata, error) {
	select {
	case <-ctx.Done():
		return nil, models.Metadata{}, ctx.Err()
	default:
	}

	var entry codec.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storageKey(key))
		if err != nil {
			return err
		}

		value, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("read value: %w", err)
		}

		entry, err = codec.Decode(value)
		return err
	})
	if err != nil {
		return nil, models.Metadata{}, mapError(err)
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

func (s *RecordStore) Put(ctx context.Context, key models.Key, record models.Record, meta models.Metadata) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		generation := uint32(1)

		item, err := txn.Get(storageKey(key))
		switch {
		case err == nil:
			err = item.Value(func(val []byte) error {
				previous, err := codec.Decode(val)
				if err != nil {
					return err
				}
				generation = previous.Generation + 1
				return nil
			})
			if err != nil {
				return fmt.Errorf("read previous generation: %w", err)
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("failed to check key: %w", err)
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

		entry := badger.NewEntry(storageKey(key), data)
		if meta.TTL > 0 {
			entry = entry.WithTTL(meta.TTL)
		}

		if err := txn.SetEntry(entry); err != nil {
			return fmt.Errorf("failed to set entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return mapError(err)
	}

	return nil
}

func (s *RecordStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close badger db: %w", err)
	}
	return nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return models.ErrRecordNotFound
	case errors.Is(err, badger.ErrDBClosed):
		return fmt.Errorf("%w: %w", models.ErrConnection, err)
	default:
		return err
	}
}

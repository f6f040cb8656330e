package testutils

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/glassflow/batchget/internal/models"
)

// KeyGenerator produces keys of one user key type within a namespace and set.
type KeyGenerator struct {
	Namespace string
	Set       string
	Type      models.KeyType
	Prefix    string
	Random    bool

	next atomic.Int64
}

func NewKeyGenerator(namespace, set string, keyType models.KeyType) *KeyGenerator {
	return &KeyGenerator{
		Namespace: namespace,
		Set:       set,
		Type:      keyType,
	}
}

func (g *KeyGenerator) WithPrefix(prefix string) *KeyGenerator {
	g.Prefix = prefix
	return g
}

func (g *KeyGenerator) WithRandom() *KeyGenerator {
	g.Random = true
	return g
}

func (g *KeyGenerator) Next() (models.Key, error) {
	n := g.next.Add(1)

	var userKey any
	switch g.Type {
	case models.KeyTypeInteger:
		if g.Random {
			id := uuid.New()
			userKey = int64(id.ID())
		} else {
			userKey = n
		}
	case models.KeyTypeBytes:
		if g.Random {
			id := uuid.New()
			userKey = append([]byte(g.Prefix), id[:]...)
		} else {
			userKey = []byte(fmt.Sprintf("%s%d", g.Prefix, n))
		}
	default:
		if g.Random {
			userKey = g.Prefix + uuid.NewString()
		} else {
			userKey = fmt.Sprintf("%s%d", g.Prefix, n)
		}
	}

	return models.NewKey(g.Namespace, g.Set, userKey)
}

// Range returns the next n keys.
func (g *KeyGenerator) Range(n int) ([]models.Key, error) {
	keys := make([]models.Key, 0, n)
	for range n {
		key, err := g.Next()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// ValueGenerator produces one bin value per call.
type ValueGenerator func(n int) models.Value

func IntegerValue() ValueGenerator {
	return func(n int) models.Value { return int64(n) }
}

func StringValue(prefix string) ValueGenerator {
	return func(n int) models.Value { return fmt.Sprintf("%s%d", prefix, n) }
}

func BytesValue(size int) ValueGenerator {
	return func(n int) models.Value {
		b := make([]byte, size)
		for i := range b {
			b[i] = byte(n + i)
		}
		return b
	}
}

func ConstantValue(v models.Value) ValueGenerator {
	return func(int) models.Value { return models.CloneValue(v) }
}

// RecordGenerator produces records with one generated value per bin.
type RecordGenerator struct {
	Bins map[string]ValueGenerator
}

func NewRecordGenerator(bins map[string]ValueGenerator) *RecordGenerator {
	return &RecordGenerator{Bins: bins}
}

func (g *RecordGenerator) Generate(n int) models.Record {
	record := make(models.Record, len(g.Bins))
	for name, gen := range g.Bins {
		record[name] = gen(n)
	}
	return record
}

// MetadataGenerator produces write metadata with a constant TTL.
type MetadataGenerator struct {
	TTL time.Duration
}

func (g MetadataGenerator) Generate() models.Metadata {
	return models.Metadata{TTL: g.TTL}
}

// RecordWriter is anything records can be written through: a cluster or a single
// node store.
type RecordWriter interface {
	Put(ctx context.Context, key models.Key, record models.Record, meta models.Metadata) error
}

// Put writes n generated records and returns them keyed by models.Key.ID, together
// with the keys in write order.
func Put(
	ctx context.Context,
	writer RecordWriter,
	n int,
	kgen *KeyGenerator,
	rgen *RecordGenerator,
	mgen MetadataGenerator,
) (map[string]models.Record, []models.Key, error) {
	written := make(map[string]models.Record, n)
	keys := make([]models.Key, 0, n)

	for i := range n {
		key, err := kgen.Next()
		if err != nil {
			return nil, nil, fmt.Errorf("generate key %d: %w", i, err)
		}

		record := rgen.Generate(i)
		if err := writer.Put(ctx, key, record, mgen.Generate()); err != nil {
			return nil, nil, fmt.Errorf("put %s: %w", key, err)
		}

		written[key.ID()] = record
		keys = append(keys, key)
	}

	return written, keys, nil
}

package store

import (
	"context"
	"fmt"

	"github.com/glassflow/batchget/internal/codec"
	"github.com/glassflow/batchget/internal/models"
)

// RecordStore is the storage of a single cluster node. Implementations are safe for
// concurrent use.
//
// Get returns models.ErrRecordNotFound for a missing or expired record, a
// *models.StatusError for a server status, an error wrapping models.ErrConnection when
// the node cannot be reached and models.ErrBatchRejected when the node refuses work.
type RecordStore interface {
	Get(ctx context.Context, key models.Key) (models.Record, models.Metadata, error)
	Put(ctx context.Context, key models.Key, record models.Record, meta models.Metadata) error
	Close() error
}

// CheckKey guards against digest collisions: the stored entry must belong to the
// requested key.
func CheckKey(requested models.Key, entry codec.Entry) error {
	if !requested.Equal(entry.Key) {
		return models.NewStatusError(
			int(models.StatusKeyMismatch),
			fmt.Sprintf("requested %s, stored %s", requested, entry.Key),
		)
	}
	return nil
}

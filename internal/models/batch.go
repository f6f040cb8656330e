package models

import (
	"fmt"
	"time"

	"github.com/glassflow/batchget/internal"
)

// Metadata is record metadata. On write a zero TTL means the record never expires; on
// read TTL is the remaining lifetime and Generation counts writes to the record.
type Metadata struct {
	TTL        time.Duration
	Generation uint32
}

// BatchEntry is the outcome of one input key. Record is set iff Status is StatusOK.
type BatchEntry struct {
	Key    Key
	Status Status
	Record Record
	Meta   *Metadata
}

func (e BatchEntry) Found() bool {
	return e.Status == StatusOK
}

// Clone deep-copies the record and metadata so the copy shares no memory with e.
func (e BatchEntry) Clone() BatchEntry {
	clone := BatchEntry{
		Key:    e.Key,
		Status: e.Status,
		Record: e.Record.Clone(),
	}

	if e.Meta != nil {
		meta := *e.Meta
		clone.Meta = &meta
	}

	return clone
}

type BatchPolicy struct {
	// TotalTimeout bounds the whole call, zero means no bound beyond the caller's context.
	TotalTimeout time.Duration
	// SocketTimeout bounds each key lookup attempt.
	SocketTimeout       time.Duration
	MaxRetries          int
	SleepBetweenRetries time.Duration
	// ConcurrentNodes limits node sub-batches in flight, zero means unbounded.
	ConcurrentNodes int
	NodeConcurrency int

	FilterExpression string
	BinNames         []string
}

func DefaultBatchPolicy() BatchPolicy {
	return BatchPolicy{
		TotalTimeout:        internal.DefaultBatchTotalTimeout,
		SocketTimeout:       internal.DefaultBatchSocketTimeout,
		MaxRetries:          internal.DefaultBatchMaxRetries,
		SleepBetweenRetries: internal.DefaultBatchSleepBetweenRetries,
		ConcurrentNodes:     internal.DefaultBatchConcurrentNodes,
		NodeConcurrency:     internal.DefaultBatchNodeConcurrency,
	}
}

func (p BatchPolicy) Validate() error {
	switch {
	case p.TotalTimeout < 0:
		return fmt.Errorf("%w: negative total timeout", ErrInvalidArgument)
	case p.SocketTimeout < 0:
		return fmt.Errorf("%w: negative socket timeout", ErrInvalidArgument)
	case p.MaxRetries < 0:
		return fmt.Errorf("%w: negative max retries", ErrInvalidArgument)
	case p.SleepBetweenRetries < 0:
		return fmt.Errorf("%w: negative sleep between retries", ErrInvalidArgument)
	case p.ConcurrentNodes < 0:
		return fmt.Errorf("%w: negative concurrent nodes", ErrInvalidArgument)
	case p.NodeConcurrency < 0:
		return fmt.Errorf("%w: negative node concurrency", ErrInvalidArgument)
	}

	for _, bin := range p.BinNames {
		if bin == "" {
			return fmt.Errorf("%w: empty bin name", ErrInvalidArgument)
		}
	}

	return nil
}

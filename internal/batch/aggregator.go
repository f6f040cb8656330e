package batch

import (
	"fmt"
	"sync/atomic"

	"github.com/glassflow/batchget/internal/models"
)

// Group is one distinct key and the input positions it serves.
type Group struct {
	Key   models.Key
	Slots []int
}

// Outcome is the result of looking up one group's key.
type Outcome struct {
	Status models.Status
	Record models.Record
	Meta   *models.Metadata
}

// Aggregator collects outcomes into fixed slots aligned with the input keys. Slot
// indices are computed once at construction, so concurrent deliveries for distinct
// groups never touch the same slot and need no lock.
type Aggregator struct {
	entries   []models.BatchEntry
	groups    []Group
	delivered []atomic.Bool
	filled    atomic.Int64
}

func NewAggregator(keys []models.Key) *Aggregator {
	a := &Aggregator{
		entries: make([]models.BatchEntry, len(keys)),
	}

	index := make(map[string]int, len(keys))
	for i, key := range keys {
		a.entries[i].Key = key

		id := key.ID()
		if g, ok := index[id]; ok {
			a.groups[g].Slots = append(a.groups[g].Slots, i)
			continue
		}

		index[id] = len(a.groups)
		a.groups = append(a.groups, Group{Key: key, Slots: []int{i}})
	}

	a.delivered = make([]atomic.Bool, len(a.groups))

	return a
}

func (a *Aggregator) Groups() []Group {
	return a.groups
}

func (a *Aggregator) Len() int {
	return len(a.entries)
}

// Deliver fills every slot of group g. The first slot gets the outcome as is, the
// others get deep copies. A second delivery for the same group is ignored.
func (a *Aggregator) Deliver(g int, outcome Outcome) {
	if !a.delivered[g].CompareAndSwap(false, true) {
		return
	}

	if outcome.Status != models.StatusOK {
		outcome.Record = nil
	}

	first := models.BatchEntry{
		Status: outcome.Status,
		Record: outcome.Record,
		Meta:   outcome.Meta,
	}

	for n, slot := range a.groups[g].Slots {
		entry := first
		if n > 0 {
			entry = first.Clone()
		}
		entry.Key = a.entries[slot].Key
		a.entries[slot] = entry
	}

	a.filled.Add(int64(len(a.groups[g].Slots)))
}

func (a *Aggregator) Complete() bool {
	return a.filled.Load() == int64(len(a.entries))
}

// Results returns the entries in input order once every slot is filled.
func (a *Aggregator) Results() ([]models.BatchEntry, error) {
	if filled := a.filled.Load(); filled != int64(len(a.entries)) {
		return nil, fmt.Errorf("%w: %d of %d slots filled", models.ErrIncompleteBatch, filled, len(a.entries))
	}
	return a.entries, nil
}

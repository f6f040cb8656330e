package mocks

import (
	"context"
	"sync/atomic"

	"github.com/glassflow/batchget/internal/models"
)

type MockRecordStore struct {
	GetFunc   func(ctx context.Context, key models.Key) (models.Record, models.Metadata, error)
	PutFunc   func(ctx context.Context, key models.Key, record models.Record, meta models.Metadata) error
	CloseFunc func() error

	GetCalls atomic.Int64
}

func NewMockRecordStore() *MockRecordStore {
	return &MockRecordStore{}
}

func (m *MockRecordStore) Get(ctx context.Context, key models.Key) (models.Record, models.Metadata, error) {
	m.GetCalls.Add(1)
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	return nil, models.Metadata{}, models.ErrRecordNotFound
}

func (m *MockRecordStore) Put(ctx context.Context, key models.Key, record models.Record, meta models.Metadata) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, key, record, meta)
	}
	return nil
}

func (m *MockRecordStore) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchEntryClone(t *testing.T) {
	key, err := NewKey("test", "set", "k")
	require.NoError(t, err)

	entry := BatchEntry{
		Key:    key,
		Status: StatusOK,
		Record: Record{"b": []byte{1}},
		Meta:   &Metadata{TTL: time.Minute, Generation: 3},
	}

	clone := entry.Clone()
	clone.Record["b"].([]byte)[0] = 2
	clone.Meta.Generation = 4

	assert.Equal(t, []byte{1}, entry.Record["b"])
	assert.Equal(t, uint32(3), entry.Meta.Generation)
	assert.True(t, clone.Found())
}

func TestBatchPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultBatchPolicy().Validate())

	policy := DefaultBatchPolicy()
	policy.MaxRetries = -1
	require.ErrorIs(t, policy.Validate(), ErrInvalidArgument)

	policy = DefaultBatchPolicy()
	policy.BinNames = []string{"a", ""}
	require.ErrorIs(t, policy.Validate(), ErrInvalidArgument)
}

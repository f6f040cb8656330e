package models

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	testCases := []struct {
		desc        string
		namespace   string
		set         string
		userKey     any
		expected    any
		expectedErr error
	}{
		{
			desc:      "string key",
			namespace: "test",
			set:       "users",
			userKey:   "k1",
			expected:  "k1",
		},
		{
			desc:      "int key normalized to int64",
			namespace: "test",
			set:       "users",
			userKey:   42,
			expected:  int64(42),
		},
		{
			desc:      "uint32 key normalized to int64",
			namespace: "test",
			userKey:   uint32(7),
			expected:  int64(7),
		},
		{
			desc:      "bytes key",
			namespace: "test",
			set:       "blobs",
			userKey:   []byte{1, 2, 3},
			expected:  []byte{1, 2, 3},
		},
		{
			desc:        "empty namespace",
			set:         "users",
			userKey:     "k1",
			expectedErr: ErrInvalidArgument,
		},
		{
			desc:        "namespace too long",
			namespace:   strings.Repeat("n", MaxNamespaceLength+1),
			userKey:     "k1",
			expectedErr: ErrInvalidArgument,
		},
		{
			desc:        "set too long",
			namespace:   "test",
			set:         strings.Repeat("s", MaxSetLength+1),
			userKey:     "k1",
			expectedErr: ErrInvalidArgument,
		},
		{
			desc:        "nil user key",
			namespace:   "test",
			expectedErr: ErrInvalidArgument,
		},
		{
			desc:        "empty bytes user key",
			namespace:   "test",
			userKey:     []byte{},
			expectedErr: ErrInvalidArgument,
		},
		{
			desc:        "uint64 key beyond int64 range",
			namespace:   "test",
			userKey:     uint64(math.MaxUint64),
			expectedErr: ErrInvalidArgument,
		},
		{
			desc:        "unsupported user key",
			namespace:   "test",
			userKey:     3.14,
			expectedErr: ErrInvalidArgument,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			key, err := NewKey(tc.namespace, tc.set, tc.userKey)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, key.UserKey)
		})
	}
}

func TestNewKeyCopiesBytes(t *testing.T) {
	raw := []byte("abc")
	key, err := NewKey("test", "set", raw)
	require.NoError(t, err)

	raw[0] = 'z'
	assert.Equal(t, []byte("abc"), key.UserKey)
}

func TestKeyLiteralIntegerUserKey(t *testing.T) {
	literal := Key{Namespace: "test", Set: "s", UserKey: 7}
	require.NoError(t, literal.Validate())
	assert.Equal(t, KeyTypeInteger, literal.Type())
	assert.Equal(t, int64(7), literal.NormalizedUserKey())

	built, err := NewKey("test", "s", int64(7))
	require.NoError(t, err)

	assert.True(t, literal.Equal(built))
	assert.Equal(t, built.ID(), literal.ID())
	assert.Equal(t, built.Digest(), literal.Digest())
	assert.Equal(t, "test/s/7", literal.String())
}

func TestKeyIdentity(t *testing.T) {
	a, err := NewKey("test", "set", int64(1))
	require.NoError(t, err)
	b, err := NewKey("test", "set", 1)
	require.NoError(t, err)
	str, err := NewKey("test", "set", "1")
	require.NoError(t, err)
	otherNs, err := NewKey("other", "set", int64(1))
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.ID(), b.ID())
	assert.Equal(t, a.Digest(), b.Digest())

	assert.False(t, a.Equal(str))
	assert.NotEqual(t, a.ID(), str.ID())
	assert.NotEqual(t, a.Digest(), str.Digest())

	assert.False(t, a.Equal(otherNs))
	assert.NotEqual(t, a.ID(), otherNs.ID())
	assert.Equal(t, a.Digest(), otherNs.Digest())

	assert.Len(t, a.DigestHex(), 16)
}

func TestKeyString(t *testing.T) {
	key, err := NewKey("test", "set", []byte{0xde, 0xad})
	require.NoError(t, err)
	assert.Equal(t, "test/set/0xdead", key.String())

	key, err = NewKey("test", "set", 10)
	require.NoError(t, err)
	assert.Equal(t, "test/set/10", key.String())
}

package models

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/cast"
)

const (
	MaxNamespaceLength = 31
	MaxSetLength       = 63
)

type KeyType uint8

const (
	KeyTypeInvalid KeyType = iota
	KeyTypeString
	KeyTypeInteger
	KeyTypeBytes
)

func (t KeyType) String() string {
	switch t {
	case KeyTypeString:
		return "string"
	case KeyTypeInteger:
		return "integer"
	case KeyTypeBytes:
		return "bytes"
	default:
		return "invalid"
	}
}

// Key identifies a record by namespace, set and user value. The user value is a
// string, any Go integer type or a byte slice; integers are treated as int64.
type Key struct {
	Namespace string
	Set       string
	UserKey   any
}

// NewKey builds a key and normalizes integer user values to int64. Byte values are
// copied so the key does not alias caller memory.
func NewKey(namespace, set string, userKey any) (Key, error) {
	key := Key{
		Namespace: namespace,
		Set:       set,
	}

	switch v := userKey.(type) {
	case []byte:
		key.UserKey = bytes.Clone(v)
	default:
		key.UserKey = normalizeUserKey(userKey)
	}

	if err := key.Validate(); err != nil {
		return Key{}, err
	}

	return key, nil
}

// normalizeUserKey converts integer user values to int64. Other values, and
// integers that do not fit an int64, are returned unchanged.
func normalizeUserKey(userKey any) any {
	switch v := userKey.(type) {
	case uint:
		if uint64(v) > math.MaxInt64 {
			return userKey
		}
	case uint64:
		if v > math.MaxInt64 {
			return userKey
		}
	case int, int8, int16, int32, uint8, uint16, uint32:
	default:
		return userKey
	}

	n, err := cast.ToInt64E(userKey)
	if err != nil {
		return userKey
	}
	return n
}

// NormalizedUserKey is the user value with integers widened to int64.
func (k Key) NormalizedUserKey() any {
	return normalizeUserKey(k.UserKey)
}

func (k Key) Type() KeyType {
	switch v := k.NormalizedUserKey().(type) {
	case string:
		return KeyTypeString
	case int64:
		return KeyTypeInteger
	case []byte:
		if v == nil {
			return KeyTypeInvalid
		}
		return KeyTypeBytes
	default:
		return KeyTypeInvalid
	}
}

// Validate reports why a key cannot be sent to the cluster.
func (k Key) Validate() error {
	switch {
	case k.Namespace == "":
		return fmt.Errorf("%w: namespace is empty", ErrInvalidArgument)
	case len(k.Namespace) > MaxNamespaceLength:
		return fmt.Errorf("%w: namespace %q exceeds %d bytes", ErrInvalidArgument, k.Namespace, MaxNamespaceLength)
	case len(k.Set) > MaxSetLength:
		return fmt.Errorf("%w: set %q exceeds %d bytes", ErrInvalidArgument, k.Set, MaxSetLength)
	case k.UserKey == nil:
		return fmt.Errorf("%w: user key is nil", ErrInvalidArgument)
	}

	switch k.Type() {
	case KeyTypeInvalid:
		return fmt.Errorf("%w: unsupported user key type %T", ErrInvalidArgument, k.UserKey)
	case KeyTypeBytes:
		if len(k.UserKey.([]byte)) == 0 {
			return fmt.Errorf("%w: user key is an empty byte slice", ErrInvalidArgument)
		}
	}

	return nil
}

func (k Key) userKeyBytes() []byte {
	switch v := k.NormalizedUserKey().(type) {
	case string:
		return []byte(v)
	case int64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v))
		return b
	case []byte:
		return v
	default:
		return nil
	}
}

// Digest hashes set, user key type and user key. The namespace is not part of the
// digest; stores scope records by namespace separately.
func (k Key) Digest() uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(k.Set)
	_, _ = h.Write([]byte{0, byte(k.Type())})
	_, _ = h.Write(k.userKeyBytes())
	return h.Sum64()
}

// DigestHex is the digest as 16 lowercase hex characters.
func (k Key) DigestHex() string {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, k.Digest())
	return hex.EncodeToString(b)
}

// ID is a canonical string identity: two keys have the same ID iff they are equal.
func (k Key) ID() string {
	return k.Namespace + "\x00" + k.Set + "\x00" + strconv.Itoa(int(k.Type())) + "\x00" + string(k.userKeyBytes())
}

func (k Key) Equal(other Key) bool {
	return k.Namespace == other.Namespace &&
		k.Set == other.Set &&
		k.Type() == other.Type() &&
		bytes.Equal(k.userKeyBytes(), other.userKeyBytes())
}

func (k Key) String() string {
	switch v := k.UserKey.(type) {
	case []byte:
		return fmt.Sprintf("%s/%s/0x%s", k.Namespace, k.Set, hex.EncodeToString(v))
	default:
		return fmt.Sprintf("%s/%s/%v", k.Namespace, k.Set, v)
	}
}

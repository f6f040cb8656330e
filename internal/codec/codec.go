package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/glassflow/batchget/internal/models"
)

const (
	magicByte     = 0x00
	formatVersion = 1
	headerSize    = 5
)

var ErrInvalidFormat = errors.New("invalid stored record")

const (
	tagInt    = "i"
	tagFloat  = "f"
	tagString = "s"
	tagBytes  = "b"
	tagBool   = "t"
	tagList   = "l"
	tagMap    = "m"
)

type taggedValue struct {
	Type  string          `json:"t"`
	Value json.RawMessage `json:"v"`
}

type envelope struct {
	Namespace  string                 `json:"ns"`
	Set        string                 `json:"set"`
	Key        taggedValue            `json:"key"`
	Generation uint32                 `json:"gen"`
	ExpiresAt  int64                  `json:"exp,omitempty"`
	Bins       map[string]taggedValue `json:"bins"`
}

// Entry is a decoded stored record. A zero ExpiresAt means the record never expires.
type Entry struct {
	Key        models.Key
	Record     models.Record
	Generation uint32
	ExpiresAt  time.Time
}

// Metadata derives read metadata relative to now.
func (e Entry) Metadata(now time.Time) models.Metadata {
	meta := models.Metadata{Generation: e.Generation}
	if !e.ExpiresAt.IsZero() {
		meta.TTL = max(e.ExpiresAt.Sub(now), 0)
	}
	return meta
}

func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// ExpiresAt converts a write TTL into an absolute expiry, zero for no expiry.
func ExpiresAt(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// Encode produces the wire format: [0x00][4-byte version][json envelope]
func Encode(entry Entry) ([]byte, error) {
	key, err := encodeValue(entry.Key.NormalizedUserKey())
	if err != nil {
		return nil, fmt.Errorf("encode user key: %w", err)
	}

	env := envelope{
		Namespace:  entry.Key.Namespace,
		Set:        entry.Key.Set,
		Key:        key,
		Generation: entry.Generation,
		Bins:       make(map[string]taggedValue, len(entry.Record)),
	}

	if !entry.ExpiresAt.IsZero() {
		env.ExpiresAt = entry.ExpiresAt.UnixMilli()
	}

	for name, value := range entry.Record {
		tv, err := encodeValue(value)
		if err != nil {
			return nil, fmt.Errorf("encode bin %q: %w", name, err)
		}
		env.Bins[name] = tv
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}

	out := make([]byte, headerSize+len(data))
	out[0] = magicByte
	binary.BigEndian.PutUint32(out[1:headerSize], formatVersion)
	copy(out[headerSize:], data)

	return out, nil
}

func Decode(data []byte) (Entry, error) {
	if len(data) < headerSize {
		return Entry{}, fmt.Errorf("%w: too short", ErrInvalidFormat)
	}

	if data[0] != magicByte {
		return Entry{}, fmt.Errorf("%w: expected magic byte 0x00, got 0x%02x", ErrInvalidFormat, data[0])
	}

	if version := binary.BigEndian.Uint32(data[1:headerSize]); version != formatVersion {
		return Entry{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidFormat, version)
	}

	var env envelope
	if err := json.Unmarshal(data[headerSize:], &env); err != nil {
		return Entry{}, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}

	userKey, err := decodeValue(env.Key)
	if err != nil {
		return Entry{}, fmt.Errorf("decode user key: %w", err)
	}

	entry := Entry{
		Key: models.Key{
			Namespace: env.Namespace,
			Set:       env.Set,
			UserKey:   userKey,
		},
		Record:     make(models.Record, len(env.Bins)),
		Generation: env.Generation,
	}

	if env.ExpiresAt != 0 {
		entry.ExpiresAt = time.UnixMilli(env.ExpiresAt)
	}

	for name, tv := range env.Bins {
		value, err := decodeValue(tv)
		if err != nil {
			return Entry{}, fmt.Errorf("decode bin %q: %w", name, err)
		}
		entry.Record[name] = value
	}

	return entry, nil
}

func encodeValue(value models.Value) (taggedValue, error) {
	var (
		tag     string
		payload any
	)

	switch v := value.(type) {
	case int64:
		tag, payload = tagInt, v
	case float64:
		tag, payload = tagFloat, v
	case string:
		tag, payload = tagString, v
	case []byte:
		tag, payload = tagBytes, v
	case bool:
		tag, payload = tagBool, v
	case []any:
		list := make([]taggedValue, len(v))
		for i, item := range v {
			tv, err := encodeValue(item)
			if err != nil {
				return taggedValue{}, fmt.Errorf("list item %d: %w", i, err)
			}
			list[i] = tv
		}
		tag, payload = tagList, list
	case map[string]any:
		m := make(map[string]taggedValue, len(v))
		for key, item := range v {
			tv, err := encodeValue(item)
			if err != nil {
				return taggedValue{}, fmt.Errorf("map entry %q: %w", key, err)
			}
			m[key] = tv
		}
		tag, payload = tagMap, m
	default:
		return taggedValue{}, fmt.Errorf("%w: unsupported value type %T", models.ErrInvalidArgument, value)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return taggedValue{}, fmt.Errorf("marshal value: %w", err)
	}

	return taggedValue{Type: tag, Value: raw}, nil
}

func decodeValue(tv taggedValue) (models.Value, error) {
	switch tv.Type {
	case tagInt:
		return unmarshalAs[int64](tv.Value)
	case tagFloat:
		return unmarshalAs[float64](tv.Value)
	case tagString:
		return unmarshalAs[string](tv.Value)
	case tagBytes:
		b, err := unmarshalAs[[]byte](tv.Value)
		if err != nil {
			return nil, err
		}
		if b == nil {
			b = []byte{}
		}
		return b, nil
	case tagBool:
		return unmarshalAs[bool](tv.Value)
	case tagList:
		items, err := unmarshalAs[[]taggedValue](tv.Value)
		if err != nil {
			return nil, err
		}
		list := make([]any, len(items))
		for i, item := range items {
			if list[i], err = decodeValue(item); err != nil {
				return nil, fmt.Errorf("list item %d: %w", i, err)
			}
		}
		return list, nil
	case tagMap:
		items, err := unmarshalAs[map[string]taggedValue](tv.Value)
		if err != nil {
			return nil, err
		}
		m := make(map[string]any, len(items))
		for key, item := range items {
			value, err := decodeValue(item)
			if err != nil {
				return nil, fmt.Errorf("map entry %q: %w", key, err)
			}
			m[key] = value
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unknown value tag %q", ErrInvalidFormat, tv.Type)
	}
}

func unmarshalAs[T any](raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	return v, nil
}

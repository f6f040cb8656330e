package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/glassflow/batchget/internal/models"
)

type batchReader interface {
	BatchGet(ctx context.Context, keys []models.Key) ([]models.BatchEntry, error)
}

type getOutput struct {
	Key        string         `json:"key"`
	Status     int            `json:"status"`
	StatusText string         `json:"status_text"`
	Record     map[string]any `json:"record,omitempty"`
	Generation *uint32        `json:"generation,omitempty"`
	TTLSeconds *int64         `json:"ttl_seconds,omitempty"`
}

// parseKeys reads ns/set/key triples. The set may be empty ("ns//key") and the
// user key may contain further slashes.
func parseKeys(raw []string, keyType string) ([]models.Key, error) {
	keys := make([]models.Key, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}

		parts := strings.SplitN(s, "/", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: key %q is not ns/set/key", models.ErrInvalidArgument, s)
		}

		var userKey any = parts[2]
		switch keyType {
		case "string":
		case "integer":
			n, err := strconv.ParseInt(parts[2], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: key %q: %w", models.ErrInvalidArgument, s, err)
			}
			userKey = n
		default:
			return nil, fmt.Errorf("%w: unknown key type %q", models.ErrInvalidArgument, keyType)
		}

		key, err := models.NewKey(parts[0], parts[1], userKey)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", s, err)
		}
		keys = append(keys, key)
	}

	return keys, nil
}

func mainGet(ctx context.Context, r batchReader, raw []string, keyType string, out io.Writer) error {
	keys, err := parseKeys(raw, keyType)
	if err != nil {
		return err
	}

	entries, err := r.BatchGet(ctx, keys)
	if err != nil {
		return fmt.Errorf("batch get: %w", err)
	}

	output := make([]getOutput, len(entries))
	for i, entry := range entries {
		output[i] = getOutput{
			Key:        entry.Key.String(),
			Status:     int(entry.Status),
			StatusText: entry.Status.String(),
		}
		if !entry.Found() {
			continue
		}

		output[i].Record = entry.Record
		if entry.Meta != nil {
			generation := entry.Meta.Generation
			ttl := int64(entry.Meta.TTL.Seconds())
			output[i].Generation = &generation
			output[i].TTLSeconds = &ttl
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	return nil
}

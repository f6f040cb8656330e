package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"github.com/glassflow/batchget/internal/models"
)

//go:generate mockgen -destination ./mocks/batch_getter_mock.go -package mocks . BatchGetter
type BatchGetter interface {
	BatchGetWithPolicy(ctx context.Context, keys []models.Key, policy models.BatchPolicy) ([]models.BatchEntry, error)
	Policy() models.BatchPolicy
	Ready() bool
}

const (
	keyTypeString  = "string"
	keyTypeInteger = "integer"
	keyTypeBytes   = "bytes"
)

type keyJSON struct {
	Namespace string `json:"namespace" doc:"Record namespace"`
	Set       string `json:"set,omitempty" doc:"Record set"`
	Key       string `json:"key" doc:"User key; integers in decimal, bytes in base64"`
	KeyType   string `json:"key_type,omitempty" doc:"string (default), integer or bytes"`
}

type entryJSON struct {
	Key        keyJSON        `json:"key"`
	Status     int            `json:"status"`
	StatusText string         `json:"status_text"`
	Record     map[string]any `json:"record,omitempty"`
	Generation *uint32        `json:"generation,omitempty"`
	TTLSeconds *int64         `json:"ttl_seconds,omitempty"`
}

type batchGetBody struct {
	Keys   []keyJSON `json:"keys" doc:"Keys to read, results keep this order"`
	Filter string    `json:"filter,omitempty" doc:"Boolean expression over record bins"`
}

type batchSelectBody struct {
	Keys   []keyJSON `json:"keys" doc:"Keys to read, results keep this order"`
	Filter string    `json:"filter,omitempty" doc:"Boolean expression over record bins"`
	Bins   []string  `json:"bins" doc:"Bins to return"`
}

type batchGetResponseBody struct {
	Entries []entryJSON `json:"entries"`
}

func BatchGetDocs() huma.Operation {
	return huma.Operation{
		OperationID: "batch-get",
		Method:      http.MethodPost,
		Summary:     "Batch get",
		Description: "Reads many records in one call, returning one entry per key in request order",
	}
}

func BatchSelectDocs() huma.Operation {
	return huma.Operation{
		OperationID: "batch-select",
		Method:      http.MethodPost,
		Summary:     "Batch select",
		Description: "Reads many records in one call, returning only the requested bins",
	}
}

type BatchGetInput struct {
	Body batchGetBody
}

type BatchSelectInput struct {
	Body batchSelectBody
}

type BatchGetResponse struct {
	Body batchGetResponseBody
}

func (h *handler) batchGet(ctx context.Context, input *BatchGetInput) (*BatchGetResponse, error) {
	return h.runBatch(ctx, input.Body, nil)
}

func (h *handler) batchSelect(ctx context.Context, input *BatchSelectInput) (*BatchGetResponse, error) {
	if len(input.Body.Bins) == 0 {
		return nil, &ErrorDetail{
			Status:  http.StatusBadRequest,
			Code:    "bad_request",
			Message: "at least one bin is required",
		}
	}

	body := batchGetBody{
		Keys:   input.Body.Keys,
		Filter: input.Body.Filter,
	}

	return h.runBatch(ctx, body, input.Body.Bins)
}

func (h *handler) runBatch(ctx context.Context, body batchGetBody, bins []string) (*BatchGetResponse, error) {
	keys, err := toKeys(body.Keys)
	if err != nil {
		return nil, batchError(err)
	}

	policy := h.batchGetter.Policy()
	policy.FilterExpression = body.Filter
	policy.BinNames = bins

	entries, err := h.batchGetter.BatchGetWithPolicy(ctx, keys, policy)
	if err != nil {
		return nil, batchError(err)
	}

	resp := &BatchGetResponse{
		Body: batchGetResponseBody{Entries: make([]entryJSON, len(entries))},
	}
	for i, entry := range entries {
		resp.Body.Entries[i] = toEntryJSON(body.Keys[i], entry)
	}

	return resp, nil
}

func toKeys(in []keyJSON) ([]models.Key, error) {
	keys := make([]models.Key, len(in))
	for i, k := range in {
		userKey, err := parseUserKey(k)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}

		keys[i] = models.Key{
			Namespace: k.Namespace,
			Set:       k.Set,
			UserKey:   userKey,
		}
	}
	return keys, nil
}

func parseUserKey(k keyJSON) (any, error) {
	switch k.KeyType {
	case "", keyTypeString:
		return k.Key, nil
	case keyTypeInteger:
		n, err := strconv.ParseInt(k.Key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: integer key %q: %w", models.ErrInvalidArgument, k.Key, err)
		}
		return n, nil
	case keyTypeBytes:
		b, err := base64.StdEncoding.DecodeString(k.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: bytes key is not base64: %w", models.ErrInvalidArgument, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: unknown key type %q", models.ErrInvalidArgument, k.KeyType)
	}
}

func toEntryJSON(key keyJSON, entry models.BatchEntry) entryJSON {
	out := entryJSON{
		Key:        key,
		Status:     int(entry.Status),
		StatusText: entry.Status.String(),
	}

	if entry.Status != models.StatusOK {
		return out
	}

	out.Record = entry.Record
	if entry.Meta != nil {
		generation := entry.Meta.Generation
		ttl := int64(entry.Meta.TTL.Seconds())
		out.Generation = &generation
		out.TTLSeconds = &ttl
	}

	return out
}

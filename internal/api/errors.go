package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/glassflow/batchget/internal/models"
)

type ErrorDetail struct {
	Status  int            `json:"status"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *ErrorDetail) Error() string {
	return e.Message
}

func (e *ErrorDetail) GetStatus() int {
	return e.Status
}

// batchError maps a call-level batch failure onto an HTTP error.
func batchError(err error) *ErrorDetail {
	detail := &ErrorDetail{
		Details: map[string]any{"error": err.Error()},
	}

	switch {
	case models.IsInvalidArgumentErr(err):
		detail.Status = http.StatusBadRequest
		detail.Code = "bad_request"
		detail.Message = "Invalid batch request"
	case models.IsClusterUnavailableErr(err):
		detail.Status = http.StatusServiceUnavailable
		detail.Code = "cluster_unavailable"
		detail.Message = "Cluster is unavailable"
	case models.IsBatchRejectedErr(err):
		detail.Status = http.StatusTooManyRequests
		detail.Code = "batch_rejected"
		detail.Message = "Batch was rejected by the cluster"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		detail.Status = http.StatusGatewayTimeout
		detail.Code = "timeout"
		detail.Message = "Batch did not complete in time"
	default:
		detail.Status = http.StatusInternalServerError
		detail.Code = "internal_error"
		detail.Message = "Unable to read batch"
	}

	return detail
}

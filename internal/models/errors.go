package models

import (
	"errors"
	"fmt"
)

var ErrInvalidArgument = errors.New("invalid argument")

func IsInvalidArgumentErr(err error) bool { return errors.Is(err, ErrInvalidArgument) }

var ErrRecordNotFound = errors.New("record not found")

func IsRecordNotFoundErr(err error) bool { return errors.Is(err, ErrRecordNotFound) }

var ErrClusterUnavailable = errors.New("cluster unavailable")

func IsClusterUnavailableErr(err error) bool { return errors.Is(err, ErrClusterUnavailable) }

var ErrBatchRejected = errors.New("batch rejected by cluster")

func IsBatchRejectedErr(err error) bool { return errors.Is(err, ErrBatchRejected) }

var ErrConnection = errors.New("connection error")

func IsConnectionErr(err error) bool { return errors.Is(err, ErrConnection) }

var ErrNamespaceNotFound = errors.New("namespace not found")

var ErrIncompleteBatch = errors.New("batch results are incomplete")

// StatusError carries a server status for a single key.
type StatusError struct {
	Status  Status
	Message string
}

func NewStatusError(code int, message string) *StatusError {
	return &StatusError{
		Status:  NormalizeStatus(code),
		Message: message,
	}
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d: %s", int(e.Status), e.Status)
	}
	return fmt.Sprintf("status %d: %s: %s", int(e.Status), e.Status, e.Message)
}

// Is lets errors.Is(err, ErrRecordNotFound) match a not-found status.
func (e *StatusError) Is(target error) bool {
	return target == ErrRecordNotFound && NormalizeStatus(int(e.Status)) == StatusRecordNotFound
}

package models

import "fmt"

// Status is the outcome code of a single key in a batch.
type Status int

const (
	StatusConnectionError   Status = -10
	StatusParamError        Status = -2
	StatusClientError       Status = -1
	StatusOK                Status = 0
	StatusServerError       Status = 1
	StatusRecordNotFound    Status = 2
	StatusRequestInvalid    Status = 4
	StatusTimeout           Status = 9
	StatusClusterError      Status = 11
	StatusKeyMismatch       Status = 19
	StatusNamespaceNotFound Status = 20
	StatusFilteredOut       Status = 27

	// legacy servers report a missing batch record as 602
	legacyStatusNotFound = 602
)

var statusNames = map[Status]string{
	StatusConnectionError:   "connection error",
	StatusParamError:        "parameter error",
	StatusClientError:       "client error",
	StatusOK:                "ok",
	StatusServerError:       "server error",
	StatusRecordNotFound:    "record not found",
	StatusRequestInvalid:    "request invalid",
	StatusTimeout:           "timeout",
	StatusClusterError:      "cluster error",
	StatusKeyMismatch:       "key mismatch",
	StatusNamespaceNotFound: "namespace not found",
	StatusFilteredOut:       "filtered out",
}

// NormalizeStatus maps a raw server code onto Status. Codes outside the known set
// are kept as opaque server errors.
func NormalizeStatus(code int) Status {
	if code == legacyStatusNotFound {
		return StatusRecordNotFound
	}
	return Status(code)
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("server error (%d)", int(s))
}

func (s Status) Known() bool {
	_, ok := statusNames[s]
	return ok
}

// Transient reports whether a lookup that ended with s may succeed when retried.
func (s Status) Transient() bool {
	return s == StatusTimeout || s == StatusConnectionError
}

package myinvois

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSearchFilter means the search filter failed local validation;
	// no request was issued.
	ErrInvalidSearchFilter = errors.New("invalid_search_filter")

	// ErrRetriesExhausted wraps the last transient error once the attempt
	// budget is spent.
	ErrRetriesExhausted = errors.New("retries_exhausted")
)

// APIError is a terminal (non-retried) authority response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("authority returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("authority returned %d", e.StatusCode)
}

type apiErrorBody struct {
	Error ErrorDetail `json:"error"`
}

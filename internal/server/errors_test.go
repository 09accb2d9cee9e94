package server

import (
	"errors"
	"net/http"
	"testing"

	credentialdomain "github.com/smallbiznis/invois/internal/credential/domain"
	"github.com/smallbiznis/invois/internal/document"
	"github.com/smallbiznis/invois/internal/myinvois"
	submissiondomain "github.com/smallbiznis/invois/internal/submission/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "request validation",
			err:        newValidationError("invoice_id", "invalid_id", "invalid invoice id"),
			wantStatus: http.StatusBadRequest,
			wantType:   "validation_error",
		},
		{
			name: "document build failure",
			err: &submissiondomain.ValidationFailedError{Errors: []document.ValidationError{
				{Code: "required", Field: "supplier.tin", Message: "supplier.tin is required"},
			}},
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "document_validation_error",
		},
		{
			name:       "authority 4xx",
			err:        &myinvois.APIError{StatusCode: 400, Code: "BadArgument", Message: "bad hash"},
			wantStatus: http.StatusBadGateway,
			wantType:   "authority_error",
		},
		{
			name:       "invalid environment",
			err:        credentialdomain.ErrInvalidEnvironment,
			wantStatus: http.StatusBadRequest,
			wantType:   "validation_error",
		},
		{
			name:       "invalid state",
			err:        submissiondomain.ErrInvalidState,
			wantStatus: http.StatusConflict,
			wantType:   "conflict",
		},
		{
			name:       "active record exists",
			err:        submissiondomain.ErrActiveRecordExists,
			wantStatus: http.StatusConflict,
			wantType:   "conflict",
		},
		{
			name:       "cancellation window expired",
			err:        submissiondomain.ErrCancellationWindowExpired,
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "cancellation_window_expired",
		},
		{
			name:       "retry budget spent",
			err:        submissiondomain.ErrRetriesExhausted,
			wantStatus: http.StatusUnprocessableEntity,
			wantType:   "retries_exhausted",
		},
		{
			name:       "record not found",
			err:        submissiondomain.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantType:   "not_found",
		},
		{
			name:       "authority unreachable",
			err:        myinvois.ErrRetriesExhausted,
			wantStatus: http.StatusServiceUnavailable,
			wantType:   "authority_unavailable",
		},
		{
			name:       "unmapped",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantType:   "internal_error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, payload := mapError(tc.err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantType, payload.Type)
		})
	}
}

func TestMapErrorWrappedSentinel(t *testing.T) {
	wrapped := errors.Join(errors.New("cancel submission"), submissiondomain.ErrCancellationWindowExpired)
	status, payload := mapError(wrapped)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "cancellation_window_expired", payload.Type)
}

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	credentialdomain "github.com/smallbiznis/invois/internal/credential/domain"
	"github.com/smallbiznis/invois/internal/myinvois"
	submissiondomain "github.com/smallbiznis/invois/internal/submission/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var buildErr *submissiondomain.ValidationFailedError
	if errors.As(err, &buildErr) {
		fields := make([]ValidationError, 0, len(buildErr.Errors))
		for _, ve := range buildErr.Errors {
			fields = append(fields, ValidationError{
				Field:   ve.Field,
				Code:    ve.Code,
				Message: ve.Message,
			})
		}
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "document_validation_error",
			Message: "document validation failed",
			Errors:  fields,
		}
	}

	var apiErr *myinvois.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway, errorPayload{
			Type:    "authority_error",
			Message: apiErr.Error(),
		}
	}

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, credentialdomain.ErrInvalidEnvironment),
		errors.Is(err, myinvois.ErrInvalidSearchFilter):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, submissiondomain.ErrInvalidState),
		errors.Is(err, submissiondomain.ErrActiveRecordExists),
		errors.Is(err, submissiondomain.ErrConcurrentUpdate):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, submissiondomain.ErrCancellationWindowExpired):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "cancellation_window_expired",
			Message: "the cancellation window for this document has passed",
		}
	case errors.Is(err, submissiondomain.ErrRetriesExhausted):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "retries_exhausted",
			Message: "the submission retry budget is spent",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, myinvois.ErrRetriesExhausted):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "authority_unavailable",
			Message: "the authority did not answer within the retry budget",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, submissiondomain.ErrNotFound),
		errors.Is(err, submissiondomain.ErrInvoiceNotFound),
		errors.Is(err, credentialdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

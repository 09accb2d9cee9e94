package myinvois

import "time"

// Overall submission statuses reported by the authority.
const (
	OverallStatusInProgress     = "in progress"
	OverallStatusValid          = "valid"
	OverallStatusPartiallyValid = "partially valid"
	OverallStatusInvalid        = "invalid"
)

// Per-document statuses reported by the authority.
const (
	DocumentStatusSubmitted = "Submitted"
	DocumentStatusValid     = "Valid"
	DocumentStatusInvalid   = "Invalid"
	DocumentStatusCancelled = "Cancelled"
)

// SubmitDocument is one document inside a submission batch.
type SubmitDocument struct {
	Format       string `json:"format"`
	Document     string `json:"document"`
	DocumentHash string `json:"documentHash"`
	CodeNumber   string `json:"codeNumber"`
}

type submitRequest struct {
	Documents []SubmitDocument `json:"documents"`
}

// ErrorDetail is the authority's structured error for one document.
type ErrorDetail struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Target  string        `json:"target,omitempty"`
	Details []ErrorDetail `json:"details,omitempty"`
}

// AcceptedDocument correlates an assigned authority uuid back to the
// caller-supplied code number.
type AcceptedDocument struct {
	UUID              string `json:"uuid"`
	InvoiceCodeNumber string `json:"invoiceCodeNumber"`
}

// RejectedDocument carries the per-document rejection detail.
type RejectedDocument struct {
	InvoiceCodeNumber string      `json:"invoiceCodeNumber"`
	Error             ErrorDetail `json:"error"`
}

// SubmitResult partitions a batch into accepted and rejected documents.
// Callers must not assume uniform outcomes.
type SubmitResult struct {
	SubmissionUID     string             `json:"submissionUid"`
	AcceptedDocuments []AcceptedDocument `json:"acceptedDocuments"`
	RejectedDocuments []RejectedDocument `json:"rejectedDocuments"`
}

// DocumentSummary is one document's coarse state inside a submission.
type DocumentSummary struct {
	UUID              string `json:"uuid"`
	LongID            string `json:"longId"`
	InvoiceCodeNumber string `json:"internalId"`
	TypeName          string `json:"typeName"`
	Status            string `json:"status"`
	DateTimeValidated string `json:"dateTimeValidated,omitempty"`
}

// SubmissionStatus is the coarse, possibly paginated submission outcome.
type SubmissionStatus struct {
	SubmissionUID    string            `json:"submissionUid"`
	DocumentCount    int               `json:"documentCount"`
	DateTimeReceived time.Time         `json:"dateTimeReceived"`
	OverallStatus    string            `json:"overallStatus"`
	DocumentSummary  []DocumentSummary `json:"documentSummary"`
}

// ValidationStepResult is one validator's outcome for a document.
type ValidationStepResult struct {
	Name   string       `json:"name"`
	Status string       `json:"status"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// ValidationResults is the authoritative validation outcome for a document.
type ValidationResults struct {
	Status          string                 `json:"status"`
	ValidationSteps []ValidationStepResult `json:"validationSteps"`
}

// DocumentDetails is the full validation result and metadata for a document.
type DocumentDetails struct {
	UUID              string             `json:"uuid"`
	SubmissionUID     string             `json:"submissionUid"`
	LongID            string             `json:"longId"`
	InternalID        string             `json:"internalId"`
	TypeName          string             `json:"typeName"`
	Status            string             `json:"status"`
	DateTimeValidated time.Time          `json:"dateTimeValidated"`
	ValidationResults *ValidationResults `json:"validationResults,omitempty"`
}

// RawDocument is the stored document payload plus metadata.
type RawDocument struct {
	UUID          string    `json:"uuid"`
	SubmissionUID string    `json:"submissionUid"`
	LongID        string    `json:"longId"`
	InternalID    string    `json:"internalId"`
	Status        string    `json:"status"`
	Document      string    `json:"document"`
	DateTimeReceived time.Time `json:"dateTimeReceived"`
}

// SearchFilter narrows a document search. A complete submission-date or
// issue-date range is mandatory and may span at most 31 days.
type SearchFilter struct {
	SubmissionDateFrom *time.Time
	SubmissionDateTo   *time.Time
	IssueDateFrom      *time.Time
	IssueDateTo        *time.Time
	DocumentType       string
	Status             string
	PageNo             int
	PageSize           int
}

// SearchDocument is one hit in a search result.
type SearchDocument struct {
	UUID              string    `json:"uuid"`
	SubmissionUID     string    `json:"submissionUid"`
	LongID            string    `json:"longId"`
	InternalID        string    `json:"internalId"`
	TypeName          string    `json:"typeName"`
	Status            string    `json:"status"`
	DateTimeIssued    time.Time `json:"dateTimeIssued"`
	DateTimeReceived  time.Time `json:"dateTimeReceived"`
	TotalPayableAmount string   `json:"totalPayableAmount"`
}

// SearchResult is a page of search hits.
type SearchResult struct {
	Result   []SearchDocument `json:"result"`
	Metadata struct {
		TotalPages int `json:"totalPages"`
		TotalCount int `json:"totalCount"`
	} `json:"metadata"`
}

// CancelResult acknowledges a cancellation.
type CancelResult struct {
	UUID   string `json:"uuid"`
	Status string `json:"status"`
}

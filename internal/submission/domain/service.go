package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	credentialdomain "github.com/smallbiznis/invois/internal/credential/domain"
	"github.com/smallbiznis/invois/internal/document"
)

var (
	ErrNotFound                  = errors.New("submission_not_found")
	ErrInvoiceNotFound           = errors.New("invoice_not_found")
	ErrInvalidState              = errors.New("invalid_state")
	ErrActiveRecordExists        = errors.New("active_record_exists")
	ErrConcurrentUpdate          = errors.New("concurrent_update")
	ErrRetriesExhausted          = errors.New("retries_exhausted")
	ErrCancellationWindowExpired = errors.New("cancellation_window_expired")
)

// ValidationFailedError reports the builder's field-level findings without a
// partial document.
type ValidationFailedError struct {
	Errors []document.ValidationError
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("document validation failed with %d errors", len(e.Errors))
}

// SourceInvoice is what the surrounding ERP resolves for one invoice id.
type SourceInvoice struct {
	ID       snowflake.ID
	Invoice  document.Invoice
	Supplier document.PartyInput
	Buyer    document.PartyInput
}

// InvoiceLookup is the read-only collaborator interface supplied by the
// surrounding ERP.
type InvoiceLookup interface {
	Lookup(ctx context.Context, tenantID, invoiceID snowflake.ID) (SourceInvoice, error)
}

// CreateSubmissionRequest asks for document generation for one invoice.
type CreateSubmissionRequest struct {
	TenantID         snowflake.ID
	InvoiceID        snowflake.ID
	Environment      credentialdomain.Environment
	DocumentType     document.Type
	OriginalRecordID *snowflake.ID
}

// SearchRequest filters locally persisted submission records.
type SearchRequest struct {
	TenantID  snowflake.ID
	Status    Status
	From      *time.Time
	To        *time.Time
	PageToken string
	PageSize  int
}

// SearchResponse is a page of submission records.
type SearchResponse struct {
	Records       []SubmissionRecord `json:"records"`
	NextPageToken string             `json:"next_page_token"`
	HasMore       bool               `json:"has_more"`
}

// AuthoritySearchRequest proxies a document search to the authority.
type AuthoritySearchRequest struct {
	TenantID           snowflake.ID
	Environment        credentialdomain.Environment
	SubmissionDateFrom *time.Time
	SubmissionDateTo   *time.Time
	IssueDateFrom      *time.Time
	IssueDateTo        *time.Time
	PageNo             int
	PageSize           int
}

// AuthorityDocument is one authority-side search hit.
type AuthorityDocument struct {
	UUID          string    `json:"uuid"`
	SubmissionUID string    `json:"submissionUid"`
	LongID        string    `json:"longId"`
	CodeNumber    string    `json:"codeNumber"`
	TypeName      string    `json:"typeName"`
	Status        string    `json:"status"`
	IssuedAt      time.Time `json:"issuedAt"`
	ReceivedAt    time.Time `json:"receivedAt"`
}

// Service is the submission boundary exposed to the rest of the ERP.
type Service interface {
	// CreateSubmission builds and encodes the document for an invoice. On
	// validation failure it returns a *ValidationFailedError and the record
	// stays in DRAFT.
	CreateSubmission(ctx context.Context, req CreateSubmissionRequest) (SubmissionRecord, error)

	// Submit sends one PENDING record to the authority. A record in ERROR
	// with retry budget left resumes from PENDING.
	Submit(ctx context.Context, recordID snowflake.ID) (SubmissionRecord, error)

	// SubmitBatch sends several PENDING records in one submission call and
	// applies the partitioned outcome per record.
	SubmitBatch(ctx context.Context, tenantID snowflake.ID, env credentialdomain.Environment, recordIDs []snowflake.ID) ([]SubmissionRecord, error)

	// GetStatus returns the record with its audit trail.
	GetStatus(ctx context.Context, recordID snowflake.ID) (SubmissionRecord, []AttemptLog, error)

	// Cancel cancels a VALID record inside the cancellation window.
	Cancel(ctx context.Context, recordID snowflake.ID, reason string) (SubmissionRecord, error)

	// Advance polls the authority for one SUBMITTED record and applies the
	// outcome. Idempotent; a failed poll leaves the record in SUBMITTED.
	Advance(ctx context.Context, recordID snowflake.ID) error

	// Search filters locally persisted records.
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)

	// SearchAuthority proxies a date-ranged document search to the authority.
	SearchAuthority(ctx context.Context, req AuthoritySearchRequest) ([]AuthorityDocument, error)

	// GetAuthorityDocument fetches the raw stored document from the authority.
	GetAuthorityDocument(ctx context.Context, recordID snowflake.ID) (RawDocumentView, error)
}

// RawDocumentView is the stored authority payload for one record.
type RawDocumentView struct {
	UUID     string `json:"uuid"`
	LongID   string `json:"longId"`
	Status   string `json:"status"`
	Document string `json:"document"`
}

// Repository persists submission records and their audit trail.
type Repository interface {
	Create(ctx context.Context, record *SubmissionRecord) error
	Get(ctx context.Context, id snowflake.ID) (SubmissionRecord, error)
	GetWithLines(ctx context.Context, id snowflake.ID) (SubmissionRecord, error)

	// UpdateStatus applies updates only when the record is still in the
	// expected state; ErrConcurrentUpdate otherwise. This is the per-record
	// compare-and-swap guarding poller/cancel races.
	UpdateStatus(ctx context.Context, id snowflake.ID, from Status, updates map[string]any) error

	ListByStatus(ctx context.Context, status Status, limit int) ([]SubmissionRecord, error)
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
	HasActiveForInvoice(ctx context.Context, tenantID, invoiceID snowflake.ID) (bool, error)

	AppendAttempt(ctx context.Context, attempt AttemptLog) error
	Attempts(ctx context.Context, recordID snowflake.ID) ([]AttemptLog, error)
}

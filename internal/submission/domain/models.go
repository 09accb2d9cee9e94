// Package domain contains the submission lifecycle models and boundaries.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	credentialdomain "github.com/smallbiznis/invois/internal/credential/domain"
	"github.com/smallbiznis/invois/internal/document"
	"gorm.io/datatypes"
)

// Status is the submission lifecycle state.
//
//	DRAFT → PENDING → SUBMITTED → {VALID | INVALID}
//	PENDING → REJECTED     (batch response rejects pre-validation)
//	VALID → CANCELLED      (inside the cancellation window)
//	any in-flight → ERROR  (transient failure; retryable until budget spent)
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPending   Status = "PENDING"
	StatusSubmitted Status = "SUBMITTED"
	StatusValid     Status = "VALID"
	StatusInvalid   Status = "INVALID"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
	StatusError     Status = "ERROR"
)

// Terminal reports whether no further lifecycle transition is possible.
// VALID is terminal except for cancellation inside the window.
func (s Status) Terminal() bool {
	switch s {
	case StatusInvalid, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Active reports whether the record still represents the live attempt for its
// source invoice. A failed attempt is superseded by a new record, never fixed
// in place; a DRAFT that never reached PENDING is build-failure residue and
// does not block a fresh attempt for the same invoice.
func (s Status) Active() bool {
	switch s {
	case StatusPending, StatusSubmitted, StatusValid:
		return true
	}
	return false
}

// CancellationWindow is the regulatory period after validation during which a
// document may still be cancelled.
const CancellationWindow = 72 * time.Hour

// SubmissionRecord is one document's journey through the authority. Records
// are never deleted; terminal records are retained for audit and superseded
// via OriginalRecordID.
type SubmissionRecord struct {
	ID              snowflake.ID                 `gorm:"primaryKey" json:"id"`
	TenantID        snowflake.ID                 `gorm:"not null;index" json:"tenantId"`
	SourceInvoiceID snowflake.ID                 `gorm:"not null;index" json:"sourceInvoiceId"`
	Environment     credentialdomain.Environment `gorm:"type:text;not null" json:"environment"`
	DocumentType    document.Type                `gorm:"type:text;not null" json:"documentType"`
	Status          Status                       `gorm:"type:text;not null;default:'DRAFT';index" json:"status"`
	CodeNumber      string                       `gorm:"type:text;not null" json:"codeNumber"`

	AuthorityUUID string `gorm:"type:text;index" json:"authorityUuid,omitempty"`
	LongID        string `gorm:"type:text" json:"longId,omitempty"`
	SubmissionUID string `gorm:"type:text;index" json:"submissionUid,omitempty"`
	DocumentHash  string `gorm:"type:text" json:"documentHash,omitempty"`

	RequestPayload   datatypes.JSON `gorm:"type:jsonb" json:"-"`
	ResponsePayload  datatypes.JSON `gorm:"type:jsonb" json:"-"`
	RejectReason     string         `gorm:"type:text" json:"rejectReason,omitempty"`
	ValidationErrors datatypes.JSON `gorm:"type:jsonb" json:"validationErrors,omitempty"`

	RetryCount  int        `gorm:"not null;default:0" json:"retryCount"`
	LastRetryAt *time.Time `json:"lastRetryAt,omitempty"`

	// Corrective documents reference the record they supersede.
	OriginalRecordID *snowflake.ID `gorm:"index" json:"originalRecordId,omitempty"`

	// Set exactly once, at the transition into VALID; immutable thereafter.
	ValidatedAt          *time.Time `json:"validatedAt,omitempty"`
	CancellationDeadline *time.Time `json:"cancellationDeadline,omitempty"`

	Lines []SubmissionLine `gorm:"foreignKey:RecordID" json:"lines,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName sets the database table name.
func (SubmissionRecord) TableName() string { return "submission_records" }

// SubmissionLine is one invoice line owned exclusively by its record.
type SubmissionLine struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	RecordID        snowflake.ID    `gorm:"not null;index" json:"recordId"`
	Number          int             `gorm:"not null" json:"number"`
	Classification  string          `gorm:"type:text;not null" json:"classification"`
	Description     string          `gorm:"type:text" json:"description"`
	Quantity        decimal.Decimal `gorm:"type:numeric;not null" json:"quantity"`
	UnitCode        string          `gorm:"type:text;not null" json:"unitCode"`
	UnitPrice       decimal.Decimal `gorm:"type:numeric;not null" json:"unitPrice"`
	Discount        decimal.Decimal `gorm:"type:numeric" json:"discount"`
	TaxType         string          `gorm:"type:text" json:"taxType"`
	TaxRate         decimal.Decimal `gorm:"type:numeric" json:"taxRate"`
	TaxAmount       decimal.Decimal `gorm:"type:numeric" json:"taxAmount"`
	ExemptionReason string          `gorm:"type:text" json:"exemptionReason,omitempty"`
	Subtotal        decimal.Decimal `gorm:"type:numeric" json:"subtotal"`
	Total           decimal.Decimal `gorm:"type:numeric" json:"total"`
}

// TableName sets the database table name.
func (SubmissionLine) TableName() string { return "submission_lines" }

// Attempt actions recorded in the audit trail.
const (
	AttemptActionBuild  = "build"
	AttemptActionSubmit = "submit"
	AttemptActionPoll   = "poll"
	AttemptActionCancel = "cancel"
)

// AttemptLog is the append-only audit trail: one entry per externally
// observable action, never mutated.
type AttemptLog struct {
	ID       snowflake.ID   `gorm:"primaryKey" json:"id"`
	RecordID snowflake.ID   `gorm:"not null;index" json:"recordId"`
	Action   string         `gorm:"type:text;not null" json:"action"`
	Status   Status         `gorm:"type:text;not null" json:"status"`
	Request  datatypes.JSON `gorm:"type:jsonb" json:"request,omitempty"`
	Response datatypes.JSON `gorm:"type:jsonb" json:"response,omitempty"`
	Error    string         `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName sets the database table name.
func (AttemptLog) TableName() string { return "submission_attempts" }

package service

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invois/internal/clock"
	credentialdomain "github.com/smallbiznis/invois/internal/credential/domain"
	"github.com/smallbiznis/invois/internal/document"
	"github.com/smallbiznis/invois/internal/myinvois"
	"github.com/smallbiznis/invois/internal/submission/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// submitRetryBudget caps how many times a record in ERROR may be resubmitted
// before the attempt is considered spent and a fresh record is required.
const submitRetryBudget = 3

type submissionService struct {
	repo     domain.Repository
	invoices domain.InvoiceLookup
	adapter  *myinvois.Client
	clk      clock.Clock
	node     *snowflake.Node
	log      *zap.Logger
}

// NewService wires the submission orchestrator.
func NewService(
	repo domain.Repository,
	invoices domain.InvoiceLookup,
	adapter *myinvois.Client,
	clk clock.Clock,
	node *snowflake.Node,
	log *zap.Logger,
) domain.Service {
	return &submissionService{
		repo:     repo,
		invoices: invoices,
		adapter:  adapter,
		clk:      clk,
		node:     node,
		log:      log,
	}
}

func (s *submissionService) CreateSubmission(ctx context.Context, req domain.CreateSubmissionRequest) (domain.SubmissionRecord, error) {
	if !req.Environment.Valid() {
		return domain.SubmissionRecord{}, credentialdomain.ErrInvalidEnvironment
	}
	if !req.DocumentType.Valid() {
		return domain.SubmissionRecord{}, domain.ErrInvalidState
	}

	var originalUUID string
	if req.DocumentType.Corrective() {
		if req.OriginalRecordID == nil {
			return domain.SubmissionRecord{}, domain.ErrInvalidState
		}
		original, err := s.repo.Get(ctx, *req.OriginalRecordID)
		if err != nil {
			return domain.SubmissionRecord{}, err
		}
		if original.AuthorityUUID == "" {
			return domain.SubmissionRecord{}, domain.ErrInvalidState
		}
		originalUUID = original.AuthorityUUID
	}

	active, err := s.repo.HasActiveForInvoice(ctx, req.TenantID, req.InvoiceID)
	if err != nil {
		return domain.SubmissionRecord{}, err
	}
	if active && !req.DocumentType.Corrective() {
		return domain.SubmissionRecord{}, domain.ErrActiveRecordExists
	}

	src, err := s.invoices.Lookup(ctx, req.TenantID, req.InvoiceID)
	if err != nil {
		return domain.SubmissionRecord{}, err
	}

	record := domain.SubmissionRecord{
		ID:               s.node.Generate(),
		TenantID:         req.TenantID,
		SourceInvoiceID:  req.InvoiceID,
		Environment:      req.Environment,
		DocumentType:     req.DocumentType,
		Status:           domain.StatusDraft,
		CodeNumber:       src.Invoice.CodeNumber,
		OriginalRecordID: req.OriginalRecordID,
		Lines:            s.snapshotLines(src.Invoice.Lines),
	}
	if err := s.repo.Create(ctx, &record); err != nil {
		return domain.SubmissionRecord{}, err
	}

	src.Invoice.OriginalAuthorityUUID = originalUUID
	doc, verrs := document.Build(document.Input{
		Type:     req.DocumentType,
		Invoice:  src.Invoice,
		Supplier: src.Supplier,
		Buyer:    src.Buyer,
	})
	if len(verrs) > 0 {
		failure := &domain.ValidationFailedError{Errors: verrs}
		detail, _ := json.Marshal(verrs)
		if err := s.repo.UpdateStatus(ctx, record.ID, domain.StatusDraft, map[string]any{
			"validation_errors": datatypes.JSON(detail),
			"updated_at":        s.clk.Now(),
		}); err != nil {
			return domain.SubmissionRecord{}, err
		}
		s.appendAttempt(ctx, record.ID, domain.AttemptActionBuild, domain.StatusDraft, req, verrs, failure.Error())
		return domain.SubmissionRecord{}, failure
	}

	encoded, err := document.Encode(doc)
	if err != nil {
		return domain.SubmissionRecord{}, err
	}

	now := s.clk.Now()
	if err := s.repo.UpdateStatus(ctx, record.ID, domain.StatusDraft, map[string]any{
		"status":          domain.StatusPending,
		"document_hash":   encoded.HashHex,
		"request_payload": datatypes.JSON(encoded.Payload),
		"updated_at":      now,
	}); err != nil {
		return domain.SubmissionRecord{}, err
	}
	s.appendAttempt(ctx, record.ID, domain.AttemptActionBuild, domain.StatusPending, req, nil, "")

	s.log.Info("submission document built",
		zap.String("record_id", record.ID.String()),
		zap.String("code_number", record.CodeNumber),
		zap.String("document_hash", encoded.HashHex),
	)
	return s.repo.Get(ctx, record.ID)
}

func (s *submissionService) Submit(ctx context.Context, recordID snowflake.ID) (domain.SubmissionRecord, error) {
	record, err := s.repo.Get(ctx, recordID)
	if err != nil {
		return domain.SubmissionRecord{}, err
	}
	if err := s.resumeFromError(ctx, &record); err != nil {
		return domain.SubmissionRecord{}, err
	}
	if record.Status != domain.StatusPending {
		return domain.SubmissionRecord{}, domain.ErrInvalidState
	}

	result, err := s.adapter.SubmitDocuments(ctx, record.TenantID, record.Environment, []myinvois.SubmitDocument{
		s.submitDocument(record),
	})
	if err != nil {
		s.markSubmitFailed(ctx, record, err)
		return domain.SubmissionRecord{}, err
	}

	if err := s.applyOutcome(ctx, record, result); err != nil {
		return domain.SubmissionRecord{}, err
	}
	return s.repo.Get(ctx, recordID)
}

func (s *submissionService) SubmitBatch(ctx context.Context, tenantID snowflake.ID, env credentialdomain.Environment, recordIDs []snowflake.ID) ([]domain.SubmissionRecord, error) {
	if len(recordIDs) == 0 {
		return nil, nil
	}

	records := make([]domain.SubmissionRecord, 0, len(recordIDs))
	docs := make([]myinvois.SubmitDocument, 0, len(recordIDs))
	for _, id := range recordIDs {
		record, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if record.TenantID != tenantID || record.Environment != env {
			return nil, domain.ErrInvalidState
		}
		if err := s.resumeFromError(ctx, &record); err != nil {
			return nil, err
		}
		if record.Status != domain.StatusPending {
			return nil, domain.ErrInvalidState
		}
		records = append(records, record)
		docs = append(docs, s.submitDocument(record))
	}

	result, err := s.adapter.SubmitDocuments(ctx, tenantID, env, docs)
	if err != nil {
		for _, record := range records {
			s.markSubmitFailed(ctx, record, err)
		}
		return nil, err
	}

	// Outcomes are partitioned per document; each record advances
	// independently of its batch peers.
	out := make([]domain.SubmissionRecord, 0, len(records))
	for _, record := range records {
		if err := s.applyOutcome(ctx, record, result); err != nil {
			return nil, err
		}
		updated, err := s.repo.Get(ctx, record.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, updated)
	}
	return out, nil
}

func (s *submissionService) GetStatus(ctx context.Context, recordID snowflake.ID) (domain.SubmissionRecord, []domain.AttemptLog, error) {
	record, err := s.repo.GetWithLines(ctx, recordID)
	if err != nil {
		return domain.SubmissionRecord{}, nil, err
	}
	attempts, err := s.repo.Attempts(ctx, recordID)
	if err != nil {
		return domain.SubmissionRecord{}, nil, err
	}
	return record, attempts, nil
}

func (s *submissionService) Cancel(ctx context.Context, recordID snowflake.ID, reason string) (domain.SubmissionRecord, error) {
	record, err := s.repo.Get(ctx, recordID)
	if err != nil {
		return domain.SubmissionRecord{}, err
	}
	if record.Status != domain.StatusValid {
		return domain.SubmissionRecord{}, domain.ErrInvalidState
	}
	if record.CancellationDeadline != nil && s.clk.Now().After(*record.CancellationDeadline) {
		s.appendAttempt(ctx, record.ID, domain.AttemptActionCancel, record.Status, reason, nil, domain.ErrCancellationWindowExpired.Error())
		return domain.SubmissionRecord{}, domain.ErrCancellationWindowExpired
	}

	result, err := s.adapter.Cancel(ctx, record.TenantID, record.Environment, record.AuthorityUUID, reason)
	if err != nil {
		s.appendAttempt(ctx, record.ID, domain.AttemptActionCancel, record.Status, reason, nil, err.Error())
		return domain.SubmissionRecord{}, err
	}

	detail, _ := json.Marshal(result)
	if err := s.repo.UpdateStatus(ctx, record.ID, domain.StatusValid, map[string]any{
		"status":           domain.StatusCancelled,
		"response_payload": datatypes.JSON(detail),
		"updated_at":       s.clk.Now(),
	}); err != nil {
		return domain.SubmissionRecord{}, err
	}
	s.appendAttempt(ctx, record.ID, domain.AttemptActionCancel, domain.StatusCancelled, reason, result, "")

	s.log.Info("submission cancelled",
		zap.String("record_id", record.ID.String()),
		zap.String("authority_uuid", record.AuthorityUUID),
	)
	return s.repo.Get(ctx, recordID)
}

func (s *submissionService) Advance(ctx context.Context, recordID snowflake.ID) error {
	record, err := s.repo.Get(ctx, recordID)
	if err != nil {
		return err
	}
	if record.Status != domain.StatusSubmitted {
		// Already advanced by a concurrent poll or an operator; nothing to do.
		return nil
	}

	status, err := s.adapter.GetSubmission(ctx, record.TenantID, record.Environment, record.SubmissionUID, 1, 100)
	if err != nil {
		s.appendAttempt(ctx, record.ID, domain.AttemptActionPoll, record.Status, nil, nil, err.Error())
		return err
	}
	if status.OverallStatus == myinvois.OverallStatusInProgress {
		s.appendAttempt(ctx, record.ID, domain.AttemptActionPoll, record.Status, nil, status, "")
		return nil
	}

	details, err := s.adapter.GetDocumentDetails(ctx, record.TenantID, record.Environment, record.AuthorityUUID)
	if err != nil {
		s.appendAttempt(ctx, record.ID, domain.AttemptActionPoll, record.Status, nil, nil, err.Error())
		return err
	}

	switch details.Status {
	case myinvois.DocumentStatusValid:
		validatedAt := details.DateTimeValidated
		if validatedAt.IsZero() {
			validatedAt = s.clk.Now()
		}
		deadline := validatedAt.Add(domain.CancellationWindow)
		detail, _ := json.Marshal(details)
		if err := s.repo.UpdateStatus(ctx, record.ID, domain.StatusSubmitted, map[string]any{
			"status":                domain.StatusValid,
			"long_id":               details.LongID,
			"validated_at":          validatedAt,
			"cancellation_deadline": deadline,
			"response_payload":      datatypes.JSON(detail),
			"updated_at":            s.clk.Now(),
		}); err != nil {
			return err
		}
		s.appendAttempt(ctx, record.ID, domain.AttemptActionPoll, domain.StatusValid, nil, details, "")
		s.log.Info("submission validated",
			zap.String("record_id", record.ID.String()),
			zap.String("authority_uuid", record.AuthorityUUID),
			zap.Time("validated_at", validatedAt),
		)

	case myinvois.DocumentStatusInvalid:
		detail, _ := json.Marshal(details)
		updates := map[string]any{
			"status":           domain.StatusInvalid,
			"response_payload": datatypes.JSON(detail),
			"updated_at":       s.clk.Now(),
		}
		if details.ValidationResults != nil {
			verrs, _ := json.Marshal(details.ValidationResults)
			updates["validation_errors"] = datatypes.JSON(verrs)
		}
		if err := s.repo.UpdateStatus(ctx, record.ID, domain.StatusSubmitted, updates); err != nil {
			return err
		}
		s.appendAttempt(ctx, record.ID, domain.AttemptActionPoll, domain.StatusInvalid, nil, details, "")
		s.log.Warn("submission invalidated",
			zap.String("record_id", record.ID.String()),
			zap.String("authority_uuid", record.AuthorityUUID),
		)

	case myinvois.DocumentStatusCancelled:
		detail, _ := json.Marshal(details)
		if err := s.repo.UpdateStatus(ctx, record.ID, domain.StatusSubmitted, map[string]any{
			"status":           domain.StatusCancelled,
			"response_payload": datatypes.JSON(detail),
			"updated_at":       s.clk.Now(),
		}); err != nil {
			return err
		}
		s.appendAttempt(ctx, record.ID, domain.AttemptActionPoll, domain.StatusCancelled, nil, details, "")

	default:
		// Still Submitted on the authority side; poll again next tick.
		s.appendAttempt(ctx, record.ID, domain.AttemptActionPoll, record.Status, nil, details, "")
	}
	return nil
}

func (s *submissionService) Search(ctx context.Context, req domain.SearchRequest) (domain.SearchResponse, error) {
	return s.repo.Search(ctx, req)
}

func (s *submissionService) SearchAuthority(ctx context.Context, req domain.AuthoritySearchRequest) ([]domain.AuthorityDocument, error) {
	if !req.Environment.Valid() {
		return nil, credentialdomain.ErrInvalidEnvironment
	}
	result, err := s.adapter.Search(ctx, req.TenantID, req.Environment, myinvois.SearchFilter{
		SubmissionDateFrom: req.SubmissionDateFrom,
		SubmissionDateTo:   req.SubmissionDateTo,
		IssueDateFrom:      req.IssueDateFrom,
		IssueDateTo:        req.IssueDateTo,
		PageNo:             req.PageNo,
		PageSize:           req.PageSize,
	})
	if err != nil {
		return nil, err
	}

	docs := make([]domain.AuthorityDocument, 0, len(result.Result))
	for _, hit := range result.Result {
		docs = append(docs, domain.AuthorityDocument{
			UUID:          hit.UUID,
			SubmissionUID: hit.SubmissionUID,
			LongID:        hit.LongID,
			CodeNumber:    hit.InternalID,
			TypeName:      hit.TypeName,
			Status:        hit.Status,
			IssuedAt:      hit.DateTimeIssued,
			ReceivedAt:    hit.DateTimeReceived,
		})
	}
	return docs, nil
}

func (s *submissionService) GetAuthorityDocument(ctx context.Context, recordID snowflake.ID) (domain.RawDocumentView, error) {
	record, err := s.repo.Get(ctx, recordID)
	if err != nil {
		return domain.RawDocumentView{}, err
	}
	if record.AuthorityUUID == "" {
		return domain.RawDocumentView{}, domain.ErrInvalidState
	}

	raw, err := s.adapter.GetDocument(ctx, record.TenantID, record.Environment, record.AuthorityUUID)
	if err != nil {
		return domain.RawDocumentView{}, err
	}
	return domain.RawDocumentView{
		UUID:     raw.UUID,
		LongID:   raw.LongID,
		Status:   raw.Status,
		Document: raw.Document,
	}, nil
}

// resumeFromError moves an ERROR record back to PENDING when retry budget
// remains. Any other non-PENDING state is left untouched.
func (s *submissionService) resumeFromError(ctx context.Context, record *domain.SubmissionRecord) error {
	if record.Status != domain.StatusError {
		return nil
	}
	if record.RetryCount >= submitRetryBudget {
		return domain.ErrRetriesExhausted
	}
	if err := s.repo.UpdateStatus(ctx, record.ID, domain.StatusError, map[string]any{
		"status":     domain.StatusPending,
		"updated_at": s.clk.Now(),
	}); err != nil {
		return err
	}
	record.Status = domain.StatusPending
	return nil
}

func (s *submissionService) submitDocument(record domain.SubmissionRecord) myinvois.SubmitDocument {
	return myinvois.SubmitDocument{
		Format:       "JSON",
		Document:     encodePayload(record.RequestPayload),
		DocumentHash: record.DocumentHash,
		CodeNumber:   record.CodeNumber,
	}
}

// markSubmitFailed parks the record in ERROR with its retry accounting. The
// stored payload survives untouched so a later Submit resends the identical
// document.
func (s *submissionService) markSubmitFailed(ctx context.Context, record domain.SubmissionRecord, cause error) {
	now := s.clk.Now()
	if err := s.repo.UpdateStatus(ctx, record.ID, domain.StatusPending, map[string]any{
		"status":        domain.StatusError,
		"retry_count":   record.RetryCount + 1,
		"last_retry_at": now,
		"updated_at":    now,
	}); err != nil {
		s.log.Error("failed to park submission in error state",
			zap.String("record_id", record.ID.String()),
			zap.Error(err),
		)
	}
	s.appendAttempt(ctx, record.ID, domain.AttemptActionSubmit, domain.StatusError, nil, nil, cause.Error())
	s.log.Warn("submission attempt failed",
		zap.String("record_id", record.ID.String()),
		zap.Int("retry_count", record.RetryCount+1),
		zap.Error(cause),
	)
}

// applyOutcome matches this record's code number against the partitioned
// batch response and advances it accordingly.
func (s *submissionService) applyOutcome(ctx context.Context, record domain.SubmissionRecord, result *myinvois.SubmitResult) error {
	detail, _ := json.Marshal(result)

	for _, accepted := range result.AcceptedDocuments {
		if accepted.InvoiceCodeNumber != record.CodeNumber {
			continue
		}
		if err := s.repo.UpdateStatus(ctx, record.ID, domain.StatusPending, map[string]any{
			"status":           domain.StatusSubmitted,
			"submission_uid":   result.SubmissionUID,
			"authority_uuid":   accepted.UUID,
			"response_payload": datatypes.JSON(detail),
			"updated_at":       s.clk.Now(),
		}); err != nil {
			return err
		}
		s.appendAttempt(ctx, record.ID, domain.AttemptActionSubmit, domain.StatusSubmitted, nil, result, "")
		s.log.Info("submission accepted",
			zap.String("record_id", record.ID.String()),
			zap.String("submission_uid", result.SubmissionUID),
			zap.String("authority_uuid", accepted.UUID),
		)
		return nil
	}

	for _, rejected := range result.RejectedDocuments {
		if rejected.InvoiceCodeNumber != record.CodeNumber {
			continue
		}
		if err := s.repo.UpdateStatus(ctx, record.ID, domain.StatusPending, map[string]any{
			"status":           domain.StatusRejected,
			"reject_reason":    rejected.Error.Message,
			"response_payload": datatypes.JSON(detail),
			"updated_at":       s.clk.Now(),
		}); err != nil {
			return err
		}
		s.appendAttempt(ctx, record.ID, domain.AttemptActionSubmit, domain.StatusRejected, nil, result, rejected.Error.Message)
		s.log.Warn("submission rejected",
			zap.String("record_id", record.ID.String()),
			zap.String("code_number", record.CodeNumber),
			zap.String("reason", rejected.Error.Message),
		)
		return nil
	}

	// The authority answered without mentioning this document at all.
	s.markSubmitFailed(ctx, record, domain.ErrConcurrentUpdate)
	return domain.ErrConcurrentUpdate
}

func (s *submissionService) appendAttempt(ctx context.Context, recordID snowflake.ID, action string, status domain.Status, req, resp any, errMsg string) {
	attempt := domain.AttemptLog{
		ID:       s.node.Generate(),
		RecordID: recordID,
		Action:   action,
		Status:   status,
		Error:    errMsg,
	}
	if req != nil {
		if detail, err := json.Marshal(req); err == nil {
			attempt.Request = datatypes.JSON(detail)
		}
	}
	if resp != nil {
		if detail, err := json.Marshal(resp); err == nil {
			attempt.Response = datatypes.JSON(detail)
		}
	}
	if err := s.repo.AppendAttempt(ctx, attempt); err != nil {
		s.log.Error("failed to append attempt log",
			zap.String("record_id", recordID.String()),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

func encodePayload(payload datatypes.JSON) string {
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

func (s *submissionService) snapshotLines(lines []document.LineInput) []domain.SubmissionLine {
	out := make([]domain.SubmissionLine, 0, len(lines))
	for i, li := range lines {
		subtotal := li.Quantity.Mul(li.UnitPrice)
		taxable := subtotal.Sub(li.DiscountAmount)
		tax := decimal.Zero
		if li.TaxType != "E" && !li.TaxRate.IsZero() {
			tax = taxable.Mul(li.TaxRate).Div(decimal.NewFromInt(100))
		}
		out = append(out, domain.SubmissionLine{
			ID:              s.node.Generate(),
			Number:          i + 1,
			Classification:  li.Classification,
			Description:     li.Description,
			Quantity:        li.Quantity,
			UnitCode:        li.UnitCode,
			UnitPrice:       li.UnitPrice,
			Discount:        li.DiscountAmount,
			TaxType:         li.TaxType,
			TaxRate:         li.TaxRate,
			TaxAmount:       tax,
			ExemptionReason: li.TaxExemptionReason,
			Subtotal:        subtotal,
			Total:           taxable.Add(tax),
		})
	}
	return out
}

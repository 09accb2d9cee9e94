package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invois/internal/submission/domain"
	"github.com/smallbiznis/invois/pkg/db/pagination"
	"gorm.io/gorm"
)

type submissionRepository struct {
	db *gorm.DB
}

// New returns a gorm-backed submission repository.
func New(db *gorm.DB) domain.Repository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) Create(ctx context.Context, record *domain.SubmissionRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *submissionRepository) Get(ctx context.Context, id snowflake.ID) (domain.SubmissionRecord, error) {
	var record domain.SubmissionRecord
	err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.SubmissionRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.SubmissionRecord{}, err
	}
	return record, nil
}

func (r *submissionRepository) GetWithLines(ctx context.Context, id snowflake.ID) (domain.SubmissionRecord, error) {
	var record domain.SubmissionRecord
	err := r.db.WithContext(ctx).Preload("Lines").First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.SubmissionRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.SubmissionRecord{}, err
	}
	return record, nil
}

func (r *submissionRepository) UpdateStatus(ctx context.Context, id snowflake.ID, from domain.Status, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&domain.SubmissionRecord{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrConcurrentUpdate
	}
	return nil
}

func (r *submissionRepository) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.SubmissionRecord, error) {
	var records []domain.SubmissionRecord
	q := r.db.WithContext(ctx).Where("status = ?", status).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *submissionRepository) Search(ctx context.Context, req domain.SearchRequest) (domain.SearchResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 || pageSize > 250 {
		pageSize = 25
	}

	q := r.db.WithContext(ctx).Model(&domain.SubmissionRecord{}).Where("tenant_id = ?", req.TenantID)
	if req.Status != "" {
		q = q.Where("status = ?", req.Status)
	}
	if req.From != nil {
		q = q.Where("created_at >= ?", *req.From)
	}
	if req.To != nil {
		q = q.Where("created_at < ?", *req.To)
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.SearchResponse{}, err
		}
		q = q.Where("id > ?", cursor.ID)
	}

	var records []domain.SubmissionRecord
	if err := q.Order("id ASC").Limit(pageSize + 1).Find(&records).Error; err != nil {
		return domain.SearchResponse{}, err
	}

	resp := domain.SearchResponse{Records: records}
	if len(records) > pageSize {
		resp.Records = records[:pageSize]
		resp.HasMore = true
		last := resp.Records[len(resp.Records)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: last.ID.String()})
		if err != nil {
			return domain.SearchResponse{}, err
		}
		resp.NextPageToken = token
	}
	return resp, nil
}

func (r *submissionRepository) HasActiveForInvoice(ctx context.Context, tenantID, invoiceID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.SubmissionRecord{}).
		Where("tenant_id = ? AND source_invoice_id = ? AND status IN ?", tenantID, invoiceID, []domain.Status{
			domain.StatusPending, domain.StatusSubmitted, domain.StatusValid,
		}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *submissionRepository) AppendAttempt(ctx context.Context, attempt domain.AttemptLog) error {
	return r.db.WithContext(ctx).Create(&attempt).Error
}

func (r *submissionRepository) Attempts(ctx context.Context, recordID snowflake.ID) ([]domain.AttemptLog, error) {
	var attempts []domain.AttemptLog
	err := r.db.WithContext(ctx).
		Where("record_id = ?", recordID).
		Order("created_at ASC, id ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

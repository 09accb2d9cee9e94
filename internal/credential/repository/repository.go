package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invois/internal/credential/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type credentialRepository struct {
	db *gorm.DB
}

// New returns a gorm-backed credential repository.
func New(db *gorm.DB) domain.Repository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) FindActive(ctx context.Context, tenantID snowflake.ID, env domain.Environment) (domain.Credential, error) {
	var credential domain.Credential
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND environment = ? AND active = ?", tenantID, env, true).
		First(&credential).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Credential{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Credential{}, err
	}
	return credential, nil
}

func (r *credentialRepository) Upsert(ctx context.Context, credential domain.Credential) (domain.Credential, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "environment"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"client_id", "encrypted_client_secret", "tin", "brn", "active", "updated_at",
			}),
		}).
		Create(&credential).Error
	if err != nil {
		return domain.Credential{}, err
	}
	return credential, nil
}

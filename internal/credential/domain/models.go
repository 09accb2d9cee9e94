// Package domain contains persistence models for tenant API credentials.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Environment selects the authority endpoint a credential is issued for.
type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// Valid reports whether the environment is one of the supported values.
func (e Environment) Valid() bool {
	return e == EnvironmentSandbox || e == EnvironmentProduction
}

// Credential stores a tenant's OAuth2 client for one environment. The client
// secret is encrypted at rest; plaintext only exists in memory at call time.
type Credential struct {
	ID                    snowflake.ID `gorm:"primaryKey"`
	TenantID              snowflake.ID `gorm:"not null;index;uniqueIndex:ux_credential_tenant_env"`
	Environment           Environment  `gorm:"type:text;not null;uniqueIndex:ux_credential_tenant_env"`
	ClientID              string       `gorm:"type:text;not null"`
	EncryptedClientSecret string       `gorm:"type:text;not null"`
	TIN                   string       `gorm:"type:text;not null"`
	BRN                   string       `gorm:"type:text"`
	Active                bool         `gorm:"not null;default:true"`
	CreatedAt             time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt             time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Credential) TableName() string { return "credentials" }

var (
	ErrNotFound           = errors.New("credential_not_found")
	ErrInvalidEnvironment = errors.New("invalid_environment")
)

// Repository reads and writes tenant credentials.
type Repository interface {
	FindActive(ctx context.Context, tenantID snowflake.ID, env Environment) (Credential, error)
	Upsert(ctx context.Context, credential Credential) (Credential, error)
}

// Service is the boundary used to administer credentials.
type Service interface {
	Store(ctx context.Context, req StoreRequest) (Credential, error)
}

// StoreRequest carries a plaintext client secret; the service encrypts it
// before it is persisted.
type StoreRequest struct {
	TenantID     snowflake.ID
	Environment  Environment
	ClientID     string
	ClientSecret string
	TIN          string
	BRN          string
}

package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invois/internal/credential/domain"
	"github.com/smallbiznis/invois/internal/vault"
	"go.uber.org/zap"
)

type service struct {
	repo  domain.Repository
	vault *vault.Vault
	genID *snowflake.Node
	log   *zap.Logger
}

// NewService returns the credential administration service.
func NewService(repo domain.Repository, v *vault.Vault, genID *snowflake.Node, log *zap.Logger) domain.Service {
	return &service{
		repo:  repo,
		vault: v,
		genID: genID,
		log:   log.Named("credential"),
	}
}

func (s *service) Store(ctx context.Context, req domain.StoreRequest) (domain.Credential, error) {
	if !req.Environment.Valid() {
		return domain.Credential{}, domain.ErrInvalidEnvironment
	}

	sealed, err := s.vault.Encrypt(strings.TrimSpace(req.ClientSecret))
	if err != nil {
		return domain.Credential{}, err
	}

	credential := domain.Credential{
		ID:                    s.genID.Generate(),
		TenantID:              req.TenantID,
		Environment:           req.Environment,
		ClientID:              strings.TrimSpace(req.ClientID),
		EncryptedClientSecret: sealed,
		TIN:                   strings.TrimSpace(req.TIN),
		BRN:                   strings.TrimSpace(req.BRN),
		Active:                true,
	}

	stored, err := s.repo.Upsert(ctx, credential)
	if err != nil {
		return domain.Credential{}, err
	}

	s.log.Info("credential stored",
		zap.String("tenant_id", stored.TenantID.String()),
		zap.String("environment", string(stored.Environment)),
	)
	return stored, nil
}

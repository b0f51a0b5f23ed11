package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/paymentsportal/internal/domain"
	"github.com/aryan0dhankhar/paymentsportal/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/paymentsportal/internal/security"
	"github.com/aryan0dhankhar/paymentsportal/internal/validation"
)

// BeneficiaryService manages a customer's saved payees.
type BeneficiaryService struct {
	beneficiaries domain.BeneficiaryRepository
	authz         *security.AuthorizationService
	logger        *slog.Logger
}

func NewBeneficiaryService(beneficiaries domain.BeneficiaryRepository, authz *security.AuthorizationService, log *slog.Logger) *BeneficiaryService {
	if log == nil {
		log = slog.Default()
	}
	if authz == nil {
		authz = security.NewAuthorizationService(log)
	}
	return &BeneficiaryService{beneficiaries: beneficiaries, authz: authz, logger: log}
}

// Create stores a payee for the caller. A duplicate of an existing payee
// (same type, name and account identifiers) is a conflict.
func (s *BeneficiaryService) Create(ctx context.Context, actor domain.Identity, in validation.BeneficiaryInput) (*domain.Beneficiary, error) {
	if err := s.authz.Authorize(actor, security.PermManageBeneficiaries); err != nil {
		return nil, err
	}
	b := &domain.Beneficiary{
		ID:        uuid.NewString(),
		UserID:    actor.UserID,
		Name:      in.Name,
		Email:     in.Email,
		Reference: in.Reference,
		Account:   in.Account,
	}
	if err := s.beneficiaries.Create(ctx, b); err != nil {
		return nil, err
	}
	logger.FromContext(ctx, s.logger).Info("beneficiary created",
		slog.String("beneficiary_id", b.ID),
		slog.String("type", string(b.Type())),
	)
	return b, nil
}

// List pages through the caller's payees, newest first.
func (s *BeneficiaryService) List(ctx context.Context, actor domain.Identity, q validation.BeneficiaryListQuery) (Page[*domain.Beneficiary], error) {
	if err := s.authz.Authorize(actor, security.PermManageBeneficiaries); err != nil {
		return Page[*domain.Beneficiary]{}, err
	}
	items, total, err := s.beneficiaries.ListByOwner(ctx, actor.UserID, domain.BeneficiaryFilter{
		Type:  q.Type,
		Page:  q.Page,
		Limit: q.Limit,
	})
	if err != nil {
		return Page[*domain.Beneficiary]{}, err
	}
	return Page[*domain.Beneficiary]{Page: q.Page, Limit: q.Limit, Total: total, Items: items}, nil
}

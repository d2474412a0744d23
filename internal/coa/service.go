package coa

import (
	"context"
	"strings"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var (
	// ErrAccountNotFound indicates the account does not exist in the org.
	ErrAccountNotFound = shared.NewError(shared.KindNotFound, "account", "", "account not found")
	// ErrDuplicateCode indicates the (org, code) pair is already taken.
	ErrDuplicateCode = shared.NewError(shared.KindValidation, "account", "code", "account code already exists")
	// ErrInactiveAccount indicates the account cannot accept postings.
	ErrInactiveAccount = shared.NewError(shared.KindValidation, "account", "is_active", "account is inactive")
)

// Service owns chart-of-accounts lookups and validation.
type Service struct {
	repo Repository
}

// NewService constructs the service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput describes a new account.
type CreateInput struct {
	OrgID      int64        `validate:"required"`
	Code       string       `validate:"required,max=32"`
	Name       string       `validate:"required,max=128"`
	Class      AccountClass `validate:"required"`
	SystemRole *SystemRole
}

// Create registers a new ledger account with a per-org unique code.
func (s *Service) Create(ctx context.Context, input CreateInput) (Account, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return Account{}, shared.NewError(shared.KindValidation, "account", "code", "code required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return Account{}, shared.NewError(shared.KindValidation, "account", "name", "name required")
	}
	if !ValidClass(input.Class) {
		return Account{}, shared.NewError(shared.KindValidation, "account", "class", "unknown account class")
	}
	return s.repo.Insert(ctx, Account{
		OrgID:      input.OrgID,
		Code:       code,
		Name:       strings.TrimSpace(input.Name),
		Class:      input.Class,
		SystemRole: input.SystemRole,
		IsActive:   true,
	})
}

// Get fetches an account owned by the organisation.
func (s *Service) Get(ctx context.Context, orgID, accountID int64) (Account, error) {
	return s.repo.Get(ctx, orgID, accountID)
}

// GetActive fetches an account and rejects inactive ones.
func (s *Service) GetActive(ctx context.Context, orgID, accountID int64) (Account, error) {
	account, err := s.repo.Get(ctx, orgID, accountID)
	if err != nil {
		return Account{}, err
	}
	if !account.IsActive {
		return Account{}, ErrInactiveAccount
	}
	return account, nil
}

// List returns all accounts of the organisation ordered by code.
func (s *Service) List(ctx context.Context, orgID int64) ([]Account, error) {
	return s.repo.List(ctx, orgID)
}

// Deactivate flags an account as unavailable for new postings.
func (s *Service) Deactivate(ctx context.Context, orgID, accountID int64) error {
	return s.repo.SetActive(ctx, orgID, accountID, false)
}

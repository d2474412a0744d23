package orgconfig

import (
	"context"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/coa"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var (
	// ErrConfigNotFound indicates no configuration row for the org.
	ErrConfigNotFound = shared.NewError(shared.KindNotFound, "account_configuration", "", "configuration not found")
	// ErrMissingMapping indicates a slot required by an operation is unset.
	ErrMissingMapping = shared.NewError(shared.KindValidation, "account_configuration", "", "required account mapping missing")
	// ErrClassMismatch indicates the mapped account has the wrong class.
	ErrClassMismatch = shared.NewError(shared.KindValidation, "account_configuration", "", "account class does not fit slot")
)

// AccountLookup is the subset of the chart of accounts used for validation.
type AccountLookup interface {
	Get(ctx context.Context, orgID, accountID int64) (coa.Account, error)
}

// Service validates and serves per-organisation account configuration.
type Service struct {
	repo     Repository
	accounts AccountLookup
	cache    *Cache
}

// NewService constructs the service. cache may be nil.
func NewService(repo Repository, accounts AccountLookup, cache *Cache) *Service {
	return &Service{repo: repo, accounts: accounts, cache: cache}
}

// Get returns the configuration for an organisation, read-through cached.
func (s *Service) Get(ctx context.Context, orgID int64) (Configuration, error) {
	if s.cache != nil {
		if cfg, ok := s.cache.Get(ctx, orgID); ok {
			return cfg, nil
		}
	}
	cfg, err := s.repo.Get(ctx, orgID)
	if err != nil {
		return Configuration{}, err
	}
	if s.cache != nil {
		s.cache.Put(ctx, cfg)
	}
	return cfg, nil
}

// Upsert validates every referenced account and stores the configuration.
// Slots imply a class: an Inventory slot must be an Asset account, AP a
// Liability, and so on.
func (s *Service) Upsert(ctx context.Context, cfg Configuration) (Configuration, error) {
	if cfg.OrgID == 0 {
		return Configuration{}, shared.NewError(shared.KindValidation, "account_configuration", "org_id", "organisation required")
	}
	slots := []coa.SystemRole{
		coa.RoleInventory, coa.RoleAccountsPayable, coa.RoleAccountsReceivable, coa.RoleSalesRevenue,
		coa.RoleCOGS, coa.RoleTaxPayable, coa.RoleTaxReceivable, coa.RoleCash, coa.RoleBank,
		coa.RolePurchaseDiscount,
	}
	for _, role := range slots {
		id := cfg.Slot(role)
		if id == nil {
			continue
		}
		account, err := s.accounts.Get(ctx, cfg.OrgID, *id)
		if err != nil {
			return Configuration{}, fmt.Errorf("slot %s: %w", role, err)
		}
		want, ok := slotClass(role)
		if ok && account.Class != want {
			return Configuration{}, fmt.Errorf("slot %s: account %s is %s, requires %s: %w",
				role, account.Code, account.Class, want, ErrClassMismatch)
		}
	}
	stored, err := s.repo.Upsert(ctx, cfg)
	if err != nil {
		return Configuration{}, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, cfg.OrgID)
	}
	return stored, nil
}

// RequireSlot resolves a role to an account id or fails the precondition.
func (s *Service) RequireSlot(ctx context.Context, orgID int64, role coa.SystemRole) (int64, error) {
	cfg, err := s.Get(ctx, orgID)
	if err != nil {
		return 0, err
	}
	id := cfg.Slot(role)
	if id == nil {
		return 0, fmt.Errorf("slot %s: %w", role, ErrMissingMapping)
	}
	return *id, nil
}

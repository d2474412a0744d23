package coa

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memRepository struct {
	accounts []Account
	nextID   int64
}

func (r *memRepository) Insert(_ context.Context, account Account) (Account, error) {
	for _, a := range r.accounts {
		if a.OrgID == account.OrgID && a.Code == account.Code {
			return Account{}, ErrDuplicateCode
		}
	}
	r.nextID++
	account.ID = r.nextID
	r.accounts = append(r.accounts, account)
	return account, nil
}

func (r *memRepository) Get(_ context.Context, orgID, accountID int64) (Account, error) {
	for _, a := range r.accounts {
		if a.OrgID == orgID && a.ID == accountID {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (r *memRepository) GetByRole(_ context.Context, orgID int64, role SystemRole) (Account, error) {
	for _, a := range r.accounts {
		if a.OrgID == orgID && a.SystemRole != nil && *a.SystemRole == role {
			return a, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (r *memRepository) List(_ context.Context, orgID int64) ([]Account, error) {
	var out []Account
	for _, a := range r.accounts {
		if a.OrgID == orgID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memRepository) SetActive(_ context.Context, orgID, accountID int64, active bool) error {
	for i := range r.accounts {
		if r.accounts[i].OrgID == orgID && r.accounts[i].ID == accountID {
			r.accounts[i].IsActive = active
			return nil
		}
	}
	return ErrAccountNotFound
}

func TestCreateAccount(t *testing.T) {
	svc := NewService(&memRepository{})

	account, err := svc.Create(context.Background(), CreateInput{
		OrgID: 1, Code: " 1400 ", Name: "Inventory", Class: ClassAsset,
	})
	require.NoError(t, err)
	require.Equal(t, "1400", account.Code)
	require.True(t, account.IsActive)
}

func TestCreateAccountDuplicateCode(t *testing.T) {
	svc := NewService(&memRepository{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{OrgID: 1, Code: "1400", Name: "Inventory", Class: ClassAsset})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateInput{OrgID: 1, Code: "1400", Name: "Other", Class: ClassAsset})
	require.ErrorIs(t, err, ErrDuplicateCode)

	// Same code in another organisation is fine.
	_, err = svc.Create(ctx, CreateInput{OrgID: 2, Code: "1400", Name: "Inventory", Class: ClassAsset})
	require.NoError(t, err)
}

func TestCreateAccountRejectsUnknownClass(t *testing.T) {
	svc := NewService(&memRepository{})

	_, err := svc.Create(context.Background(), CreateInput{OrgID: 1, Code: "9999", Name: "X", Class: "CONTRA"})
	require.Error(t, err)
}

func TestGetActiveRejectsDeactivated(t *testing.T) {
	svc := NewService(&memRepository{})
	ctx := context.Background()

	account, err := svc.Create(ctx, CreateInput{OrgID: 1, Code: "2100", Name: "AP", Class: ClassLiability})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, 1, account.ID))

	_, err = svc.GetActive(ctx, 1, account.ID)
	require.ErrorIs(t, err, ErrInactiveAccount)

	// Plain Get still returns the row.
	got, err := svc.Get(ctx, 1, account.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
}

func TestGetScopedToOrganisation(t *testing.T) {
	svc := NewService(&memRepository{})
	ctx := context.Background()

	account, err := svc.Create(ctx, CreateInput{OrgID: 1, Code: "1100", Name: "Bank", Class: ClassAsset})
	require.NoError(t, err)

	_, err = svc.Get(ctx, 2, account.ID)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

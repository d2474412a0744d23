package facade

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/coa"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type memLedger struct {
	posted []ledger.PostingInput
}

func (m *memLedger) Post(_ context.Context, in ledger.PostingInput) (ledger.JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return ledger.JournalEntry{}, err
	}
	m.posted = append(m.posted, in)
	return ledger.JournalEntry{ID: int64(len(m.posted)), OrgID: in.OrgID}, nil
}

type memConfig map[coa.SystemRole]int64

func (c memConfig) RequireSlot(_ context.Context, _ int64, role coa.SystemRole) (int64, error) {
	id, ok := c[role]
	if !ok {
		return 0, coa.ErrAccountNotFound
	}
	return id, nil
}

func TestRegisterSalePostsRevenueEntry(t *testing.T) {
	led := &memLedger{}
	acc := NewAccounting(led, nil, memConfig{
		coa.RoleAccountsReceivable: 120,
		coa.RoleSalesRevenue:       400,
		coa.RoleTaxPayable:         230,
	})

	ref := "SO-0001"
	entry, err := acc.RegisterSale(context.Background(), SaleInput{
		OrgID:     1,
		UserID:    9,
		Date:      time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Reference: &ref,
		Amount:    dec("200.00"),
		TaxAmount: dec("32.00"),
	})
	require.NoError(t, err)
	require.NotZero(t, entry.ID)

	require.Len(t, led.posted, 1)
	lines := led.posted[0].Lines
	require.Len(t, lines, 3)
	require.Equal(t, int64(120), lines[0].AccountID)
	require.Equal(t, "232.00", lines[0].Debit.StringFixed(2))
	require.Equal(t, int64(400), lines[1].AccountID)
	require.Equal(t, "200.00", lines[1].Credit.StringFixed(2))
	require.Equal(t, int64(230), lines[2].AccountID)
	require.Equal(t, "32.00", lines[2].Credit.StringFixed(2))
}

func TestRegisterSaleWithoutTaxSkipsTaxLine(t *testing.T) {
	led := &memLedger{}
	acc := NewAccounting(led, nil, memConfig{
		coa.RoleAccountsReceivable: 120,
		coa.RoleSalesRevenue:       400,
	})

	_, err := acc.RegisterSale(context.Background(), SaleInput{
		OrgID:  1,
		Date:   time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Amount: dec("50.00"),
	})
	require.NoError(t, err)
	require.Len(t, led.posted[0].Lines, 2)
}

func TestRegisterSaleRejectsNonPositiveAmount(t *testing.T) {
	acc := NewAccounting(&memLedger{}, nil, memConfig{})

	_, err := acc.RegisterSale(context.Background(), SaleInput{OrgID: 1, Amount: dec("0")})
	require.Error(t, err)

	_, err = acc.RegisterSale(context.Background(), SaleInput{OrgID: 1, Amount: dec("10"), TaxAmount: dec("-1")})
	require.Error(t, err)
}

func TestRegisterSaleRequiresConfiguredSlots(t *testing.T) {
	acc := NewAccounting(&memLedger{}, nil, memConfig{coa.RoleAccountsReceivable: 120})

	_, err := acc.RegisterSale(context.Background(), SaleInput{
		OrgID:  1,
		Date:   time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Amount: dec("50.00"),
	})
	require.ErrorIs(t, err, coa.ErrAccountNotFound)
}

// Package facade exposes the in-process contracts other modules consume. The
// accounting facade keeps callers off the ledger internals; the series facade
// does the same for document numbering.
package facade

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/coa"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/receiving"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// LedgerPort is the slice of the ledger service the facade needs.
type LedgerPort interface {
	Post(ctx context.Context, in ledger.PostingInput) (ledger.JournalEntry, error)
}

// ReceivingPort posts purchase receipts.
type ReceivingPort interface {
	ReceivePurchase(ctx context.Context, input receiving.ReceiveInput) (receiving.PurchaseReceipt, error)
}

// ConfigPort resolves system-role account slots.
type ConfigPort interface {
	RequireSlot(ctx context.Context, orgID int64, role coa.SystemRole) (int64, error)
}

// Accounting is the in-process boundary other modules post through.
type Accounting struct {
	ledger    LedgerPort
	receiving ReceivingPort
	config    ConfigPort
}

// NewAccounting constructs the accounting facade.
func NewAccounting(ledgerPort LedgerPort, receivingPort ReceivingPort, config ConfigPort) *Accounting {
	return &Accounting{ledger: ledgerPort, receiving: receivingPort, config: config}
}

// CreateJournalEntry posts a caller-assembled entry.
func (f *Accounting) CreateJournalEntry(ctx context.Context, in ledger.PostingInput) (ledger.JournalEntry, error) {
	return f.ledger.Post(ctx, in)
}

// RegisterPurchase posts a purchase receipt through the receiving engine.
func (f *Accounting) RegisterPurchase(ctx context.Context, input receiving.ReceiveInput) (receiving.PurchaseReceipt, error) {
	return f.receiving.ReceivePurchase(ctx, input)
}

// SaleInput describes a revenue event registered through the facade. Amounts
// are tax-exclusive; tax may be zero.
type SaleInput struct {
	OrgID      int64
	UserID     int64
	Date       time.Time
	Reference  *string
	CustomerID *int64
	Amount     decimal.Decimal
	TaxAmount  decimal.Decimal
}

// RegisterSale posts the revenue entry for a sale: Accounts-Receivable debit
// against Sales-Revenue and, when tax applies, Tax-Payable credits.
func (f *Accounting) RegisterSale(ctx context.Context, input SaleInput) (ledger.JournalEntry, error) {
	if !money.IsPositive(input.Amount) {
		return ledger.JournalEntry{}, shared.NewError(shared.KindValidation, "sale", "amount", "amount must be positive")
	}
	if money.IsNegative(input.TaxAmount) {
		return ledger.JournalEntry{}, shared.NewError(shared.KindValidation, "sale", "tax_amount", "tax must be >= 0")
	}
	arAccount, err := f.config.RequireSlot(ctx, input.OrgID, coa.RoleAccountsReceivable)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	revenueAccount, err := f.config.RequireSlot(ctx, input.OrgID, coa.RoleSalesRevenue)
	if err != nil {
		return ledger.JournalEntry{}, err
	}
	amount := money.Round2(input.Amount)
	tax := money.Round2(input.TaxAmount)
	lines := []ledger.PostingLineInput{
		{AccountID: arAccount, Debit: amount.Add(tax)},
		{AccountID: revenueAccount, Credit: amount},
	}
	if money.IsPositive(tax) {
		taxAccount, err := f.config.RequireSlot(ctx, input.OrgID, coa.RoleTaxPayable)
		if err != nil {
			return ledger.JournalEntry{}, err
		}
		lines = append(lines, ledger.PostingLineInput{AccountID: taxAccount, Credit: tax})
	}
	description := "Sale"
	if input.Reference != nil {
		description = fmt.Sprintf("Sale %s", *input.Reference)
	}
	return f.ledger.Post(ctx, ledger.PostingInput{
		OrgID:       input.OrgID,
		Date:        input.Date,
		Description: description,
		Reference:   input.Reference,
		PostedBy:    input.UserID,
		Lines:       lines,
	})
}

// NumberPort is the slice of the numbering service the facade needs.
type NumberPort interface {
	NextNumber(ctx context.Context, orgID int64, seriesCode string, asOf time.Time) (string, error)
	NextNumberByType(ctx context.Context, orgID int64, docType numbering.DocumentType, asOf time.Time) (string, error)
	ValidateNumber(ctx context.Context, orgID int64, seriesCode, number string, asOf time.Time) error
	IsNumberAvailable(ctx context.Context, orgID int64, seriesCode, number string, asOf time.Time) (bool, error)
}

// SerieNo is the in-process boundary for document numbering.
type SerieNo struct {
	numbers NumberPort
}

// NewSerieNo constructs the numbering facade.
func NewSerieNo(numbers NumberPort) *SerieNo {
	return &SerieNo{numbers: numbers}
}

// GetNextNumber issues the next number of a series.
func (f *SerieNo) GetNextNumber(ctx context.Context, orgID int64, seriesCode string, asOf time.Time) (string, error) {
	return f.numbers.NextNumber(ctx, orgID, seriesCode, asOf)
}

// GetNextNumberByType issues from the default series of a document type.
func (f *SerieNo) GetNextNumberByType(ctx context.Context, orgID int64, docType numbering.DocumentType, asOf time.Time) (string, error) {
	return f.numbers.NextNumberByType(ctx, orgID, docType, asOf)
}

// ValidateNumber checks a number against its series range.
func (f *SerieNo) ValidateNumber(ctx context.Context, orgID int64, seriesCode, number string, asOf time.Time) error {
	return f.numbers.ValidateNumber(ctx, orgID, seriesCode, number, asOf)
}

// IsNumberAvailable reports whether a number can still be issued.
func (f *SerieNo) IsNumberAvailable(ctx context.Context, orgID int64, seriesCode, number string, asOf time.Time) (bool, error) {
	return f.numbers.IsNumberAvailable(ctx, orgID, seriesCode, number, asOf)
}

package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var (
	// ErrUnbalancedEntry indicates sum(debit) != sum(credit) in cents.
	ErrUnbalancedEntry = shared.NewError(shared.KindValidation, "journal_entry", "lines", "debits and credits must balance")
	// ErrInvalidLine indicates a line violates the debit-xor-credit rule.
	ErrInvalidLine = shared.NewError(shared.KindValidation, "journal_entry", "lines", "exactly one of debit/credit must be positive")
	// ErrUnknownAccount indicates a line references an account outside the
	// organisation or an inactive one.
	ErrUnknownAccount = shared.NewError(shared.KindValidation, "journal_entry", "account_id", "account unknown or inactive")
	// ErrTooFewLines indicates fewer than two lines.
	ErrTooFewLines = shared.NewError(shared.KindValidation, "journal_entry", "lines", "at least two lines required")
	// ErrEntryNotFound indicates a missing entry.
	ErrEntryNotFound = shared.NewError(shared.KindNotFound, "journal_entry", "", "journal entry not found")
)

// PostingLineInput describes one journal line for a posting request.
type PostingLineInput struct {
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description *string
	VendorID    *int64
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	OrgID       int64
	Date        time.Time
	Description string
	Reference   *string
	ReversalOf  *int64
	PostedBy    int64
	Lines       []PostingLineInput
}

// Validate enforces the balance invariant before any mutation. Amounts are
// compared in integer cents after round-half-even.
func (in PostingInput) Validate() error {
	if in.OrgID == 0 {
		return shared.NewError(shared.KindValidation, "journal_entry", "org_id", "organisation required")
	}
	if in.Date.IsZero() {
		return shared.NewError(shared.KindValidation, "journal_entry", "date", "date required")
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	var debit, credit int64
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return shared.NewError(shared.KindValidation, "journal_entry", fmt.Sprintf("lines[%d].account_id", idx), "account required")
		}
		if money.IsNegative(line.Debit) || money.IsNegative(line.Credit) {
			return ErrInvalidLine
		}
		d := money.Cents(line.Debit)
		c := money.Cents(line.Credit)
		if (d > 0) == (c > 0) {
			return ErrInvalidLine
		}
		debit += d
		credit += c
	}
	if debit != credit {
		return ErrUnbalancedEntry
	}
	return nil
}

// Negate returns the equal-and-opposite lines for a reversal posting.
func Negate(lines []JournalLine) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLineInput{
			AccountID:   line.AccountID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
			VendorID:    line.VendorID,
		})
	}
	return out
}

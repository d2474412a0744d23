package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalEntry is an immutable, balanced accounting record. Entries are never
// updated or deleted; corrections post an equal-and-opposite entry that
// references the original via ReversalOf.
type JournalEntry struct {
	ID          int64
	OrgID       int64
	Number      int64
	Date        time.Time
	Description string
	Reference   *string
	ReversalOf  *int64
	PostedBy    int64
	PostedAt    time.Time
	CreatedAt   time.Time
	Lines       []JournalLine
}

// JournalLine stores a debit or credit amount for an account. Exactly one of
// Debit/Credit is non-zero.
type JournalLine struct {
	ID          int64
	EntryID     int64
	LineNo      int
	AccountID   int64
	Debit       decimal.Decimal
	Credit      decimal.Decimal
	Description *string
	VendorID    *int64
}

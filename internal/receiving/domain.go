package receiving

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ReceiptStatus is the purchase receipt lifecycle.
type ReceiptStatus string

const (
	StatusDraft     ReceiptStatus = "DRAFT"
	StatusPending   ReceiptStatus = "PENDING"
	StatusReceived  ReceiptStatus = "RECEIVED"
	StatusPosted    ReceiptStatus = "POSTED"
	StatusCancelled ReceiptStatus = "CANCELLED"
)

// CanTransition is the receipt state machine. Posted is terminal; Cancelled
// is reachable only before posting.
func (s ReceiptStatus) CanTransition(to ReceiptStatus) bool {
	switch s {
	case StatusDraft:
		return to == StatusPending || to == StatusPosted || to == StatusCancelled
	case StatusPending:
		return to == StatusReceived || to == StatusPosted || to == StatusCancelled
	case StatusReceived:
		return to == StatusPosted || to == StatusCancelled
	}
	return false
}

// PurchaseReceipt is the receiving aggregate.
type PurchaseReceipt struct {
	ID              int64
	OrgID           int64
	Number          string
	PurchaseOrderID *int64
	VendorID        int64
	Date            time.Time
	Status          ReceiptStatus
	JournalEntryID  *int64
	CreatedBy       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Items           []PurchaseItem
}

// PurchaseItem is one received line. TaxAmount and LineTotal are always
// recomputed server-side before posting; caller-submitted totals are ignored.
type PurchaseItem struct {
	ID                 int64
	ReceiptID          int64
	LineNo             int
	VariantID          int64
	QtyOrdered         *decimal.Decimal
	QtyReceived        decimal.Decimal
	UnitCost           decimal.Decimal
	DiscountPct        decimal.Decimal
	TaxRate            decimal.Decimal
	TaxAmount          decimal.Decimal
	LineTotal          decimal.Decimal
	InventoryAccountID *int64
}

var (
	// ErrReceiptNotFound indicates a missing org-scoped receipt.
	ErrReceiptNotFound = shared.NewError(shared.KindNotFound, "purchase_receipt", "", "receipt not found")
	// ErrAlreadyPosted rejects a second posting of the same receipt.
	ErrAlreadyPosted = shared.NewError(shared.KindStateConflict, "purchase_receipt", "status", "receipt already posted")
	// ErrInvalidTransition rejects a move the state machine does not allow.
	ErrInvalidTransition = shared.NewError(shared.KindStateConflict, "purchase_receipt", "status", "invalid status transition")
	// ErrNoItems rejects posting an empty receipt.
	ErrNoItems = shared.NewError(shared.KindValidation, "purchase_receipt", "items", "at least one line required")
)

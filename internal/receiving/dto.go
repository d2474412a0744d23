package receiving

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateReceiptInput describes a new draft receipt with its lines.
type CreateReceiptInput struct {
	OrgID           int64       `validate:"required"`
	VendorID        int64       `validate:"required"`
	PurchaseOrderID *int64
	Number          string
	Date            time.Time
	CreatedBy       int64
	Items           []ItemInput `validate:"min=1,dive"`
}

// ItemInput describes one line of a receipt.
type ItemInput struct {
	VariantID          int64 `validate:"required"`
	QtyOrdered         *decimal.Decimal
	QtyReceived        decimal.Decimal
	UnitCost           decimal.Decimal
	DiscountPct        decimal.Decimal
	TaxRate            decimal.Decimal
	InventoryAccountID *int64
}

// AccountDefaults lets the call site override the organisation configuration
// for one posting. Unset slots fall back to the configured mapping.
type AccountDefaults struct {
	InventoryAccountID *int64
	APAccountID        *int64
	TaxAccountID       *int64
}

// ReceiveInput identifies the receipt to post.
type ReceiveInput struct {
	OrgID     int64 `validate:"required"`
	UserID    int64
	ReceiptID int64 `validate:"required"`
	Defaults  AccountDefaults
}

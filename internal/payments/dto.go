package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateInvoiceInput registers a vendor invoice in the AP subledger.
type CreateInvoiceInput struct {
	OrgID        int64     `validate:"required"`
	VendorID     int64     `validate:"required"`
	ReceiptID    *int64
	Number       string
	InvoiceDate  time.Time `validate:"required"`
	DueDate      time.Time
	Subtotal     decimal.Decimal
	Tax          decimal.Decimal
	DiscountDays int       `validate:"min=0"`
	DiscountPct  decimal.Decimal
}

// ApplicationInput allocates part of a payment to one open invoice. Applied
// amount and discount settle the invoice together: amountPaid grows by
// AmountApplied + DiscountTaken, while only AmountApplied leaves the bank and
// the discount is credited to purchase-discount income.
type ApplicationInput struct {
	InvoiceID     int64 `validate:"required"`
	AmountApplied decimal.Decimal
	DiscountTaken decimal.Decimal
}

// CreatePaymentInput describes a settlement across one or more invoices.
type CreatePaymentInput struct {
	OrgID               int64              `validate:"required"`
	UserID              int64
	VendorID            int64              `validate:"required"`
	BankAccountID       int64              `validate:"required"`
	VendorBankAccountID *int64
	Number              string
	Date                time.Time
	Method              string
	Currency            string
	ExchangeRate        decimal.Decimal
	Amount              decimal.Decimal
	Applications        []ApplicationInput `validate:"min=1,dive"`
}

// VoidPaymentInput identifies the posted payment to void.
type VoidPaymentInput struct {
	OrgID     int64  `validate:"required"`
	UserID    int64
	PaymentID int64  `validate:"required"`
	Reason    string `validate:"required"`
}

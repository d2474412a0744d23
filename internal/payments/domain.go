package payments

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// InvoiceStatus is the vendor invoice document lifecycle.
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusApproved  InvoiceStatus = "APPROVED"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// SettlementState is derived from amountPaid vs total, never stored
// transitionally. Overdue is evaluated lazily against a read-time clock.
type SettlementState string

const (
	SettlementUnpaid        SettlementState = "UNPAID"
	SettlementPartiallyPaid SettlementState = "PARTIALLY_PAID"
	SettlementPaid          SettlementState = "PAID"
	SettlementOverdue       SettlementState = "OVERDUE"
)

// PaymentStatus is the payment lifecycle. Posted payments are never deleted;
// voiding posts a reversal and flags the payment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusApproved PaymentStatus = "APPROVED"
	PaymentStatusRejected PaymentStatus = "REJECTED"
	PaymentStatusPosted   PaymentStatus = "POSTED"
	PaymentStatusVoided   PaymentStatus = "VOIDED"
)

// VendorInvoice is the AP subledger record.
type VendorInvoice struct {
	ID           int64
	OrgID        int64
	Number       string
	ReceiptID    *int64
	VendorID     int64
	InvoiceDate  time.Time
	DueDate      time.Time
	Subtotal     decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
	AmountPaid   decimal.Decimal
	DiscountDays int
	DiscountPct  decimal.Decimal
	Status       InvoiceStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AmountDue is the open balance.
func (inv VendorInvoice) AmountDue() decimal.Decimal {
	return inv.Total.Sub(inv.AmountPaid)
}

// SettlementState derives the payment state at asOf.
func (inv VendorInvoice) SettlementState(asOf time.Time) SettlementState {
	switch {
	case money.Cents(inv.AmountPaid) >= money.Cents(inv.Total):
		return SettlementPaid
	case money.IsPositive(inv.AmountPaid):
		return SettlementPartiallyPaid
	case !inv.DueDate.IsZero() && asOf.After(inv.DueDate):
		return SettlementOverdue
	}
	return SettlementUnpaid
}

// DiscountWindowEnd is the last date an early-payment discount may be taken.
func (inv VendorInvoice) DiscountWindowEnd() time.Time {
	return inv.InvoiceDate.AddDate(0, 0, inv.DiscountDays)
}

// Payment is the settlement aggregate.
type Payment struct {
	ID                  int64
	OrgID               int64
	Number              string
	VendorID            int64
	Date                time.Time
	Method              string
	BankAccountID       int64
	VendorBankAccountID *int64
	Amount              decimal.Decimal
	Currency            string
	ExchangeRate        decimal.Decimal
	Status              PaymentStatus
	JournalEntryID      *int64
	ReversalEntryID     *int64
	VoidReason          *string
	CreatedBy           int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
	Applications        []PaymentApplication
}

// PaymentApplication allocates part of a payment to one invoice.
type PaymentApplication struct {
	ID            int64
	PaymentID     int64
	InvoiceID     int64
	AmountApplied decimal.Decimal
	DiscountTaken decimal.Decimal
	AppliedAt     time.Time
}

// CompanyBankAccount carries the balance debited by payments. Only the
// settlement engine and out-of-scope manual adjustments mutate it.
type CompanyBankAccount struct {
	ID             int64
	OrgID          int64
	GLAccountID    int64
	Name           string
	CurrentBalance decimal.Decimal
	IsActive       bool
	UpdatedAt      time.Time
}

var (
	// ErrPaymentNotFound indicates a missing org-scoped payment.
	ErrPaymentNotFound = shared.NewError(shared.KindNotFound, "payment", "", "payment not found")
	// ErrInvoiceNotFound indicates a missing org-scoped invoice.
	ErrInvoiceNotFound = shared.NewError(shared.KindNotFound, "vendor_invoice", "", "invoice not found")
	// ErrBankAccountNotFound indicates a missing org-scoped bank account.
	ErrBankAccountNotFound = shared.NewError(shared.KindNotFound, "bank_account", "", "bank account not found")
	// ErrBankAccountInactive rejects payments from a closed bank account.
	ErrBankAccountInactive = shared.NewError(shared.KindValidation, "bank_account", "is_active", "bank account inactive")
	// ErrVendorMismatch indicates an application targets another vendor's invoice.
	ErrVendorMismatch = shared.NewError(shared.KindValidation, "payment_application", "vendor_invoice_id", "invoice belongs to another vendor")
	// ErrInvoiceNotOpen indicates the invoice has no open balance.
	ErrInvoiceNotOpen = shared.NewError(shared.KindStateConflict, "vendor_invoice", "amount_due", "invoice has no open balance")
	// ErrOverApplied indicates applied+discount exceeds the open balance.
	ErrOverApplied = shared.NewError(shared.KindPolicyViolation, "payment_application", "amount_applied", "application exceeds amount due")
	// ErrOverAllocated indicates applications exceed the payment amount.
	ErrOverAllocated = shared.NewError(shared.KindPolicyViolation, "payment", "amount", "applications exceed payment amount")
	// ErrDiscountWindowExpired rejects a discount taken past its window.
	ErrDiscountWindowExpired = shared.NewError(shared.KindPolicyViolation, "payment_application", "discount_taken", "discount window expired")
	// ErrInvalidPaymentStatus rejects an operation for the payment's state.
	ErrInvalidPaymentStatus = shared.NewError(shared.KindStateConflict, "payment", "status", "invalid status for operation")
)

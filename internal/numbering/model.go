package numbering

import (
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// DocumentType tags a series with the document family it numbers.
type DocumentType string

const (
	DocTypePurchaseOrder   DocumentType = "PURCHASE_ORDER"
	DocTypePurchaseReceipt DocumentType = "PURCHASE_RECEIPT"
	DocTypeVendorInvoice   DocumentType = "VENDOR_INVOICE"
	DocTypePayment         DocumentType = "PAYMENT"
	DocTypeSalesOrder      DocumentType = "SALES_ORDER"
)

// NoSerie is a numbering series. At most one series per (org, document type)
// carries DefaultNos.
type NoSerie struct {
	ID           int64
	OrgID        int64
	Code         string
	Description  string
	DocumentType DocumentType
	DefaultNos   bool
	ManualNos    bool
	DateOrder    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NoSerieLine is one date-bounded range of a series. LastNoUsed is the
// contention point: concurrent allocations bump it under compare-and-swap.
type NoSerieLine struct {
	ID           int64
	SeriesID     int64
	StartingDate time.Time
	StartingNo   string
	EndingNo     string
	LastNoUsed   string
	LastDateUsed *time.Time
	IncrementBy  int
	Open         bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var (
	// ErrSeriesNotFound indicates an unknown series code.
	ErrSeriesNotFound = shared.NewError(shared.KindNotFound, "no_serie", "code", "series not found")
	// ErrNoDefaultSeries indicates no default series for the document type.
	ErrNoDefaultSeries = shared.NewError(shared.KindValidation, "no_serie", "document_type", "no default series configured")
	// ErrNoOpenLine indicates no open line covers the requested date.
	ErrNoOpenLine = shared.NewError(shared.KindStateConflict, "no_serie_line", "starting_date", "no open line for date")
	// ErrSeriesExhausted indicates the next number would pass the ending number.
	ErrSeriesExhausted = shared.NewError(shared.KindStateConflict, "no_serie_line", "ending_no", "series exhausted")
	// ErrDateOutOfOrder indicates a date-ordered series got an older date.
	ErrDateOutOfOrder = shared.NewError(shared.KindPolicyViolation, "no_serie_line", "last_date_used", "date precedes last allocation")
	// ErrManualNumberConflict indicates a caller-supplied number collides
	// with an already-issued one.
	ErrManualNumberConflict = shared.NewError(shared.KindStateConflict, "no_serie_line", "last_no_used", "manual number already issued")
	// ErrManualNotAllowed indicates the series does not accept manual numbers.
	ErrManualNotAllowed = shared.NewError(shared.KindValidation, "no_serie", "manual_nos", "series does not allow manual numbers")
	// ErrAllocatorContention indicates a lost allocation race: the bounded
	// retry loop gave up, or a concurrent transaction moved the line first.
	ErrAllocatorContention = shared.NewError(shared.KindStateConflict, "no_serie_line", "last_no_used", "concurrent allocation collision")
)

package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/coa"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ConfigPort resolves default accounts from the organisation configuration.
type ConfigPort interface {
	RequireSlot(ctx context.Context, orgID int64, role coa.SystemRole) (int64, error)
}

// AuditPort records settlement actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Repository describes AP storage used by the engine.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPayment(ctx context.Context, orgID, paymentID int64) (Payment, error)
	ListPayments(ctx context.Context, orgID int64) ([]Payment, error)
	GetInvoice(ctx context.Context, orgID, invoiceID int64) (VendorInvoice, error)
	ListOpenInvoices(ctx context.Context, orgID, vendorID int64) ([]VendorInvoice, error)
}

// TxRepository exposes operations available within the settlement transaction.
// Ledger and Numbers return ports bound to the same transaction so the journal
// entry and the number bump commit or roll back together with the invoice and
// bank mutations.
type TxRepository interface {
	GetInvoiceForUpdate(ctx context.Context, orgID, invoiceID int64) (VendorInvoice, error)
	InsertInvoice(ctx context.Context, invoice VendorInvoice) (int64, error)
	UpdateInvoiceSettlement(ctx context.Context, invoiceID int64, amountPaid decimal.Decimal, status InvoiceStatus) error
	GetBankAccountForUpdate(ctx context.Context, orgID, bankAccountID int64) (CompanyBankAccount, error)
	UpdateBankBalance(ctx context.Context, bankAccountID int64, balance decimal.Decimal) error
	GetPaymentForUpdate(ctx context.Context, orgID, paymentID int64) (Payment, error)
	InsertPayment(ctx context.Context, payment Payment) (int64, error)
	InsertApplication(ctx context.Context, app PaymentApplication) (int64, error)
	SetPaymentPosted(ctx context.Context, paymentID int64, number string, entryID int64) error
	SetPaymentVoided(ctx context.Context, paymentID int64, reason string, reversalEntryID int64) error
	Ledger() ledger.TxRepository
	Numbers() numbering.LinePort
}

// Service is the payment settlement engine.
type Service struct {
	repo     Repository
	config   ConfigPort
	audit    AuditPort
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs the engine. audit may be nil.
func NewService(repo Repository, config ConfigPort, audit AuditPort) *Service {
	return &Service{
		repo:     repo,
		config:   config,
		audit:    audit,
		validate: validator.New(),
		now:      time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateInvoice registers a vendor invoice. Totals are recomputed from
// subtotal and tax; a document number is allocated when the caller leaves it
// blank.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (VendorInvoice, error) {
	if err := s.validate.Struct(input); err != nil {
		return VendorInvoice{}, shared.NewError(shared.KindValidation, "vendor_invoice", "", err.Error())
	}
	if money.IsNegative(input.Subtotal) || money.IsNegative(input.Tax) {
		return VendorInvoice{}, shared.NewError(shared.KindValidation, "vendor_invoice", "subtotal", "amounts must be >= 0")
	}
	if money.IsNegative(input.DiscountPct) || input.DiscountPct.GreaterThan(decimal.NewFromInt(100)) {
		return VendorInvoice{}, shared.NewError(shared.KindValidation, "vendor_invoice", "discount_pct", "discount must be between 0 and 100")
	}
	subtotal := money.Round2(input.Subtotal)
	tax := money.Round2(input.Tax)
	invoice := VendorInvoice{
		OrgID:        input.OrgID,
		Number:       input.Number,
		ReceiptID:    input.ReceiptID,
		VendorID:     input.VendorID,
		InvoiceDate:  input.InvoiceDate,
		DueDate:      input.DueDate,
		Subtotal:     subtotal,
		Tax:          tax,
		Total:        subtotal.Add(tax),
		AmountPaid:   money.Zero,
		DiscountDays: input.DiscountDays,
		DiscountPct:  input.DiscountPct,
		Status:       InvoiceStatusPending,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if invoice.Number == "" {
			number, err := numbering.AllocateWithin(ctx, tx.Numbers(), numbering.Request{
				OrgID:        invoice.OrgID,
				DocumentType: numbering.DocTypeVendorInvoice,
				AsOf:         invoice.InvoiceDate,
			})
			if err != nil {
				return err
			}
			invoice.Number = number
		}
		id, err := tx.InsertInvoice(ctx, invoice)
		if err != nil {
			return err
		}
		invoice.ID = id
		return nil
	})
	if err != nil {
		return VendorInvoice{}, err
	}
	return invoice, nil
}

// ApproveInvoice releases a pending invoice for payment.
func (s *Service) ApproveInvoice(ctx context.Context, orgID, invoiceID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invoice, err := tx.GetInvoiceForUpdate(ctx, orgID, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != InvoiceStatusPending {
			return shared.NewError(shared.KindStateConflict, "vendor_invoice", "status", "only pending invoices can be approved")
		}
		return tx.UpdateInvoiceSettlement(ctx, invoiceID, invoice.AmountPaid, InvoiceStatusApproved)
	})
}

// CreatePayment settles one or more open invoices of a single vendor from a
// company bank account. Every application is checked against the invoice's
// open balance and, when a discount is taken, against the early-payment
// window. Invoice balances, the bank balance, the document number and one
// balanced journal entry (Accounts-Payable debit against Bank and
// Purchase-Discount credits) commit as a single unit of work.
func (s *Service) CreatePayment(ctx context.Context, input CreatePaymentInput) (Payment, error) {
	if err := s.validate.Struct(input); err != nil {
		return Payment{}, shared.NewError(shared.KindValidation, "payment", "", err.Error())
	}
	if !money.IsPositive(input.Amount) {
		return Payment{}, shared.NewError(shared.KindValidation, "payment", "amount", "amount must be positive")
	}
	totalApplied := money.Zero
	for idx, app := range input.Applications {
		if !money.IsPositive(app.AmountApplied) {
			return Payment{}, shared.NewError(shared.KindValidation, "payment_application",
				fmt.Sprintf("applications[%d].amount_applied", idx), "applied amount must be positive")
		}
		if money.IsNegative(app.DiscountTaken) {
			return Payment{}, shared.NewError(shared.KindValidation, "payment_application",
				fmt.Sprintf("applications[%d].discount_taken", idx), "discount must be >= 0")
		}
		totalApplied = totalApplied.Add(app.AmountApplied)
	}
	if money.Cents(totalApplied) > money.Cents(input.Amount) {
		return Payment{}, ErrOverAllocated
	}

	date := defaultTime(input.Date, s.now)
	payment := Payment{
		OrgID:               input.OrgID,
		Number:              input.Number,
		VendorID:            input.VendorID,
		Date:                date,
		Method:              input.Method,
		BankAccountID:       input.BankAccountID,
		VendorBankAccountID: input.VendorBankAccountID,
		Amount:              money.Round2(input.Amount),
		Currency:            input.Currency,
		ExchangeRate:        input.ExchangeRate,
		Status:              PaymentStatusPending,
		CreatedBy:           input.UserID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bank, err := tx.GetBankAccountForUpdate(ctx, input.OrgID, input.BankAccountID)
		if err != nil {
			return err
		}
		if !bank.IsActive {
			return ErrBankAccountInactive
		}
		apAccount, err := s.config.RequireSlot(ctx, input.OrgID, coa.RoleAccountsPayable)
		if err != nil {
			return err
		}

		totalDiscount := money.Zero
		type settlement struct {
			invoiceID int64
			applied   decimal.Decimal
			discount  decimal.Decimal
		}
		settlements := make([]settlement, 0, len(input.Applications))
		for _, app := range input.Applications {
			invoice, err := tx.GetInvoiceForUpdate(ctx, input.OrgID, app.InvoiceID)
			if err != nil {
				return err
			}
			if invoice.VendorID != input.VendorID {
				return ErrVendorMismatch
			}
			if invoice.Status == InvoiceStatusCancelled {
				return ErrInvoiceNotOpen
			}
			due := invoice.AmountDue()
			if !money.IsPositive(due) {
				return ErrInvoiceNotOpen
			}
			applied := money.Round2(app.AmountApplied)
			discount := money.Round2(app.DiscountTaken)
			if money.Cents(applied.Add(discount)) > money.Cents(due) {
				return ErrOverApplied
			}
			if money.IsPositive(discount) {
				if !money.IsPositive(invoice.DiscountPct) {
					return shared.NewError(shared.KindPolicyViolation, "payment_application", "discount_taken", "invoice offers no early-payment discount")
				}
				if date.After(invoice.DiscountWindowEnd()) {
					return ErrDiscountWindowExpired
				}
				maxDiscount := money.Round2(invoice.Total.Mul(money.FromPercent(invoice.DiscountPct)))
				if money.Cents(discount) > money.Cents(maxDiscount) {
					return shared.NewError(shared.KindPolicyViolation, "payment_application", "discount_taken", "discount exceeds invoice terms")
				}
			}

			newPaid := invoice.AmountPaid.Add(applied).Add(discount)
			status := invoice.Status
			if money.Cents(newPaid) >= money.Cents(invoice.Total) {
				status = InvoiceStatusPaid
			}
			if err := tx.UpdateInvoiceSettlement(ctx, invoice.ID, newPaid, status); err != nil {
				return err
			}
			totalDiscount = totalDiscount.Add(discount)
			settlements = append(settlements, settlement{invoiceID: invoice.ID, applied: applied, discount: discount})
		}

		if err := tx.UpdateBankBalance(ctx, bank.ID, bank.CurrentBalance.Sub(payment.Amount)); err != nil {
			return err
		}

		if payment.Number == "" {
			number, err := numbering.AllocateWithin(ctx, tx.Numbers(), numbering.Request{
				OrgID:        input.OrgID,
				DocumentType: numbering.DocTypePayment,
				AsOf:         date,
			})
			if err != nil {
				return err
			}
			payment.Number = number
		}

		id, err := tx.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		payment.ID = id
		for _, st := range settlements {
			app := PaymentApplication{
				PaymentID:     id,
				InvoiceID:     st.invoiceID,
				AmountApplied: st.applied,
				DiscountTaken: st.discount,
				AppliedAt:     date,
			}
			appID, err := tx.InsertApplication(ctx, app)
			if err != nil {
				return err
			}
			app.ID = appID
			payment.Applications = append(payment.Applications, app)
		}

		// The unapplied remainder, if any, stays on Accounts-Payable as an
		// on-account debit, so the AP side is always amount + discounts.
		vendorID := input.VendorID
		lines := []ledger.PostingLineInput{
			{AccountID: apAccount, Debit: payment.Amount.Add(totalDiscount), VendorID: &vendorID},
			{AccountID: bank.GLAccountID, Credit: payment.Amount},
		}
		if money.IsPositive(totalDiscount) {
			discountAccount, err := s.config.RequireSlot(ctx, input.OrgID, coa.RolePurchaseDiscount)
			if err != nil {
				return err
			}
			lines = append(lines, ledger.PostingLineInput{AccountID: discountAccount, Credit: totalDiscount, VendorID: &vendorID})
		}
		entry, err := ledger.PostWithin(ctx, tx.Ledger(), ledger.PostingInput{
			OrgID:       input.OrgID,
			Date:        date,
			Description: fmt.Sprintf("Vendor payment %s", payment.Number),
			Reference:   &payment.Number,
			PostedBy:    input.UserID,
			Lines:       lines,
		})
		if err != nil {
			return err
		}
		if err := tx.SetPaymentPosted(ctx, id, payment.Number, entry.ID); err != nil {
			return err
		}
		payment.Status = PaymentStatusPosted
		payment.JournalEntryID = &entry.ID
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	s.recordAudit(ctx, input.OrgID, input.UserID, "payment.create", payment.ID, map[string]any{
		"number":           payment.Number,
		"journal_entry_id": *payment.JournalEntryID,
	})
	return payment, nil
}

// VoidPayment reverses a posted payment: invoice balances and the bank
// balance are restored, an equal-and-opposite journal entry is posted
// referencing the original, and the payment is flagged Voided. Nothing is
// deleted.
func (s *Service) VoidPayment(ctx context.Context, input VoidPaymentInput) (Payment, error) {
	if err := s.validate.Struct(input); err != nil {
		return Payment{}, shared.NewError(shared.KindValidation, "payment", "", err.Error())
	}
	var voided Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payment, err := tx.GetPaymentForUpdate(ctx, input.OrgID, input.PaymentID)
		if err != nil {
			return err
		}
		if payment.Status != PaymentStatusPosted {
			return ErrInvalidPaymentStatus
		}

		for _, app := range payment.Applications {
			invoice, err := tx.GetInvoiceForUpdate(ctx, input.OrgID, app.InvoiceID)
			if err != nil {
				return err
			}
			newPaid := invoice.AmountPaid.Sub(app.AmountApplied).Sub(app.DiscountTaken)
			status := invoice.Status
			if status == InvoiceStatusPaid && money.Cents(newPaid) < money.Cents(invoice.Total) {
				status = InvoiceStatusApproved
			}
			if err := tx.UpdateInvoiceSettlement(ctx, invoice.ID, newPaid, status); err != nil {
				return err
			}
		}

		bank, err := tx.GetBankAccountForUpdate(ctx, input.OrgID, payment.BankAccountID)
		if err != nil {
			return err
		}
		if err := tx.UpdateBankBalance(ctx, bank.ID, bank.CurrentBalance.Add(payment.Amount)); err != nil {
			return err
		}

		original, err := tx.Ledger().GetEntryWithLines(ctx, input.OrgID, *payment.JournalEntryID)
		if err != nil {
			return err
		}
		reversal, err := ledger.PostWithin(ctx, tx.Ledger(), ledger.PostingInput{
			OrgID:       input.OrgID,
			Date:        s.now(),
			Description: fmt.Sprintf("Void payment %s: %s", payment.Number, input.Reason),
			Reference:   &payment.Number,
			ReversalOf:  &original.ID,
			PostedBy:    input.UserID,
			Lines:       ledger.Negate(original.Lines),
		})
		if err != nil {
			return err
		}
		if err := tx.SetPaymentVoided(ctx, payment.ID, input.Reason, reversal.ID); err != nil {
			return err
		}
		payment.Status = PaymentStatusVoided
		payment.VoidReason = &input.Reason
		payment.ReversalEntryID = &reversal.ID
		voided = payment
		return nil
	})
	if err != nil {
		return Payment{}, err
	}
	s.recordAudit(ctx, input.OrgID, input.UserID, "payment.void", voided.ID, map[string]any{
		"number":            voided.Number,
		"reversal_entry_id": *voided.ReversalEntryID,
		"reason":            input.Reason,
	})
	return voided, nil
}

// GetPayment fetches one payment with its applications.
func (s *Service) GetPayment(ctx context.Context, orgID, paymentID int64) (Payment, error) {
	return s.repo.GetPayment(ctx, orgID, paymentID)
}

// ListPayments returns payments of the organisation, newest first.
func (s *Service) ListPayments(ctx context.Context, orgID int64) ([]Payment, error) {
	return s.repo.ListPayments(ctx, orgID)
}

// GetInvoice fetches one invoice.
func (s *Service) GetInvoice(ctx context.Context, orgID, invoiceID int64) (VendorInvoice, error) {
	return s.repo.GetInvoice(ctx, orgID, invoiceID)
}

// ListOpenInvoices returns the vendor's invoices with an open balance.
func (s *Service) ListOpenInvoices(ctx context.Context, orgID, vendorID int64) ([]VendorInvoice, error) {
	return s.repo.ListOpenInvoices(ctx, orgID, vendorID)
}

func (s *Service) recordAudit(ctx context.Context, orgID, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    orgID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "payment",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
		At:       s.now(),
	})
}

func defaultTime(value time.Time, now func() time.Time) time.Time {
	if value.IsZero() {
		return now()
	}
	return value
}

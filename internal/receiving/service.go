package receiving

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/coa"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/money"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// ConfigPort resolves default accounts from the organisation configuration.
type ConfigPort interface {
	RequireSlot(ctx context.Context, orgID int64, role coa.SystemRole) (int64, error)
}

// AuditPort records posting actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Repository describes receipt storage used by the engine.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetReceipt(ctx context.Context, orgID, receiptID int64) (PurchaseReceipt, error)
	ListReceipts(ctx context.Context, orgID int64) ([]PurchaseReceipt, error)
}

// TxRepository exposes operations available within the posting transaction.
// Ledger, Numbers and Layers return ports bound to the same transaction so
// the journal entry, the number bump and the cost layers commit or roll back
// together with the receipt.
type TxRepository interface {
	GetReceiptForUpdate(ctx context.Context, orgID, receiptID int64) (PurchaseReceipt, error)
	InsertReceipt(ctx context.Context, receipt PurchaseReceipt) (int64, error)
	InsertItem(ctx context.Context, item PurchaseItem) (int64, error)
	UpdateItemComputed(ctx context.Context, itemID int64, taxAmount, lineTotal decimal.Decimal) error
	UpdateReceiptStatus(ctx context.Context, receiptID int64, status ReceiptStatus) error
	SetReceiptPosted(ctx context.Context, receiptID int64, number string, entryID int64) error
	Ledger() ledger.TxPort
	Numbers() numbering.LinePort
	Layers() inventory.LayerPort
}

// Service is the purchase receiving engine.
type Service struct {
	repo     Repository
	config   ConfigPort
	sink     inventory.MovementSink
	audit    AuditPort
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs the engine. sink and audit may be nil.
func NewService(repo Repository, config ConfigPort, sink inventory.MovementSink, audit AuditPort) *Service {
	return &Service{
		repo:     repo,
		config:   config,
		sink:     sink,
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

// CreateReceipt persists a draft receipt with its lines.
func (s *Service) CreateReceipt(ctx context.Context, input CreateReceiptInput) (PurchaseReceipt, error) {
	if err := s.validate.Struct(input); err != nil {
		return PurchaseReceipt{}, shared.NewError(shared.KindValidation, "purchase_receipt", "", err.Error())
	}
	for idx, item := range input.Items {
		if err := validateItem(idx, item); err != nil {
			return PurchaseReceipt{}, err
		}
	}
	receipt := PurchaseReceipt{
		OrgID:           input.OrgID,
		Number:          input.Number,
		PurchaseOrderID: input.PurchaseOrderID,
		VendorID:        input.VendorID,
		Date:            defaultTime(input.Date, s.now),
		Status:          StatusDraft,
		CreatedBy:       input.CreatedBy,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertReceipt(ctx, receipt)
		if err != nil {
			return err
		}
		receipt.ID = id
		for idx, item := range input.Items {
			line := PurchaseItem{
				ReceiptID:          id,
				LineNo:             idx + 1,
				VariantID:          item.VariantID,
				QtyOrdered:         item.QtyOrdered,
				QtyReceived:        item.QtyReceived,
				UnitCost:           item.UnitCost,
				DiscountPct:        item.DiscountPct,
				TaxRate:            item.TaxRate,
				InventoryAccountID: item.InventoryAccountID,
			}
			lineID, err := tx.InsertItem(ctx, line)
			if err != nil {
				return err
			}
			line.ID = lineID
			receipt.Items = append(receipt.Items, line)
		}
		return nil
	})
	if err != nil {
		return PurchaseReceipt{}, err
	}
	s.recordAudit(ctx, receipt.OrgID, input.CreatedBy, "receipt.create", receipt.ID, map[string]any{"number": receipt.Number})
	return receipt, nil
}

// Submit moves a draft receipt to Pending.
func (s *Service) Submit(ctx context.Context, orgID, receiptID int64) error {
	return s.transition(ctx, orgID, receiptID, StatusPending)
}

// MarkReceived moves a pending receipt to Received.
func (s *Service) MarkReceived(ctx context.Context, orgID, receiptID int64) error {
	return s.transition(ctx, orgID, receiptID, StatusReceived)
}

// Cancel cancels a receipt that has not been posted.
func (s *Service) Cancel(ctx context.Context, orgID, receiptID int64) error {
	return s.transition(ctx, orgID, receiptID, StatusCancelled)
}

func (s *Service) transition(ctx context.Context, orgID, receiptID int64, to ReceiptStatus) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		receipt, err := tx.GetReceiptForUpdate(ctx, orgID, receiptID)
		if err != nil {
			return err
		}
		if !receipt.Status.CanTransition(to) {
			return ErrInvalidTransition
		}
		return tx.UpdateReceiptStatus(ctx, receiptID, to)
	})
}

// ReceivePurchase posts a receipt: recomputes line totals, creates one FIFO
// cost layer per line, allocates a document number when missing and writes
// one balanced journal entry (Inventory and Tax-receivable debits against an
// Accounts-Payable credit). All of it commits as a single unit of work; any
// failure leaves the receipt at its prior status.
func (s *Service) ReceivePurchase(ctx context.Context, input ReceiveInput) (PurchaseReceipt, error) {
	if err := s.validate.Struct(input); err != nil {
		return PurchaseReceipt{}, shared.NewError(shared.KindValidation, "purchase_receipt", "", err.Error())
	}
	var posted PurchaseReceipt
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		receipt, err := tx.GetReceiptForUpdate(ctx, input.OrgID, input.ReceiptID)
		if err != nil {
			return err
		}
		if receipt.Status == StatusPosted {
			return ErrAlreadyPosted
		}
		if !receipt.Status.CanTransition(StatusPosted) {
			return ErrInvalidTransition
		}
		if len(receipt.Items) == 0 {
			return ErrNoItems
		}

		apAccount, err := s.resolveAccount(ctx, input.OrgID, input.Defaults.APAccountID, coa.RoleAccountsPayable)
		if err != nil {
			return err
		}
		var inventoryDefault int64
		needDefault := false
		needTax := false
		for _, item := range receipt.Items {
			if item.InventoryAccountID == nil {
				needDefault = true
			}
			if money.IsPositive(item.TaxRate) {
				needTax = true
			}
		}
		if needDefault {
			inventoryDefault, err = s.resolveAccount(ctx, input.OrgID, input.Defaults.InventoryAccountID, coa.RoleInventory)
			if err != nil {
				return err
			}
		}
		var taxAccount int64
		if needTax {
			taxAccount, err = s.resolveAccount(ctx, input.OrgID, input.Defaults.TaxAccountID, coa.RoleTaxReceivable)
			if err != nil {
				return err
			}
		}

		// Per-line recompute plus layer creation, then per-account
		// aggregation. Line totals are rounded subtotal + rounded tax so
		// the aggregate entry always balances in cents.
		inventoryDebits := make(map[int64]decimal.Decimal)
		accountOrder := make([]int64, 0, len(receipt.Items))
		taxTotal := money.Zero
		apTotal := money.Zero
		for i := range receipt.Items {
			item := &receipt.Items[i]
			if err := validateItem(item.LineNo-1, ItemInput{
				VariantID:   item.VariantID,
				QtyReceived: item.QtyReceived,
				UnitCost:    item.UnitCost,
				DiscountPct: item.DiscountPct,
				TaxRate:     item.TaxRate,
			}); err != nil {
				return err
			}
			subtotal := money.LineSubtotal(item.QtyReceived, item.UnitCost, item.DiscountPct)
			taxAmount := money.LineTax(item.QtyReceived, item.UnitCost, item.DiscountPct, item.TaxRate)
			total := subtotal.Add(taxAmount)
			item.TaxAmount = taxAmount
			item.LineTotal = total
			if err := tx.UpdateItemComputed(ctx, item.ID, taxAmount, total); err != nil {
				return err
			}

			if _, err := tx.Layers().InsertLayer(ctx, inventory.LayerInput{
				OrgID:     receipt.OrgID,
				VariantID: item.VariantID,
				ReceiptID: receipt.ID,
				LineNo:    item.LineNo,
				Quantity:  item.QtyReceived,
				UnitCost:  item.UnitCost,
			}); err != nil {
				return err
			}
			if s.sink != nil {
				if err := s.sink.RegisterPurchase(ctx, receipt.OrgID, item.VariantID, item.QtyReceived, item.UnitCost, receipt.ID); err != nil {
					return err
				}
			}

			account := inventoryDefault
			if item.InventoryAccountID != nil {
				account = *item.InventoryAccountID
			}
			if _, seen := inventoryDebits[account]; !seen {
				accountOrder = append(accountOrder, account)
			}
			inventoryDebits[account] = inventoryDebits[account].Add(subtotal)
			taxTotal = taxTotal.Add(taxAmount)
			apTotal = apTotal.Add(total)
		}
		if !money.IsPositive(apTotal) {
			return shared.NewError(shared.KindValidation, "purchase_receipt", "items", "receipt total must be positive")
		}

		number := receipt.Number
		if number == "" {
			number, err = numbering.AllocateWithin(ctx, tx.Numbers(), numbering.Request{
				OrgID:        receipt.OrgID,
				DocumentType: numbering.DocTypePurchaseReceipt,
				AsOf:         receipt.Date,
			})
			if err != nil {
				return err
			}
		}

		vendorID := receipt.VendorID
		lines := make([]ledger.PostingLineInput, 0, len(accountOrder)+2)
		for _, account := range accountOrder {
			lines = append(lines, ledger.PostingLineInput{AccountID: account, Debit: inventoryDebits[account], VendorID: &vendorID})
		}
		if money.IsPositive(taxTotal) {
			lines = append(lines, ledger.PostingLineInput{AccountID: taxAccount, Debit: taxTotal, VendorID: &vendorID})
		}
		lines = append(lines, ledger.PostingLineInput{AccountID: apAccount, Credit: apTotal, VendorID: &vendorID})

		entry, err := ledger.PostWithin(ctx, tx.Ledger(), ledger.PostingInput{
			OrgID:       receipt.OrgID,
			Date:        receipt.Date,
			Description: fmt.Sprintf("Purchase receipt %s", number),
			Reference:   &number,
			PostedBy:    input.UserID,
			Lines:       lines,
		})
		if err != nil {
			return err
		}
		if err := tx.SetReceiptPosted(ctx, receipt.ID, number, entry.ID); err != nil {
			return err
		}
		receipt.Number = number
		receipt.Status = StatusPosted
		receipt.JournalEntryID = &entry.ID
		posted = receipt
		return nil
	})
	if err != nil {
		return PurchaseReceipt{}, err
	}
	s.recordAudit(ctx, input.OrgID, input.UserID, "receipt.post", posted.ID, map[string]any{
		"number":           posted.Number,
		"journal_entry_id": *posted.JournalEntryID,
	})
	return posted, nil
}

// GetReceipt fetches a receipt with its items.
func (s *Service) GetReceipt(ctx context.Context, orgID, receiptID int64) (PurchaseReceipt, error) {
	return s.repo.GetReceipt(ctx, orgID, receiptID)
}

// ListReceipts returns receipts of the organisation, newest first.
func (s *Service) ListReceipts(ctx context.Context, orgID int64) ([]PurchaseReceipt, error) {
	return s.repo.ListReceipts(ctx, orgID)
}

func (s *Service) resolveAccount(ctx context.Context, orgID int64, override *int64, role coa.SystemRole) (int64, error) {
	if override != nil {
		return *override, nil
	}
	return s.config.RequireSlot(ctx, orgID, role)
}

func (s *Service) recordAudit(ctx context.Context, orgID, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    orgID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase_receipt",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
		At:       s.now(),
	})
}

func validateItem(idx int, item ItemInput) error {
	field := func(name string) string { return fmt.Sprintf("items[%d].%s", idx, name) }
	if item.VariantID == 0 {
		return shared.NewError(shared.KindValidation, "purchase_receipt", field("variant_id"), "variant required")
	}
	if !money.IsPositive(item.QtyReceived) {
		return shared.NewError(shared.KindValidation, "purchase_receipt", field("qty_received"), "quantity must be positive")
	}
	if money.IsNegative(item.UnitCost) {
		return shared.NewError(shared.KindValidation, "purchase_receipt", field("unit_cost"), "unit cost must be >= 0")
	}
	if money.IsNegative(item.DiscountPct) || item.DiscountPct.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewError(shared.KindValidation, "purchase_receipt", field("discount_pct"), "discount must be between 0 and 100")
	}
	if money.IsNegative(item.TaxRate) {
		return shared.NewError(shared.KindValidation, "purchase_receipt", field("tax_rate"), "tax rate must be >= 0")
	}
	return nil
}

func defaultTime(value time.Time, now func() time.Time) time.Time {
	if value.IsZero() {
		return now()
	}
	return value
}

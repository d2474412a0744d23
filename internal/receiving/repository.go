package receiving

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const receiptColumns = `id, org_id, number, purchase_order_id, vendor_id, date, status, journal_entry_id, created_by, created_at, updated_at`
const itemColumns = `id, receipt_id, line_no, variant_id, qty_ordered, qty_received, unit_cost, discount_pct, tax_rate, tax_amount, line_total, inventory_account_id`

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanReceipt(row pgx.Row) (PurchaseReceipt, error) {
	var rec PurchaseReceipt
	err := row.Scan(&rec.ID, &rec.OrgID, &rec.Number, &rec.PurchaseOrderID, &rec.VendorID, &rec.Date, &rec.Status,
		&rec.JournalEntryID, &rec.CreatedBy, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

func loadItems(ctx context.Context, q queryer, receiptID int64) ([]PurchaseItem, error) {
	rows, err := q.Query(ctx, `SELECT `+itemColumns+` FROM purchase_items WHERE receipt_id=$1 ORDER BY line_no ASC`, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PurchaseItem
	for rows.Next() {
		var item PurchaseItem
		if err := rows.Scan(&item.ID, &item.ReceiptID, &item.LineNo, &item.VariantID, &item.QtyOrdered, &item.QtyReceived,
			&item.UnitCost, &item.DiscountPct, &item.TaxRate, &item.TaxAmount, &item.LineTotal, &item.InventoryAccountID); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func getReceipt(ctx context.Context, q queryer, orgID, receiptID int64, forUpdate bool) (PurchaseReceipt, error) {
	sql := `SELECT ` + receiptColumns + ` FROM purchase_receipts WHERE org_id=$1 AND id=$2`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	receipt, err := scanReceipt(q.QueryRow(ctx, sql, orgID, receiptID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseReceipt{}, ErrReceiptNotFound
		}
		return PurchaseReceipt{}, err
	}
	items, err := loadItems(ctx, q, receiptID)
	if err != nil {
		return PurchaseReceipt{}, err
	}
	receipt.Items = items
	return receipt, nil
}

func (r *repository) GetReceipt(ctx context.Context, orgID, receiptID int64) (PurchaseReceipt, error) {
	return getReceipt(ctx, r.db, orgID, receiptID, false)
}

func (r *repository) ListReceipts(ctx context.Context, orgID int64) ([]PurchaseReceipt, error) {
	rows, err := r.db.Query(ctx, `SELECT `+receiptColumns+` FROM purchase_receipts WHERE org_id=$1 ORDER BY id DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var receipts []PurchaseReceipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetReceiptForUpdate(ctx context.Context, orgID, receiptID int64) (PurchaseReceipt, error) {
	return getReceipt(ctx, r.tx, orgID, receiptID, true)
}

func (r *txRepository) InsertReceipt(ctx context.Context, receipt PurchaseReceipt) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_receipts (org_id, number, purchase_order_id, vendor_id, date, status, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		receipt.OrgID, receipt.Number, receipt.PurchaseOrderID, receipt.VendorID, receipt.Date, receipt.Status, receipt.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepository) InsertItem(ctx context.Context, item PurchaseItem) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_items (receipt_id, line_no, variant_id, qty_ordered, qty_received, unit_cost, discount_pct, tax_rate, tax_amount, line_total, inventory_account_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0,0,$9) RETURNING id`,
		item.ReceiptID, item.LineNo, item.VariantID, item.QtyOrdered, item.QtyReceived, item.UnitCost, item.DiscountPct, item.TaxRate, item.InventoryAccountID).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateItemComputed(ctx context.Context, itemID int64, taxAmount, lineTotal decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_items SET tax_amount=$2, line_total=$3 WHERE id=$1`, itemID, taxAmount, lineTotal)
	return err
}

func (r *txRepository) UpdateReceiptStatus(ctx context.Context, receiptID int64, status ReceiptStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE purchase_receipts SET status=$2, updated_at=NOW() WHERE id=$1`, receiptID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrReceiptNotFound
	}
	return nil
}

func (r *txRepository) SetReceiptPosted(ctx context.Context, receiptID int64, number string, entryID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE purchase_receipts SET status=$2, number=$3, journal_entry_id=$4, updated_at=NOW() WHERE id=$1`,
		receiptID, StatusPosted, number, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrReceiptNotFound
	}
	return nil
}

func (r *txRepository) Ledger() ledger.TxPort {
	return ledger.NewTxRepository(r.tx)
}

func (r *txRepository) Numbers() numbering.LinePort {
	return numbering.NewTxRepository(r.tx)
}

func (r *txRepository) Layers() inventory.LayerPort {
	return inventory.NewTxLayerPort(r.tx)
}

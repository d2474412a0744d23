package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

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

const invoiceColumns = `id, org_id, number, receipt_id, vendor_id, invoice_date, due_date, subtotal, tax, total, amount_paid, discount_days, discount_pct, status, created_at, updated_at`
const paymentColumns = `id, org_id, number, vendor_id, date, method, bank_account_id, vendor_bank_account_id, amount, currency, exchange_rate, status, journal_entry_id, reversal_entry_id, void_reason, created_by, created_at, updated_at`

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanInvoice(row pgx.Row) (VendorInvoice, error) {
	var inv VendorInvoice
	err := row.Scan(&inv.ID, &inv.OrgID, &inv.Number, &inv.ReceiptID, &inv.VendorID, &inv.InvoiceDate, &inv.DueDate,
		&inv.Subtotal, &inv.Tax, &inv.Total, &inv.AmountPaid, &inv.DiscountDays, &inv.DiscountPct, &inv.Status,
		&inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrgID, &p.Number, &p.VendorID, &p.Date, &p.Method, &p.BankAccountID, &p.VendorBankAccountID,
		&p.Amount, &p.Currency, &p.ExchangeRate, &p.Status, &p.JournalEntryID, &p.ReversalEntryID, &p.VoidReason,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func getInvoice(ctx context.Context, q queryer, orgID, invoiceID int64, forUpdate bool) (VendorInvoice, error) {
	sql := `SELECT ` + invoiceColumns + ` FROM vendor_invoices WHERE org_id=$1 AND id=$2`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	invoice, err := scanInvoice(q.QueryRow(ctx, sql, orgID, invoiceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VendorInvoice{}, ErrInvoiceNotFound
		}
		return VendorInvoice{}, err
	}
	return invoice, nil
}

func loadApplications(ctx context.Context, q queryer, paymentID int64) ([]PaymentApplication, error) {
	rows, err := q.Query(ctx, `SELECT id, payment_id, vendor_invoice_id, amount_applied, discount_taken, applied_at
FROM payment_applications WHERE payment_id=$1 ORDER BY id ASC`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var apps []PaymentApplication
	for rows.Next() {
		var app PaymentApplication
		if err := rows.Scan(&app.ID, &app.PaymentID, &app.InvoiceID, &app.AmountApplied, &app.DiscountTaken, &app.AppliedAt); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func getPayment(ctx context.Context, q queryer, orgID, paymentID int64, forUpdate bool) (Payment, error) {
	sql := `SELECT ` + paymentColumns + ` FROM payments WHERE org_id=$1 AND id=$2`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	payment, err := scanPayment(q.QueryRow(ctx, sql, orgID, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, err
	}
	apps, err := loadApplications(ctx, q, paymentID)
	if err != nil {
		return Payment{}, err
	}
	payment.Applications = apps
	return payment, nil
}

func (r *repository) GetPayment(ctx context.Context, orgID, paymentID int64) (Payment, error) {
	return getPayment(ctx, r.db, orgID, paymentID, false)
}

func (r *repository) ListPayments(ctx context.Context, orgID int64) ([]Payment, error) {
	rows, err := r.db.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE org_id=$1 ORDER BY id DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func (r *repository) GetInvoice(ctx context.Context, orgID, invoiceID int64) (VendorInvoice, error) {
	return getInvoice(ctx, r.db, orgID, invoiceID, false)
}

func (r *repository) ListOpenInvoices(ctx context.Context, orgID, vendorID int64) ([]VendorInvoice, error) {
	rows, err := r.db.Query(ctx, `SELECT `+invoiceColumns+` FROM vendor_invoices
WHERE org_id=$1 AND vendor_id=$2 AND status NOT IN ('CANCELLED') AND amount_paid < total
ORDER BY due_date ASC, id ASC`, orgID, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []VendorInvoice
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetInvoiceForUpdate(ctx context.Context, orgID, invoiceID int64) (VendorInvoice, error) {
	return getInvoice(ctx, r.tx, orgID, invoiceID, true)
}

func (r *txRepository) InsertInvoice(ctx context.Context, invoice VendorInvoice) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO vendor_invoices (org_id, number, receipt_id, vendor_id, invoice_date, due_date, subtotal, tax, total, amount_paid, discount_days, discount_pct, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id`,
		invoice.OrgID, invoice.Number, invoice.ReceiptID, invoice.VendorID, invoice.InvoiceDate, invoice.DueDate,
		invoice.Subtotal, invoice.Tax, invoice.Total, invoice.AmountPaid, invoice.DiscountDays, invoice.DiscountPct, invoice.Status).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateInvoiceSettlement(ctx context.Context, invoiceID int64, amountPaid decimal.Decimal, status InvoiceStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE vendor_invoices SET amount_paid=$2, status=$3, updated_at=NOW() WHERE id=$1`,
		invoiceID, amountPaid, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

func (r *txRepository) GetBankAccountForUpdate(ctx context.Context, orgID, bankAccountID int64) (CompanyBankAccount, error) {
	var bank CompanyBankAccount
	err := r.tx.QueryRow(ctx, `SELECT id, org_id, gl_account_id, name, current_balance, is_active, updated_at
FROM company_bank_accounts WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, bankAccountID).
		Scan(&bank.ID, &bank.OrgID, &bank.GLAccountID, &bank.Name, &bank.CurrentBalance, &bank.IsActive, &bank.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CompanyBankAccount{}, ErrBankAccountNotFound
		}
		return CompanyBankAccount{}, err
	}
	return bank, nil
}

func (r *txRepository) UpdateBankBalance(ctx context.Context, bankAccountID int64, balance decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE company_bank_accounts SET current_balance=$2, updated_at=NOW() WHERE id=$1`,
		bankAccountID, balance)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBankAccountNotFound
	}
	return nil
}

func (r *txRepository) GetPaymentForUpdate(ctx context.Context, orgID, paymentID int64) (Payment, error) {
	return getPayment(ctx, r.tx, orgID, paymentID, true)
}

func (r *txRepository) InsertPayment(ctx context.Context, payment Payment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO payments (org_id, number, vendor_id, date, method, bank_account_id, vendor_bank_account_id, amount, currency, exchange_rate, status, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		payment.OrgID, payment.Number, payment.VendorID, payment.Date, payment.Method, payment.BankAccountID,
		payment.VendorBankAccountID, payment.Amount, payment.Currency, payment.ExchangeRate, payment.Status, payment.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepository) InsertApplication(ctx context.Context, app PaymentApplication) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO payment_applications (payment_id, vendor_invoice_id, amount_applied, discount_taken, applied_at)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		app.PaymentID, app.InvoiceID, app.AmountApplied, app.DiscountTaken, app.AppliedAt).Scan(&id)
	return id, err
}

func (r *txRepository) SetPaymentPosted(ctx context.Context, paymentID int64, number string, entryID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE payments SET status=$2, number=$3, journal_entry_id=$4, updated_at=NOW() WHERE id=$1`,
		paymentID, PaymentStatusPosted, number, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *txRepository) SetPaymentVoided(ctx context.Context, paymentID int64, reason string, reversalEntryID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE payments SET status=$2, void_reason=$3, reversal_entry_id=$4, updated_at=NOW() WHERE id=$1`,
		paymentID, PaymentStatusVoided, reason, reversalEntryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *txRepository) Ledger() ledger.TxRepository {
	return ledger.NewTxRepository(r.tx)
}

func (r *txRepository) Numbers() numbering.LinePort {
	return numbering.NewTxRepository(r.tx)
}

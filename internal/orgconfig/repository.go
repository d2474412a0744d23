package orgconfig

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists per-organisation account configuration.
type Repository interface {
	Get(ctx context.Context, orgID int64) (Configuration, error)
	Upsert(ctx context.Context, cfg Configuration) (Configuration, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const configColumns = `org_id, inventory_account_id, ap_account_id, ar_account_id, sales_revenue_account_id,
cogs_account_id, tax_payable_account_id, tax_receivable_account_id, cash_account_id, bank_account_id,
purchase_discount_account_id, updated_at`

func scanConfig(row pgx.Row) (Configuration, error) {
	var c Configuration
	err := row.Scan(&c.OrgID, &c.InventoryAccountID, &c.AccountsPayableAccountID, &c.AccountsReceivableAcctID,
		&c.SalesRevenueAccountID, &c.COGSAccountID, &c.TaxPayableAccountID, &c.TaxReceivableAccountID,
		&c.CashAccountID, &c.BankAccountID, &c.PurchaseDiscountAccountID, &c.UpdatedAt)
	return c, err
}

func (r *repository) Get(ctx context.Context, orgID int64) (Configuration, error) {
	row := r.db.QueryRow(ctx, `SELECT `+configColumns+` FROM account_configurations WHERE org_id=$1`, orgID)
	cfg, err := scanConfig(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Configuration{}, ErrConfigNotFound
		}
		return Configuration{}, err
	}
	return cfg, nil
}

func (r *repository) Upsert(ctx context.Context, cfg Configuration) (Configuration, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO account_configurations (org_id, inventory_account_id, ap_account_id,
ar_account_id, sales_revenue_account_id, cogs_account_id, tax_payable_account_id, tax_receivable_account_id,
cash_account_id, bank_account_id, purchase_discount_account_id, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW())
ON CONFLICT (org_id) DO UPDATE SET
  inventory_account_id=EXCLUDED.inventory_account_id,
  ap_account_id=EXCLUDED.ap_account_id,
  ar_account_id=EXCLUDED.ar_account_id,
  sales_revenue_account_id=EXCLUDED.sales_revenue_account_id,
  cogs_account_id=EXCLUDED.cogs_account_id,
  tax_payable_account_id=EXCLUDED.tax_payable_account_id,
  tax_receivable_account_id=EXCLUDED.tax_receivable_account_id,
  cash_account_id=EXCLUDED.cash_account_id,
  bank_account_id=EXCLUDED.bank_account_id,
  purchase_discount_account_id=EXCLUDED.purchase_discount_account_id,
  updated_at=NOW()
RETURNING `+configColumns,
		cfg.OrgID, cfg.InventoryAccountID, cfg.AccountsPayableAccountID, cfg.AccountsReceivableAcctID,
		cfg.SalesRevenueAccountID, cfg.COGSAccountID, cfg.TaxPayableAccountID, cfg.TaxReceivableAccountID,
		cfg.CashAccountID, cfg.BankAccountID, cfg.PurchaseDiscountAccountID)
	return scanConfig(row)
}

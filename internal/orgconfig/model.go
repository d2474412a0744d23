package orgconfig

import (
	"time"

	"github.com/meridian-erp/meridian-erp/internal/coa"
)

// Configuration maps business roles to concrete ledger accounts for one
// organisation. Slots are nullable; an engine that needs an unset slot fails
// its precondition instead of guessing.
type Configuration struct {
	OrgID                     int64
	InventoryAccountID        *int64
	AccountsPayableAccountID  *int64
	AccountsReceivableAcctID  *int64
	SalesRevenueAccountID     *int64
	COGSAccountID             *int64
	TaxPayableAccountID       *int64
	TaxReceivableAccountID    *int64
	CashAccountID             *int64
	BankAccountID             *int64
	PurchaseDiscountAccountID *int64
	UpdatedAt                 time.Time
}

// slotClass returns the account class each slot must carry.
func slotClass(role coa.SystemRole) (coa.AccountClass, bool) {
	switch role {
	case coa.RoleInventory, coa.RoleAccountsReceivable, coa.RoleTaxReceivable, coa.RoleCash, coa.RoleBank:
		return coa.ClassAsset, true
	case coa.RoleAccountsPayable, coa.RoleTaxPayable:
		return coa.ClassLiability, true
	case coa.RoleSalesRevenue, coa.RolePurchaseDiscount:
		return coa.ClassRevenue, true
	case coa.RoleCOGS:
		return coa.ClassExpense, true
	}
	return "", false
}

// Slot returns the configured account id for a role, nil when unset.
func (c Configuration) Slot(role coa.SystemRole) *int64 {
	switch role {
	case coa.RoleInventory:
		return c.InventoryAccountID
	case coa.RoleAccountsPayable:
		return c.AccountsPayableAccountID
	case coa.RoleAccountsReceivable:
		return c.AccountsReceivableAcctID
	case coa.RoleSalesRevenue:
		return c.SalesRevenueAccountID
	case coa.RoleCOGS:
		return c.COGSAccountID
	case coa.RoleTaxPayable:
		return c.TaxPayableAccountID
	case coa.RoleTaxReceivable:
		return c.TaxReceivableAccountID
	case coa.RoleCash:
		return c.CashAccountID
	case coa.RoleBank:
		return c.BankAccountID
	case coa.RolePurchaseDiscount:
		return c.PurchaseDiscountAccountID
	}
	return nil
}

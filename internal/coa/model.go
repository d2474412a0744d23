package coa

import "time"

// AccountClass enumerates CoA categories.
type AccountClass string

const (
	ClassAsset     AccountClass = "ASSET"
	ClassLiability AccountClass = "LIABILITY"
	ClassEquity    AccountClass = "EQUITY"
	ClassRevenue   AccountClass = "REVENUE"
	ClassExpense   AccountClass = "EXPENSE"
)

// SystemRole tags accounts that engines resolve by business role rather than
// by code.
type SystemRole string

const (
	RoleInventory          SystemRole = "INVENTORY"
	RoleAccountsPayable    SystemRole = "ACCOUNTS_PAYABLE"
	RoleAccountsReceivable SystemRole = "ACCOUNTS_RECEIVABLE"
	RoleSalesRevenue       SystemRole = "SALES_REVENUE"
	RoleCOGS               SystemRole = "COGS"
	RoleTaxPayable         SystemRole = "TAX_PAYABLE"
	RoleTaxReceivable      SystemRole = "TAX_RECEIVABLE"
	RoleCash               SystemRole = "CASH"
	RoleBank               SystemRole = "BANK"
	RolePurchaseDiscount   SystemRole = "PURCHASE_DISCOUNT"
)

// Account models a chart of accounts node. Class is immutable once posted
// entries reference the account; that rule lives in the service, not storage.
type Account struct {
	ID         int64
	OrgID      int64
	Code       string
	Name       string
	Class      AccountClass
	SystemRole *SystemRole
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ValidClass reports whether the class is a known category.
func ValidClass(class AccountClass) bool {
	switch class {
	case ClassAsset, ClassLiability, ClassEquity, ClassRevenue, ClassExpense:
		return true
	}
	return false
}

package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// StockCostLayer is one received quantity at one unit cost. Layers are
// consumed oldest-first by outbound movements; consumption is owned by the
// sales/adjustment side, receiving only creates layers.
type StockCostLayer struct {
	ID        int64
	OrgID     int64
	VariantID int64
	ReceiptID int64
	LineNo    int
	Quantity  decimal.Decimal
	Remaining decimal.Decimal
	UnitCost  decimal.Decimal
	CreatedAt time.Time
}

// LayerInput describes a layer to create for a received line.
type LayerInput struct {
	OrgID     int64
	VariantID int64
	ReceiptID int64
	LineNo    int
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
}

// Validate guards the layer invariants before anything is written.
func (in LayerInput) Validate() error {
	if !in.Quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if in.UnitCost.IsNegative() {
		return ErrInvalidUnitCost
	}
	return nil
}

// MovementSink receives notice of each received line after its cost layer is
// created. The inventory reporting subsystem owns the implementation.
type MovementSink interface {
	RegisterPurchase(ctx context.Context, orgID, variantID int64, quantity, unitCost decimal.Decimal, receiptID int64) error
}

var (
	// ErrInvalidQuantity indicates a non-positive received quantity.
	ErrInvalidQuantity = shared.NewError(shared.KindValidation, "stock_cost_layer", "quantity", "quantity must be positive")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = shared.NewError(shared.KindValidation, "stock_cost_layer", "unit_cost", "unit cost must be >= 0")
)

package inventory

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestLayerInputValidate(t *testing.T) {
	in := LayerInput{
		OrgID:     1,
		VariantID: 7,
		ReceiptID: 3,
		LineNo:    1,
		Quantity:  decimal.NewFromInt(10),
		UnitCost:  decimal.RequireFromString("5.00"),
	}
	require.NoError(t, in.Validate())

	in.Quantity = decimal.Zero
	require.ErrorIs(t, in.Validate(), ErrInvalidQuantity)

	in.Quantity = decimal.NewFromInt(-1)
	require.ErrorIs(t, in.Validate(), ErrInvalidQuantity)

	in.Quantity = decimal.NewFromInt(10)
	in.UnitCost = decimal.RequireFromString("-0.01")
	require.ErrorIs(t, in.Validate(), ErrInvalidUnitCost)

	// Free stock is fine.
	in.UnitCost = decimal.Zero
	require.NoError(t, in.Validate())
}

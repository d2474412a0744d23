package inventory

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LayerPort is the transactional slice used by the receiving engine: layers
// must commit atomically with the receipt that produced them.
type LayerPort interface {
	InsertLayer(ctx context.Context, in LayerInput) (StockCostLayer, error)
}

// Repository adds the read side used by reports and the FIFO consumer.
type Repository interface {
	LayerPort
	ListOpenLayers(ctx context.Context, orgID, variantID int64) ([]StockCostLayer, error)
	LayersForReceipt(ctx context.Context, orgID, receiptID int64) ([]StockCostLayer, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// NewTxLayerPort wraps an open transaction for layer creation inside the
// receiving engine's unit of work.
func NewTxLayerPort(tx pgx.Tx) LayerPort {
	return &txLayerPort{tx: tx}
}

type txLayerPort struct {
	tx pgx.Tx
}

const layerColumns = `id, org_id, variant_id, receipt_id, line_no, quantity, remaining, unit_cost, created_at`

func scanLayer(row pgx.Row) (StockCostLayer, error) {
	var l StockCostLayer
	err := row.Scan(&l.ID, &l.OrgID, &l.VariantID, &l.ReceiptID, &l.LineNo, &l.Quantity, &l.Remaining, &l.UnitCost, &l.CreatedAt)
	return l, err
}

type rowQueryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertLayer(ctx context.Context, q rowQueryer, in LayerInput) (StockCostLayer, error) {
	if err := in.Validate(); err != nil {
		return StockCostLayer{}, err
	}
	row := q.QueryRow(ctx, `INSERT INTO stock_cost_layers (org_id, variant_id, receipt_id, line_no, quantity, remaining, unit_cost)
VALUES ($1,$2,$3,$4,$5,$5,$6) RETURNING `+layerColumns,
		in.OrgID, in.VariantID, in.ReceiptID, in.LineNo, in.Quantity, in.UnitCost)
	return scanLayer(row)
}

func (p *txLayerPort) InsertLayer(ctx context.Context, in LayerInput) (StockCostLayer, error) {
	return insertLayer(ctx, p.tx, in)
}

func (r *repository) InsertLayer(ctx context.Context, in LayerInput) (StockCostLayer, error) {
	return insertLayer(ctx, r.db, in)
}

// ListOpenLayers returns unconsumed layers in FIFO order: creation time
// first, line number as the tie break.
func (r *repository) ListOpenLayers(ctx context.Context, orgID, variantID int64) ([]StockCostLayer, error) {
	rows, err := r.db.Query(ctx, `SELECT `+layerColumns+` FROM stock_cost_layers
WHERE org_id=$1 AND variant_id=$2 AND remaining > 0 ORDER BY created_at ASC, line_no ASC`, orgID, variantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var layers []StockCostLayer
	for rows.Next() {
		layer, err := scanLayer(rows)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}
	return layers, rows.Err()
}

func (r *repository) LayersForReceipt(ctx context.Context, orgID, receiptID int64) ([]StockCostLayer, error) {
	rows, err := r.db.Query(ctx, `SELECT `+layerColumns+` FROM stock_cost_layers
WHERE org_id=$1 AND receipt_id=$2 ORDER BY line_no ASC`, orgID, receiptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var layers []StockCostLayer
	for rows.Next() {
		layer, err := scanLayer(rows)
		if err != nil {
			return nil, err
		}
		layers = append(layers, layer)
	}
	return layers, rows.Err()
}

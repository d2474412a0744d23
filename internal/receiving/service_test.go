package receiving

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/coa"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/numbering"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// memStore backs every port of the posting transaction in memory, so a test
// observes the receipt, the journal entry, the number bump and the cost
// layers exactly as one unit of work would leave them.
type memStore struct {
	receipts      map[int64]*PurchaseReceipt
	nextReceiptID int64
	nextItemID    int64

	layers []inventory.StockCostLayer

	entries     []ledger.JournalEntry
	nextEntryID int64
	accounts    map[int64]bool

	series numbering.NoSerie
	line   numbering.NoSerieLine
}

func newMemStore() *memStore {
	return &memStore{
		receipts: make(map[int64]*PurchaseReceipt),
		accounts: map[int64]bool{100: true, 200: true, 300: true},
		series:   numbering.NoSerie{ID: 1, OrgID: 1, Code: "PREC", DocumentType: numbering.DocTypePurchaseReceipt, DefaultNos: true},
		line: numbering.NoSerieLine{ID: 10, SeriesID: 1,
			StartingDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			StartingNo:   "PR-00001", EndingNo: "PR-99999", IncrementBy: 1, Open: true},
	}
}

func (m *memStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memStore) GetReceipt(_ context.Context, orgID, receiptID int64) (PurchaseReceipt, error) {
	receipt, ok := m.receipts[receiptID]
	if !ok || receipt.OrgID != orgID {
		return PurchaseReceipt{}, ErrReceiptNotFound
	}
	return *receipt, nil
}

func (m *memStore) ListReceipts(_ context.Context, orgID int64) ([]PurchaseReceipt, error) {
	var out []PurchaseReceipt
	for _, r := range m.receipts {
		if r.OrgID == orgID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) GetReceiptForUpdate(ctx context.Context, orgID, receiptID int64) (PurchaseReceipt, error) {
	return m.GetReceipt(ctx, orgID, receiptID)
}

func (m *memStore) InsertReceipt(_ context.Context, receipt PurchaseReceipt) (int64, error) {
	m.nextReceiptID++
	receipt.ID = m.nextReceiptID
	m.receipts[receipt.ID] = &receipt
	return receipt.ID, nil
}

func (m *memStore) InsertItem(_ context.Context, item PurchaseItem) (int64, error) {
	m.nextItemID++
	item.ID = m.nextItemID
	receipt := m.receipts[item.ReceiptID]
	receipt.Items = append(receipt.Items, item)
	return item.ID, nil
}

func (m *memStore) UpdateItemComputed(_ context.Context, itemID int64, taxAmount, lineTotal decimal.Decimal) error {
	for _, receipt := range m.receipts {
		for i := range receipt.Items {
			if receipt.Items[i].ID == itemID {
				receipt.Items[i].TaxAmount = taxAmount
				receipt.Items[i].LineTotal = lineTotal
				return nil
			}
		}
	}
	return ErrReceiptNotFound
}

func (m *memStore) UpdateReceiptStatus(_ context.Context, receiptID int64, status ReceiptStatus) error {
	receipt, ok := m.receipts[receiptID]
	if !ok {
		return ErrReceiptNotFound
	}
	receipt.Status = status
	return nil
}

func (m *memStore) SetReceiptPosted(_ context.Context, receiptID int64, number string, entryID int64) error {
	receipt, ok := m.receipts[receiptID]
	if !ok {
		return ErrReceiptNotFound
	}
	receipt.Status = StatusPosted
	receipt.Number = number
	receipt.JournalEntryID = &entryID
	return nil
}

func (m *memStore) Ledger() ledger.TxPort       { return (*memLedger)(m) }
func (m *memStore) Numbers() numbering.LinePort { return (*memNumbers)(m) }
func (m *memStore) Layers() inventory.LayerPort { return (*memLayers)(m) }

type memLedger memStore

func (m *memLedger) ActiveAccountIDs(_ context.Context, _ int64, ids []int64) (map[int64]bool, error) {
	active := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if m.accounts[id] {
			active[id] = true
		}
	}
	return active, nil
}

func (m *memLedger) InsertEntry(_ context.Context, in ledger.PostingInput) (ledger.JournalEntry, error) {
	m.nextEntryID++
	entry := ledger.JournalEntry{
		ID: m.nextEntryID, OrgID: in.OrgID, Number: m.nextEntryID,
		Date: in.Date, Description: in.Description, Reference: in.Reference,
		ReversalOf: in.ReversalOf, PostedBy: in.PostedBy,
	}
	m.entries = append(m.entries, entry)
	return entry, nil
}

func (m *memLedger) InsertLines(_ context.Context, entryID int64, lines []ledger.PostingLineInput) ([]ledger.JournalLine, error) {
	out := make([]ledger.JournalLine, 0, len(lines))
	for idx, line := range lines {
		out = append(out, ledger.JournalLine{
			EntryID: entryID, LineNo: idx + 1, AccountID: line.AccountID,
			Debit: line.Debit, Credit: line.Credit, VendorID: line.VendorID,
		})
	}
	for i := range m.entries {
		if m.entries[i].ID == entryID {
			m.entries[i].Lines = out
		}
	}
	return out, nil
}

type memNumbers memStore

func (m *memNumbers) FindSeriesByCode(_ context.Context, orgID int64, code string) (numbering.NoSerie, error) {
	if m.series.OrgID == orgID && m.series.Code == code {
		return m.series, nil
	}
	return numbering.NoSerie{}, numbering.ErrSeriesNotFound
}

func (m *memNumbers) FindDefaultSeries(_ context.Context, orgID int64, docType numbering.DocumentType) (numbering.NoSerie, error) {
	if m.series.OrgID == orgID && m.series.DocumentType == docType && m.series.DefaultNos {
		return m.series, nil
	}
	return numbering.NoSerie{}, numbering.ErrNoDefaultSeries
}

func (m *memNumbers) OpenLineForDate(_ context.Context, seriesID int64, asOf time.Time) (numbering.NoSerieLine, error) {
	if m.line.SeriesID == seriesID && m.line.Open && !m.line.StartingDate.After(asOf) {
		return m.line, nil
	}
	return numbering.NoSerieLine{}, numbering.ErrNoOpenLine
}

func (m *memNumbers) CompareAndBumpLine(_ context.Context, lineID int64, expected, next string, usedAt time.Time) (bool, error) {
	if m.line.ID != lineID || m.line.LastNoUsed != expected {
		return false, nil
	}
	m.line.LastNoUsed = next
	used := usedAt
	m.line.LastDateUsed = &used
	return true, nil
}

type memLayers memStore

func (m *memLayers) InsertLayer(_ context.Context, in inventory.LayerInput) (inventory.StockCostLayer, error) {
	layer := inventory.StockCostLayer{
		ID: int64(len(m.layers) + 1), OrgID: in.OrgID, VariantID: in.VariantID,
		ReceiptID: in.ReceiptID, LineNo: in.LineNo,
		Quantity: in.Quantity, Remaining: in.Quantity, UnitCost: in.UnitCost,
	}
	m.layers = append(m.layers, layer)
	return layer, nil
}

type memConfig map[coa.SystemRole]int64

func (c memConfig) RequireSlot(_ context.Context, _ int64, role coa.SystemRole) (int64, error) {
	id, ok := c[role]
	if !ok {
		return 0, coa.ErrAccountNotFound
	}
	return id, nil
}

type recordedMovement struct {
	variantID int64
	quantity  decimal.Decimal
	unitCost  decimal.Decimal
}

type memSink struct {
	movements []recordedMovement
}

func (s *memSink) RegisterPurchase(_ context.Context, _ int64, variantID int64, quantity, unitCost decimal.Decimal, _ int64) error {
	s.movements = append(s.movements, recordedMovement{variantID: variantID, quantity: quantity, unitCost: unitCost})
	return nil
}

func testConfig() memConfig {
	return memConfig{
		coa.RoleInventory:       100,
		coa.RoleTaxReceivable:   200,
		coa.RoleAccountsPayable: 300,
	}
}

func createDraft(t *testing.T, svc *Service, items ...ItemInput) PurchaseReceipt {
	t.Helper()
	receipt, err := svc.CreateReceipt(context.Background(), CreateReceiptInput{
		OrgID:    1,
		VendorID: 42,
		Date:     time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
		Items:    items,
	})
	require.NoError(t, err)
	return receipt
}

func TestReceivePurchasePostsBalancedEntry(t *testing.T) {
	store := newMemStore()
	sink := &memSink{}
	svc := NewService(store, testConfig(), sink, nil)

	receipt := createDraft(t, svc, ItemInput{
		VariantID:   7,
		QtyReceived: dec("10"),
		UnitCost:    dec("5.00"),
		TaxRate:     dec("16"),
	})

	posted, err := svc.ReceivePurchase(context.Background(), ReceiveInput{OrgID: 1, UserID: 9, ReceiptID: receipt.ID})
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)
	require.Equal(t, "PR-00001", posted.Number)
	require.NotNil(t, posted.JournalEntryID)

	// Line totals recomputed server-side.
	require.Equal(t, "8.00", posted.Items[0].TaxAmount.StringFixed(2))
	require.Equal(t, "58.00", posted.Items[0].LineTotal.StringFixed(2))

	// One FIFO layer, remaining = quantity.
	require.Len(t, store.layers, 1)
	layer := store.layers[0]
	require.True(t, layer.Quantity.Equal(dec("10")))
	require.True(t, layer.Remaining.Equal(dec("10")))
	require.True(t, layer.UnitCost.Equal(dec("5.00")))

	// Inventory 50.00 + Tax 8.00 debits against AP 58.00 credit.
	require.Len(t, store.entries, 1)
	lines := store.entries[0].Lines
	require.Len(t, lines, 3)
	require.Equal(t, int64(100), lines[0].AccountID)
	require.Equal(t, "50.00", lines[0].Debit.StringFixed(2))
	require.Equal(t, int64(200), lines[1].AccountID)
	require.Equal(t, "8.00", lines[1].Debit.StringFixed(2))
	require.Equal(t, int64(300), lines[2].AccountID)
	require.Equal(t, "58.00", lines[2].Credit.StringFixed(2))
	require.Equal(t, int64(42), *lines[2].VendorID)

	require.Len(t, sink.movements, 1)
	require.Equal(t, int64(7), sink.movements[0].variantID)
}

func TestReceivePurchaseAggregatesPerAccount(t *testing.T) {
	store := newMemStore()
	store.accounts[150] = true
	svc := NewService(store, testConfig(), nil, nil)

	override := int64(150)
	receipt := createDraft(t, svc,
		ItemInput{VariantID: 1, QtyReceived: dec("2"), UnitCost: dec("10.00")},
		ItemInput{VariantID: 2, QtyReceived: dec("1"), UnitCost: dec("30.00"), InventoryAccountID: &override},
		ItemInput{VariantID: 3, QtyReceived: dec("4"), UnitCost: dec("2.50")},
	)

	posted, err := svc.ReceivePurchase(context.Background(), ReceiveInput{OrgID: 1, UserID: 9, ReceiptID: receipt.ID})
	require.NoError(t, err)
	require.NotNil(t, posted.JournalEntryID)

	// Default-account lines collapse into one debit; the override keeps its
	// own line. No tax, so two debits and the AP credit.
	lines := store.entries[0].Lines
	require.Len(t, lines, 3)
	require.Equal(t, int64(100), lines[0].AccountID)
	require.Equal(t, "30.00", lines[0].Debit.StringFixed(2))
	require.Equal(t, int64(150), lines[1].AccountID)
	require.Equal(t, "30.00", lines[1].Debit.StringFixed(2))
	require.Equal(t, "60.00", lines[2].Credit.StringFixed(2))

	require.Len(t, store.layers, 3)
}

func TestReceivePurchaseIdempotence(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, testConfig(), nil, nil)

	receipt := createDraft(t, svc, ItemInput{VariantID: 7, QtyReceived: dec("1"), UnitCost: dec("9.99")})

	_, err := svc.ReceivePurchase(context.Background(), ReceiveInput{OrgID: 1, ReceiptID: receipt.ID})
	require.NoError(t, err)

	_, err = svc.ReceivePurchase(context.Background(), ReceiveInput{OrgID: 1, ReceiptID: receipt.ID})
	require.ErrorIs(t, err, ErrAlreadyPosted)

	require.Len(t, store.entries, 1)
	require.Len(t, store.layers, 1)
}

func TestReceivePurchaseRejectsCancelledReceipt(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, testConfig(), nil, nil)

	receipt := createDraft(t, svc, ItemInput{VariantID: 7, QtyReceived: dec("1"), UnitCost: dec("5.00")})
	require.NoError(t, svc.Cancel(context.Background(), 1, receipt.ID))

	_, err := svc.ReceivePurchase(context.Background(), ReceiveInput{OrgID: 1, ReceiptID: receipt.ID})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReceivePurchaseRejectsBadLine(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, testConfig(), nil, nil)

	_, err := svc.CreateReceipt(context.Background(), CreateReceiptInput{
		OrgID: 1, VendorID: 42,
		Items: []ItemInput{{VariantID: 7, QtyReceived: dec("-1"), UnitCost: dec("5.00")}},
	})
	require.Error(t, err)

	_, err = svc.CreateReceipt(context.Background(), CreateReceiptInput{
		OrgID: 1, VendorID: 42,
		Items: []ItemInput{{VariantID: 7, QtyReceived: dec("1"), UnitCost: dec("5.00"), DiscountPct: dec("101")}},
	})
	require.Error(t, err)
}

func TestReceiptStatusFlow(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, testConfig(), nil, nil)

	receipt := createDraft(t, svc, ItemInput{VariantID: 7, QtyReceived: dec("1"), UnitCost: dec("5.00")})

	require.NoError(t, svc.Submit(context.Background(), 1, receipt.ID))
	require.NoError(t, svc.MarkReceived(context.Background(), 1, receipt.ID))

	// Received receipts still post.
	posted, err := svc.ReceivePurchase(context.Background(), ReceiveInput{OrgID: 1, ReceiptID: receipt.ID})
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)

	// Posted is terminal.
	require.ErrorIs(t, svc.Cancel(context.Background(), 1, receipt.ID), ErrInvalidTransition)
}

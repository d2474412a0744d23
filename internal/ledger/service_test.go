package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// memRepository keeps entries in memory and satisfies both Repository and
// TxRepository. WithTx runs the callback directly; a failed callback leaves
// the snapshot untouched.
type memRepository struct {
	accounts map[int64]bool
	entries  []JournalEntry
	nextID   int64
}

func newMemRepository(activeAccounts ...int64) *memRepository {
	accounts := make(map[int64]bool, len(activeAccounts))
	for _, id := range activeAccounts {
		accounts[id] = true
	}
	return &memRepository{accounts: accounts}
}

func (r *memRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make([]JournalEntry, len(r.entries))
	copy(snapshot, r.entries)
	id := r.nextID
	if err := fn(ctx, r); err != nil {
		r.entries = snapshot
		r.nextID = id
		return err
	}
	return nil
}

func (r *memRepository) ActiveAccountIDs(_ context.Context, _ int64, ids []int64) (map[int64]bool, error) {
	active := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if r.accounts[id] {
			active[id] = true
		}
	}
	return active, nil
}

func (r *memRepository) InsertEntry(_ context.Context, in PostingInput) (JournalEntry, error) {
	r.nextID++
	entry := JournalEntry{
		ID:          r.nextID,
		OrgID:       in.OrgID,
		Number:      r.nextID,
		Date:        in.Date,
		Description: in.Description,
		Reference:   in.Reference,
		ReversalOf:  in.ReversalOf,
		PostedBy:    in.PostedBy,
		PostedAt:    time.Now(),
	}
	r.entries = append(r.entries, entry)
	return entry, nil
}

func (r *memRepository) InsertLines(_ context.Context, entryID int64, lines []PostingLineInput) ([]JournalLine, error) {
	out := make([]JournalLine, 0, len(lines))
	for idx, line := range lines {
		out = append(out, JournalLine{
			ID:        int64(idx + 1),
			EntryID:   entryID,
			LineNo:    idx + 1,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			VendorID:  line.VendorID,
		})
	}
	for i := range r.entries {
		if r.entries[i].ID == entryID {
			r.entries[i].Lines = out
		}
	}
	return out, nil
}

func (r *memRepository) GetEntryWithLines(_ context.Context, orgID, entryID int64) (JournalEntry, error) {
	for _, e := range r.entries {
		if e.OrgID == orgID && e.ID == entryID {
			return e, nil
		}
	}
	return JournalEntry{}, ErrEntryNotFound
}

func (r *memRepository) List(_ context.Context, orgID int64) ([]JournalEntry, error) {
	var out []JournalEntry
	for _, e := range r.entries {
		if e.OrgID == orgID {
			out = append(out, e)
		}
	}
	return out, nil
}

func balancedInput(accounts ...int64) PostingInput {
	if len(accounts) == 0 {
		accounts = []int64{1, 2}
	}
	return PostingInput{
		OrgID:       1,
		Date:        time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Description: "test entry",
		PostedBy:    7,
		Lines: []PostingLineInput{
			{AccountID: accounts[0], Debit: dec("58.00")},
			{AccountID: accounts[1], Credit: dec("58.00")},
		},
	}
}

func TestValidateRejectsUnbalanced(t *testing.T) {
	in := balancedInput()
	in.Lines[1].Credit = dec("58.01")
	require.ErrorIs(t, in.Validate(), ErrUnbalancedEntry)
}

func TestValidateRejectsDebitAndCredit(t *testing.T) {
	in := balancedInput()
	in.Lines[0].Credit = dec("1.00")
	require.ErrorIs(t, in.Validate(), ErrInvalidLine)
}

func TestValidateRejectsZeroLine(t *testing.T) {
	in := balancedInput()
	in.Lines[0].Debit = decimal.Zero
	require.ErrorIs(t, in.Validate(), ErrInvalidLine)
}

func TestValidateRejectsNegativeAmounts(t *testing.T) {
	in := balancedInput()
	in.Lines[0].Debit = dec("-58.00")
	require.ErrorIs(t, in.Validate(), ErrInvalidLine)
}

func TestValidateRejectsSingleLine(t *testing.T) {
	in := balancedInput()
	in.Lines = in.Lines[:1]
	require.ErrorIs(t, in.Validate(), ErrTooFewLines)
}

func TestValidateBalancesInCents(t *testing.T) {
	// 0.1+0.2 vs 0.3 balances at minor-unit precision.
	in := PostingInput{
		OrgID: 1,
		Date:  time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Lines: []PostingLineInput{
			{AccountID: 1, Debit: dec("0.1")},
			{AccountID: 2, Debit: dec("0.2")},
			{AccountID: 3, Credit: dec("0.3")},
		},
	}
	require.NoError(t, in.Validate())
}

func TestPostAssignsSequentialLineNumbers(t *testing.T) {
	repo := newMemRepository(1, 2)
	svc := NewService(repo, nil)

	entry, err := svc.Post(context.Background(), balancedInput())
	require.NoError(t, err)
	require.Len(t, entry.Lines, 2)
	require.Equal(t, 1, entry.Lines[0].LineNo)
	require.Equal(t, 2, entry.Lines[1].LineNo)
}

func TestPostRejectsInactiveAccount(t *testing.T) {
	repo := newMemRepository(1) // account 2 unknown
	svc := NewService(repo, nil)

	_, err := svc.Post(context.Background(), balancedInput())
	require.ErrorIs(t, err, ErrUnknownAccount)
	require.Empty(t, repo.entries)
}

func TestReversePostsEqualAndOpposite(t *testing.T) {
	repo := newMemRepository(1, 2)
	svc := NewService(repo, nil)
	svc.WithNow(func() time.Time { return time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC) })

	original, err := svc.Post(context.Background(), balancedInput())
	require.NoError(t, err)

	reversal, err := svc.Reverse(context.Background(), 1, original.ID, 7, "")
	require.NoError(t, err)
	require.NotNil(t, reversal.ReversalOf)
	require.Equal(t, original.ID, *reversal.ReversalOf)
	require.Len(t, reversal.Lines, 2)
	require.True(t, reversal.Lines[0].Credit.Equal(original.Lines[0].Debit))
	require.True(t, reversal.Lines[1].Debit.Equal(original.Lines[1].Credit))
}

func TestReverseUnknownEntry(t *testing.T) {
	repo := newMemRepository(1, 2)
	svc := NewService(repo, nil)

	_, err := svc.Reverse(context.Background(), 1, 999, 7, "")
	require.ErrorIs(t, err, ErrEntryNotFound)
}

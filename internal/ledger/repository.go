package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository encapsulates DB operations for the ledger.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetEntryWithLines(ctx context.Context, orgID, entryID int64) (JournalEntry, error)
	List(ctx context.Context, orgID int64) ([]JournalEntry, error)
}

// TxRepository exposes operations available within a transaction.
type TxRepository interface {
	TxPort
	GetEntryWithLines(ctx context.Context, orgID, entryID int64) (JournalEntry, error)
}

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

func (r *repository) GetEntryWithLines(ctx context.Context, orgID, entryID int64) (JournalEntry, error) {
	return getEntryWithLines(ctx, r.db, orgID, entryID)
}

func (r *repository) List(ctx context.Context, orgID int64) ([]JournalEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE org_id=$1 ORDER BY number DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// NewTxRepository wraps an open pgx transaction. The engines use this to post
// journal entries inside their own unit of work.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type txRepository struct {
	tx pgx.Tx
}

const entryColumns = `id, org_id, number, date, description, reference, reversal_of, posted_by, posted_at, created_at`

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	err := row.Scan(&e.ID, &e.OrgID, &e.Number, &e.Date, &e.Description, &e.Reference, &e.ReversalOf, &e.PostedBy, &e.PostedAt, &e.CreatedAt)
	return e, err
}

func getEntryWithLines(ctx context.Context, q queryer, orgID, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(q.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE org_id=$1 AND id=$2`, orgID, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, entry_id, line_no, account_id, debit, credit, description, vendor_id
FROM journal_lines WHERE entry_id=$1 ORDER BY line_no ASC`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.LineNo, &line.AccountID, &line.Debit, &line.Credit, &line.Description, &line.VendorID); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func (r *txRepository) ActiveAccountIDs(ctx context.Context, orgID int64, ids []int64) (map[int64]bool, error) {
	rows, err := r.tx.Query(ctx, `SELECT id FROM accounts WHERE org_id=$1 AND is_active AND id = ANY($2)`, orgID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	active := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		active[id] = true
	}
	return active, rows.Err()
}

func (r *txRepository) InsertEntry(ctx context.Context, in PostingInput) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (org_id, number, date, description, reference, reversal_of, posted_by)
VALUES ($1, (SELECT COALESCE(MAX(number),0)+1 FROM journal_entries WHERE org_id=$1), $2, $3, $4, $5, $6)
RETURNING id, number, posted_at, created_at`,
		in.OrgID, in.Date, in.Description, in.Reference, in.ReversalOf, in.PostedBy)
	entry := JournalEntry{
		OrgID:       in.OrgID,
		Date:        in.Date,
		Description: in.Description,
		Reference:   in.Reference,
		ReversalOf:  in.ReversalOf,
		PostedBy:    in.PostedBy,
	}
	if err := row.Scan(&entry.ID, &entry.Number, &entry.PostedAt, &entry.CreatedAt); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []PostingLineInput) ([]JournalLine, error) {
	out := make([]JournalLine, 0, len(lines))
	for idx, line := range lines {
		lineNo := idx + 1
		var id int64
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_lines (entry_id, line_no, account_id, debit, credit, description, vendor_id)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
			entryID, lineNo, line.AccountID, line.Debit, line.Credit, line.Description, line.VendorID).Scan(&id)
		if err != nil {
			return nil, err
		}
		out = append(out, JournalLine{
			ID:          id,
			EntryID:     entryID,
			LineNo:      lineNo,
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
			VendorID:    line.VendorID,
		})
	}
	return out, nil
}

func (r *txRepository) GetEntryWithLines(ctx context.Context, orgID, entryID int64) (JournalEntry, error) {
	return getEntryWithLines(ctx, r.tx, orgID, entryID)
}

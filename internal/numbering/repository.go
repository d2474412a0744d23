package numbering

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository encapsulates DB operations for numbering series.
type Repository interface {
	LinePort
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	InsertSeries(ctx context.Context, series NoSerie) (NoSerie, error)
	InsertLine(ctx context.Context, line NoSerieLine) (NoSerieLine, error)
	ListSeries(ctx context.Context, orgID int64) ([]NoSerie, error)
	ListLines(ctx context.Context, seriesID int64) ([]NoSerieLine, error)
	SetLineOpen(ctx context.Context, lineID int64, open bool) error
}

// TxRepository exposes allocator operations within a transaction.
type TxRepository interface {
	LinePort
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds the pgx-backed repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// WithTx runs fn in a ReadCommitted transaction. The allocator's retry loop
// must observe a concurrent committer's bump when it re-reads the line; a
// snapshot-isolated transaction would serve the same stale row on every
// attempt.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	wrapper := &txRepository{q: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// NewTxRepository wraps an open pgx transaction for allocation inside an
// engine's unit of work.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{q: tx}
}

type execQueryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepository struct {
	q execQueryer
}

const seriesColumns = `id, org_id, code, description, document_type, default_nos, manual_nos, date_order, created_at, updated_at`
const lineColumns = `id, series_id, starting_date, starting_no, ending_no, COALESCE(last_no_used,''), last_date_used, increment_by, open, created_at, updated_at`

func scanSeries(row pgx.Row) (NoSerie, error) {
	var s NoSerie
	err := row.Scan(&s.ID, &s.OrgID, &s.Code, &s.Description, &s.DocumentType, &s.DefaultNos, &s.ManualNos, &s.DateOrder, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func scanLine(row pgx.Row) (NoSerieLine, error) {
	var l NoSerieLine
	err := row.Scan(&l.ID, &l.SeriesID, &l.StartingDate, &l.StartingNo, &l.EndingNo, &l.LastNoUsed, &l.LastDateUsed, &l.IncrementBy, &l.Open, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func findSeriesByCode(ctx context.Context, q execQueryer, orgID int64, code string) (NoSerie, error) {
	series, err := scanSeries(q.QueryRow(ctx, `SELECT `+seriesColumns+` FROM no_series WHERE org_id=$1 AND code=$2`, orgID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NoSerie{}, ErrSeriesNotFound
		}
		return NoSerie{}, err
	}
	return series, nil
}

func findDefaultSeries(ctx context.Context, q execQueryer, orgID int64, docType DocumentType) (NoSerie, error) {
	series, err := scanSeries(q.QueryRow(ctx, `SELECT `+seriesColumns+` FROM no_series WHERE org_id=$1 AND document_type=$2 AND default_nos`, orgID, docType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NoSerie{}, ErrNoDefaultSeries
		}
		return NoSerie{}, err
	}
	return series, nil
}

func openLineForDate(ctx context.Context, q execQueryer, seriesID int64, asOf time.Time, lock bool) (NoSerieLine, error) {
	query := `SELECT ` + lineColumns + ` FROM no_serie_lines
WHERE series_id=$1 AND open AND starting_date<=$2 ORDER BY starting_date DESC LIMIT 1`
	if lock {
		query += ` FOR UPDATE`
	}
	line, err := scanLine(q.QueryRow(ctx, query, seriesID, asOf))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return NoSerieLine{}, ErrNoOpenLine
		}
		return NoSerieLine{}, err
	}
	return line, nil
}

func compareAndBumpLine(ctx context.Context, q execQueryer, lineID int64, expected, next string, usedAt time.Time) (bool, error) {
	cmd, err := q.Exec(ctx, `UPDATE no_serie_lines
SET last_no_used=$3, last_date_used=$4, updated_at=NOW()
WHERE id=$1 AND COALESCE(last_no_used,'')=$2 AND open`, lineID, expected, next, usedAt)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

// isSerializationFailure reports SQLSTATE 40001, raised when a concurrent
// transaction moved the line first.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func (r *txRepository) FindSeriesByCode(ctx context.Context, orgID int64, code string) (NoSerie, error) {
	return findSeriesByCode(ctx, r.q, orgID, code)
}

func (r *txRepository) FindDefaultSeries(ctx context.Context, orgID int64, docType DocumentType) (NoSerie, error) {
	return findDefaultSeries(ctx, r.q, orgID, docType)
}

// OpenLineForDate locks the line row so concurrent allocators serialize on it
// the way the engines serialize on invoice and bank rows. Losing the race to
// an already-committed writer surfaces as ErrAllocatorContention rather than
// a raw storage error.
func (r *txRepository) OpenLineForDate(ctx context.Context, seriesID int64, asOf time.Time) (NoSerieLine, error) {
	line, err := openLineForDate(ctx, r.q, seriesID, asOf, true)
	if isSerializationFailure(err) {
		return NoSerieLine{}, ErrAllocatorContention
	}
	return line, err
}

func (r *txRepository) CompareAndBumpLine(ctx context.Context, lineID int64, expected, next string, usedAt time.Time) (bool, error) {
	ok, err := compareAndBumpLine(ctx, r.q, lineID, expected, next, usedAt)
	if isSerializationFailure(err) {
		return false, ErrAllocatorContention
	}
	return ok, err
}

func (r *repository) FindSeriesByCode(ctx context.Context, orgID int64, code string) (NoSerie, error) {
	return findSeriesByCode(ctx, r.db, orgID, code)
}

func (r *repository) FindDefaultSeries(ctx context.Context, orgID int64, docType DocumentType) (NoSerie, error) {
	return findDefaultSeries(ctx, r.db, orgID, docType)
}

func (r *repository) OpenLineForDate(ctx context.Context, seriesID int64, asOf time.Time) (NoSerieLine, error) {
	return openLineForDate(ctx, r.db, seriesID, asOf, false)
}

func (r *repository) CompareAndBumpLine(ctx context.Context, lineID int64, expected, next string, usedAt time.Time) (bool, error) {
	return compareAndBumpLine(ctx, r.db, lineID, expected, next, usedAt)
}

func (r *repository) InsertSeries(ctx context.Context, series NoSerie) (NoSerie, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO no_series (org_id, code, description, document_type, default_nos, manual_nos, date_order)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING `+seriesColumns,
		series.OrgID, series.Code, series.Description, series.DocumentType, series.DefaultNos, series.ManualNos, series.DateOrder)
	created, err := scanSeries(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return NoSerie{}, shared.NewError(shared.KindValidation, "no_serie", "default_nos", "default series already exists for document type")
		}
		return NoSerie{}, err
	}
	return created, nil
}

func (r *repository) InsertLine(ctx context.Context, line NoSerieLine) (NoSerieLine, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO no_serie_lines (series_id, starting_date, starting_no, ending_no, increment_by, open)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+lineColumns,
		line.SeriesID, line.StartingDate, line.StartingNo, line.EndingNo, line.IncrementBy, line.Open)
	return scanLine(row)
}

func (r *repository) ListSeries(ctx context.Context, orgID int64) ([]NoSerie, error) {
	rows, err := r.db.Query(ctx, `SELECT `+seriesColumns+` FROM no_series WHERE org_id=$1 ORDER BY code ASC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []NoSerie
	for rows.Next() {
		series, err := scanSeries(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, series)
	}
	return out, rows.Err()
}

func (r *repository) ListLines(ctx context.Context, seriesID int64) ([]NoSerieLine, error) {
	rows, err := r.db.Query(ctx, `SELECT `+lineColumns+` FROM no_serie_lines WHERE series_id=$1 ORDER BY starting_date ASC`, seriesID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []NoSerieLine
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

func (r *repository) SetLineOpen(ctx context.Context, lineID int64, open bool) error {
	cmd, err := r.db.Exec(ctx, `UPDATE no_serie_lines SET open=$2, updated_at=NOW() WHERE id=$1`, lineID, open)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNoOpenLine
	}
	return nil
}

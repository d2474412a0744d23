package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IntegrityScanner verifies that every posted journal entry still balances.
// Entries are immutable, so any drift points at storage corruption or a
// posting-path bug and is worth waking someone up for.
type IntegrityScanner struct {
	db      *pgxpool.Pool
	logger  *slog.Logger
	metrics *Metrics
}

// NewIntegrityScanner constructs the scanner. metrics may be nil.
func NewIntegrityScanner(db *pgxpool.Pool, logger *slog.Logger, metrics *Metrics) *IntegrityScanner {
	return &IntegrityScanner{db: db, logger: logger, metrics: metrics}
}

// Handle processes TaskLedgerIntegrity tasks.
func (s *IntegrityScanner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	return s.Scan(ctx, payload.OrgID)
}

// Scan reports unbalanced entries. A zero orgID scans every organisation.
func (s *IntegrityScanner) Scan(ctx context.Context, orgID int64) error {
	tracker := s.metrics.Track("ledger_integrity")
	return tracker.End(s.scan(ctx, orgID))
}

func (s *IntegrityScanner) scan(ctx context.Context, orgID int64) error {
	sql := `SELECT e.org_id, e.id, e.number, SUM(l.debit) AS debits, SUM(l.credit) AS credits
FROM journal_entries e
JOIN journal_lines l ON l.entry_id = e.id
WHERE ($1 = 0 OR e.org_id = $1)
GROUP BY e.org_id, e.id, e.number
HAVING SUM(l.debit) <> SUM(l.credit)`
	rows, err := s.db.Query(ctx, sql, orgID)
	if err != nil {
		return err
	}
	defer rows.Close()
	found := 0
	for rows.Next() {
		var entryOrg, entryID, number int64
		var debits, credits string
		if err := rows.Scan(&entryOrg, &entryID, &number, &debits, &credits); err != nil {
			return err
		}
		found++
		s.logger.Error("unbalanced journal entry",
			slog.Int64("org_id", entryOrg),
			slog.Int64("entry_id", entryID),
			slog.Int64("number", number),
			slog.String("debits", debits),
			slog.String("credits", credits),
		)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	s.metrics.AddFindings("ledger_integrity", found)
	if found == 0 {
		s.logger.Info("ledger integrity scan clean", slog.Int64("org_id", orgID))
	}
	return nil
}

package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/numbering"
)

// seriesGapThreshold is the remaining-number count below which an open range
// is reported.
const seriesGapThreshold = 50

// SeriesGapScanner flags open number ranges that are close to exhaustion so
// operators can append a new range before allocation starts failing.
type SeriesGapScanner struct {
	db      *pgxpool.Pool
	logger  *slog.Logger
	metrics *Metrics
}

// NewSeriesGapScanner constructs the scanner. metrics may be nil.
func NewSeriesGapScanner(db *pgxpool.Pool, logger *slog.Logger, metrics *Metrics) *SeriesGapScanner {
	return &SeriesGapScanner{db: db, logger: logger, metrics: metrics}
}

// Handle processes TaskSeriesGapScan tasks.
func (s *SeriesGapScanner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	return s.Scan(ctx, payload.OrgID)
}

// Scan reports nearly exhausted ranges. A zero orgID scans every organisation.
func (s *SeriesGapScanner) Scan(ctx context.Context, orgID int64) error {
	tracker := s.metrics.Track("series_gap")
	return tracker.End(s.scan(ctx, orgID))
}

func (s *SeriesGapScanner) scan(ctx context.Context, orgID int64) error {
	sql := `SELECT ns.org_id, ns.code, l.id, l.starting_no, l.ending_no, COALESCE(l.last_no_used, '')
FROM no_serie_lines l
JOIN no_series ns ON ns.id = l.series_id
WHERE l.open AND l.ending_no <> '' AND ($1 = 0 OR ns.org_id = $1)`
	rows, err := s.db.Query(ctx, sql, orgID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var lineOrg, lineID int64
		var code, startingNo, endingNo, lastUsed string
		if err := rows.Scan(&lineOrg, &code, &lineID, &startingNo, &endingNo, &lastUsed); err != nil {
			return err
		}
		current := lastUsed
		if current == "" {
			current = startingNo
		}
		left, err := numbering.Remaining(current, endingNo)
		if err != nil {
			s.logger.Warn("series range with malformed numbers",
				slog.Int64("org_id", lineOrg),
				slog.String("series", code),
				slog.Int64("line_id", lineID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if left < seriesGapThreshold {
			s.metrics.AddFindings("series_gap", 1)
			s.logger.Warn("number series close to exhaustion",
				slog.Int64("org_id", lineOrg),
				slog.String("series", code),
				slog.Int64("line_id", lineID),
				slog.Int64("remaining", left),
			)
		}
	}
	return rows.Err()
}

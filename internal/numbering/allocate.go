package numbering

import (
	"context"
	"time"
)

// LinePort is the transactional storage slice the allocator operates on. The
// engines implement it on their own transactions so the lastNoUsed bump
// commits (or rolls back) together with the operation consuming the number.
type LinePort interface {
	FindSeriesByCode(ctx context.Context, orgID int64, code string) (NoSerie, error)
	FindDefaultSeries(ctx context.Context, orgID int64, docType DocumentType) (NoSerie, error)
	OpenLineForDate(ctx context.Context, seriesID int64, asOf time.Time) (NoSerieLine, error)
	// CompareAndBumpLine advances last_no_used only when it still equals
	// expected. Returns false on a lost race; implementations that detect the
	// race at the storage layer return ErrAllocatorContention instead.
	CompareAndBumpLine(ctx context.Context, lineID int64, expected, next string, usedAt time.Time) (bool, error)
}

// Request identifies the series to draw from. SeriesCode wins over
// DocumentType when both are set.
type Request struct {
	OrgID        int64
	SeriesCode   string
	DocumentType DocumentType
	AsOf         time.Time
}

// Two concurrent allocators can collide at most a handful of times before one
// of them is stuck behind a pathological writer; beyond that we surface the
// conflict instead of spinning.
const maxAllocationAttempts = 5

// ResolveSeries finds the series for a request.
func ResolveSeries(ctx context.Context, port LinePort, req Request) (NoSerie, error) {
	if req.SeriesCode != "" {
		return port.FindSeriesByCode(ctx, req.OrgID, req.SeriesCode)
	}
	if req.DocumentType == "" {
		return NoSerie{}, ErrSeriesNotFound
	}
	return port.FindDefaultSeries(ctx, req.OrgID, req.DocumentType)
}

// AllocateWithin issues the next number of the resolved series through the
// given port, using a bounded compare-and-swap retry loop over lastNoUsed.
func AllocateWithin(ctx context.Context, port LinePort, req Request) (string, error) {
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	series, err := ResolveSeries(ctx, port, req)
	if err != nil {
		return "", err
	}
	for attempt := 0; attempt < maxAllocationAttempts; attempt++ {
		line, err := port.OpenLineForDate(ctx, series.ID, asOf)
		if err != nil {
			return "", err
		}
		if series.DateOrder && line.LastDateUsed != nil && asOf.Before(*line.LastDateUsed) {
			return "", ErrDateOutOfOrder
		}
		next, err := nextInLine(line)
		if err != nil {
			return "", err
		}
		ok, err := port.CompareAndBumpLine(ctx, line.ID, line.LastNoUsed, next, asOf)
		if err != nil {
			return "", err
		}
		if ok {
			return next, nil
		}
	}
	return "", ErrAllocatorContention
}

// nextInLine computes the number that follows lastNoUsed, or the starting
// number for a fresh line, and enforces the ending bound.
func nextInLine(line NoSerieLine) (string, error) {
	step := line.IncrementBy
	if step <= 0 {
		step = 1
	}
	var next string
	if line.LastNoUsed == "" {
		next = line.StartingNo
	} else {
		bumped, err := incrementNumber(line.LastNoUsed, step)
		if err != nil {
			return "", err
		}
		next = bumped
	}
	in, err := numberInRange(next, line.StartingNo, line.EndingNo)
	if err != nil {
		return "", err
	}
	if !in {
		return "", ErrSeriesExhausted
	}
	return next, nil
}

// ClaimManualWithin reserves a caller-supplied number on a manual series.
// The number must sit inside the line's range and past every issued number.
func ClaimManualWithin(ctx context.Context, port LinePort, req Request, number string) error {
	asOf := req.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	series, err := ResolveSeries(ctx, port, req)
	if err != nil {
		return err
	}
	if !series.ManualNos {
		return ErrManualNotAllowed
	}
	for attempt := 0; attempt < maxAllocationAttempts; attempt++ {
		line, err := port.OpenLineForDate(ctx, series.ID, asOf)
		if err != nil {
			return err
		}
		in, err := numberInRange(number, line.StartingNo, line.EndingNo)
		if err != nil || !in {
			return ErrManualNumberConflict
		}
		if line.LastNoUsed != "" {
			cmp, err := compareNumbers(number, line.LastNoUsed)
			if err != nil {
				return ErrManualNumberConflict
			}
			if cmp <= 0 {
				return ErrManualNumberConflict
			}
		}
		ok, err := port.CompareAndBumpLine(ctx, line.ID, line.LastNoUsed, number, asOf)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return ErrAllocatorContention
}

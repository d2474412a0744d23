package numbering

import (
	"context"
	"strings"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Service issues and validates document numbers. Standalone allocations run
// in their own transaction; engines embed the same algorithm in their unit of
// work via AllocateWithin.
type Service struct {
	repo Repository
}

// NewService constructs the allocator service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NextNumber issues the next number of a series identified by code.
func (s *Service) NextNumber(ctx context.Context, orgID int64, seriesCode string, asOf time.Time) (string, error) {
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		issued, err := AllocateWithin(ctx, tx, Request{OrgID: orgID, SeriesCode: seriesCode, AsOf: asOf})
		if err != nil {
			return err
		}
		number = issued
		return nil
	})
	return number, err
}

// NextNumberByType issues the next number from the default series of a
// document type.
func (s *Service) NextNumberByType(ctx context.Context, orgID int64, docType DocumentType, asOf time.Time) (string, error) {
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		issued, err := AllocateWithin(ctx, tx, Request{OrgID: orgID, DocumentType: docType, AsOf: asOf})
		if err != nil {
			return err
		}
		number = issued
		return nil
	})
	return number, err
}

// ValidateNumber checks a number against the series range without side
// effects.
func (s *Service) ValidateNumber(ctx context.Context, orgID int64, seriesCode, number string, asOf time.Time) error {
	series, err := s.repo.FindSeriesByCode(ctx, orgID, seriesCode)
	if err != nil {
		return err
	}
	line, err := s.repo.OpenLineForDate(ctx, series.ID, defaultNow(asOf))
	if err != nil {
		return err
	}
	in, err := numberInRange(number, line.StartingNo, line.EndingNo)
	if err != nil {
		return shared.NewError(shared.KindValidation, "no_serie_line", "number", err.Error())
	}
	if !in {
		return shared.NewError(shared.KindValidation, "no_serie_line", "number", "number outside series range")
	}
	return nil
}

// IsNumberAvailable reports whether a number is inside the range and not yet
// issued. Read-only.
func (s *Service) IsNumberAvailable(ctx context.Context, orgID int64, seriesCode, number string, asOf time.Time) (bool, error) {
	series, err := s.repo.FindSeriesByCode(ctx, orgID, seriesCode)
	if err != nil {
		return false, err
	}
	line, err := s.repo.OpenLineForDate(ctx, series.ID, defaultNow(asOf))
	if err != nil {
		return false, err
	}
	in, err := numberInRange(number, line.StartingNo, line.EndingNo)
	if err != nil || !in {
		return false, nil
	}
	if line.LastNoUsed == "" {
		return true, nil
	}
	cmp, err := compareNumbers(number, line.LastNoUsed)
	if err != nil {
		return false, nil
	}
	return cmp > 0, nil
}

// ClaimManualNumber reserves a caller-supplied number on a manual series in
// its own transaction.
func (s *Service) ClaimManualNumber(ctx context.Context, orgID int64, seriesCode, number string, asOf time.Time) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return ClaimManualWithin(ctx, tx, Request{OrgID: orgID, SeriesCode: seriesCode, AsOf: asOf}, number)
	})
}

// CreateSeriesInput describes a new series.
type CreateSeriesInput struct {
	OrgID        int64        `validate:"required"`
	Code         string       `validate:"required,max=32"`
	Description  string       `validate:"max=128"`
	DocumentType DocumentType `validate:"required"`
	DefaultNos   bool
	ManualNos    bool
	DateOrder    bool
}

// CreateSeries registers a series. Uniqueness of the default flag per
// (org, document type) is enforced by storage.
func (s *Service) CreateSeries(ctx context.Context, input CreateSeriesInput) (NoSerie, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return NoSerie{}, shared.NewError(shared.KindValidation, "no_serie", "code", "code required")
	}
	return s.repo.InsertSeries(ctx, NoSerie{
		OrgID:        input.OrgID,
		Code:         code,
		Description:  input.Description,
		DocumentType: input.DocumentType,
		DefaultNos:   input.DefaultNos,
		ManualNos:    input.ManualNos,
		DateOrder:    input.DateOrder,
	})
}

// AddLineInput describes a new range for a series.
type AddLineInput struct {
	SeriesID     int64
	StartingDate time.Time
	StartingNo   string `validate:"required"`
	EndingNo     string
	IncrementBy  int
}

// AddLine appends a date-bounded range to a series.
func (s *Service) AddLine(ctx context.Context, input AddLineInput) (NoSerieLine, error) {
	if _, err := splitNumber(input.StartingNo); err != nil {
		return NoSerieLine{}, shared.NewError(shared.KindValidation, "no_serie_line", "starting_no", err.Error())
	}
	if input.EndingNo != "" {
		if _, err := compareNumbers(input.StartingNo, input.EndingNo); err != nil {
			return NoSerieLine{}, shared.NewError(shared.KindValidation, "no_serie_line", "ending_no", err.Error())
		}
	}
	step := input.IncrementBy
	if step <= 0 {
		step = 1
	}
	return s.repo.InsertLine(ctx, NoSerieLine{
		SeriesID:     input.SeriesID,
		StartingDate: input.StartingDate,
		StartingNo:   input.StartingNo,
		EndingNo:     input.EndingNo,
		IncrementBy:  step,
		Open:         true,
	})
}

// ListSeries returns all series of the organisation.
func (s *Service) ListSeries(ctx context.Context, orgID int64) ([]NoSerie, error) {
	return s.repo.ListSeries(ctx, orgID)
}

// ListLines returns the ranges of a series.
func (s *Service) ListLines(ctx context.Context, seriesID int64) ([]NoSerieLine, error) {
	return s.repo.ListLines(ctx, seriesID)
}

// CloseLine closes a range against further allocation.
func (s *Service) CloseLine(ctx context.Context, lineID int64) error {
	return s.repo.SetLineOpen(ctx, lineID, false)
}

func defaultNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

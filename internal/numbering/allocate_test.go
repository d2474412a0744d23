package numbering

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// memLinePort is a thread-safe in-memory LinePort with real CAS semantics.
type memLinePort struct {
	mu     sync.Mutex
	series []NoSerie
	lines  []NoSerieLine
}

func (p *memLinePort) FindSeriesByCode(_ context.Context, orgID int64, code string) (NoSerie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.series {
		if s.OrgID == orgID && s.Code == code {
			return s, nil
		}
	}
	return NoSerie{}, ErrSeriesNotFound
}

func (p *memLinePort) FindDefaultSeries(_ context.Context, orgID int64, docType DocumentType) (NoSerie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.series {
		if s.OrgID == orgID && s.DocumentType == docType && s.DefaultNos {
			return s, nil
		}
	}
	return NoSerie{}, ErrNoDefaultSeries
}

func (p *memLinePort) OpenLineForDate(_ context.Context, seriesID int64, asOf time.Time) (NoSerieLine, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var best *NoSerieLine
	for i := range p.lines {
		line := &p.lines[i]
		if line.SeriesID != seriesID || !line.Open || line.StartingDate.After(asOf) {
			continue
		}
		if best == nil || line.StartingDate.After(best.StartingDate) {
			best = line
		}
	}
	if best == nil {
		return NoSerieLine{}, ErrNoOpenLine
	}
	return *best, nil
}

func (p *memLinePort) CompareAndBumpLine(_ context.Context, lineID int64, expected, next string, usedAt time.Time) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.lines {
		line := &p.lines[i]
		if line.ID != lineID {
			continue
		}
		if line.LastNoUsed != expected || !line.Open {
			return false, nil
		}
		line.LastNoUsed = next
		used := usedAt
		line.LastDateUsed = &used
		return true, nil
	}
	return false, nil
}

func newTestPort() *memLinePort {
	return &memLinePort{
		series: []NoSerie{
			{ID: 1, OrgID: 1, Code: "PO", DocumentType: DocTypePurchaseOrder, DefaultNos: true},
		},
		lines: []NoSerieLine{
			{ID: 10, SeriesID: 1, StartingDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				StartingNo: "PO-0001", EndingNo: "PO-0010", IncrementBy: 1, Open: true},
		},
	}
}

func TestAllocateWithinSequence(t *testing.T) {
	port := newTestPort()
	ctx := context.Background()
	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	first, err := AllocateWithin(ctx, port, Request{OrgID: 1, SeriesCode: "PO", AsOf: asOf})
	require.NoError(t, err)
	require.Equal(t, "PO-0001", first)

	second, err := AllocateWithin(ctx, port, Request{OrgID: 1, SeriesCode: "PO", AsOf: asOf})
	require.NoError(t, err)
	require.Equal(t, "PO-0002", second)
}

func TestAllocateWithinByDocumentType(t *testing.T) {
	port := newTestPort()
	ctx := context.Background()

	number, err := AllocateWithin(ctx, port, Request{OrgID: 1, DocumentType: DocTypePurchaseOrder,
		AsOf: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.Equal(t, "PO-0001", number)

	_, err = AllocateWithin(ctx, port, Request{OrgID: 1, DocumentType: DocTypeSalesOrder,
		AsOf: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)})
	require.ErrorIs(t, err, ErrNoDefaultSeries)
}

func TestAllocateWithinExhaustsRange(t *testing.T) {
	port := newTestPort()
	ctx := context.Background()
	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		_, err := AllocateWithin(ctx, port, Request{OrgID: 1, SeriesCode: "PO", AsOf: asOf})
		require.NoError(t, err)
	}
	_, err := AllocateWithin(ctx, port, Request{OrgID: 1, SeriesCode: "PO", AsOf: asOf})
	require.ErrorIs(t, err, ErrSeriesExhausted)
}

func TestAllocateWithinNoOpenLine(t *testing.T) {
	port := newTestPort()
	_, err := AllocateWithin(context.Background(), port, Request{OrgID: 1, SeriesCode: "PO",
		AsOf: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)})
	require.ErrorIs(t, err, ErrNoOpenLine)
}

func TestAllocateWithinDateOrder(t *testing.T) {
	port := newTestPort()
	port.series[0].DateOrder = true
	ctx := context.Background()

	_, err := AllocateWithin(ctx, port, Request{OrgID: 1, SeriesCode: "PO",
		AsOf: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	_, err = AllocateWithin(ctx, port, Request{OrgID: 1, SeriesCode: "PO",
		AsOf: time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)})
	require.ErrorIs(t, err, ErrDateOutOfOrder)
}

func TestAllocateWithinConcurrentCallersGetDistinctNumbers(t *testing.T) {
	port := newTestPort()
	port.lines[0].EndingNo = "PO-9999"
	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	const callers = 8
	var mu sync.Mutex
	issued := make(map[string]bool, callers)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			// Retry on contention: the CAS loop gives up after a bounded
			// number of lost races, like a caller transaction would.
			for {
				number, err := AllocateWithin(ctx, port, Request{OrgID: 1, SeriesCode: "PO", AsOf: asOf})
				if errors.Is(err, ErrAllocatorContention) {
					continue
				}
				if err != nil {
					return err
				}
				mu.Lock()
				defer mu.Unlock()
				if issued[number] {
					t.Errorf("number %s issued twice", number)
				}
				issued[number] = true
				return nil
			}
		})
	}
	require.NoError(t, g.Wait())
	require.Len(t, issued, callers)
}

// stalePort serves a line snapshot that never advances, the way a
// snapshot-isolated read would after a concurrent commit.
type stalePort struct {
	series   NoSerie
	line     NoSerieLine
	attempts int
}

func (p *stalePort) FindSeriesByCode(_ context.Context, _ int64, _ string) (NoSerie, error) {
	return p.series, nil
}

func (p *stalePort) FindDefaultSeries(_ context.Context, _ int64, _ DocumentType) (NoSerie, error) {
	return p.series, nil
}

func (p *stalePort) OpenLineForDate(_ context.Context, _ int64, _ time.Time) (NoSerieLine, error) {
	return p.line, nil
}

func (p *stalePort) CompareAndBumpLine(_ context.Context, _ int64, _, _ string, _ time.Time) (bool, error) {
	p.attempts++
	return false, nil
}

func TestAllocateWithinStaleSnapshotGivesUp(t *testing.T) {
	port := &stalePort{
		series: NoSerie{ID: 1, OrgID: 1, Code: "PO", DocumentType: DocTypePurchaseOrder, DefaultNos: true},
		line: NoSerieLine{ID: 10, SeriesID: 1,
			StartingDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			StartingNo:   "PO-0001", EndingNo: "PO-9999", IncrementBy: 1, Open: true,
			LastNoUsed: "PO-0005"},
	}

	// A port that can never show progress must surface the collision as the
	// domain error after a bounded number of attempts, not spin or leak a
	// storage error.
	_, err := AllocateWithin(context.Background(), port, Request{OrgID: 1, SeriesCode: "PO",
		AsOf: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)})
	require.ErrorIs(t, err, ErrAllocatorContention)
	require.Equal(t, maxAllocationAttempts, port.attempts)
}

func TestClaimManualWithin(t *testing.T) {
	port := newTestPort()
	port.series[0].ManualNos = true
	ctx := context.Background()
	asOf := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	req := Request{OrgID: 1, SeriesCode: "PO", AsOf: asOf}

	require.NoError(t, ClaimManualWithin(ctx, port, req, "PO-0005"))

	// Already issued or below the watermark.
	require.ErrorIs(t, ClaimManualWithin(ctx, port, req, "PO-0005"), ErrManualNumberConflict)
	require.ErrorIs(t, ClaimManualWithin(ctx, port, req, "PO-0003"), ErrManualNumberConflict)

	// Outside the range.
	require.ErrorIs(t, ClaimManualWithin(ctx, port, req, "PO-0099"), ErrManualNumberConflict)

	// Automatic allocation continues after the claimed number.
	number, err := AllocateWithin(ctx, port, req)
	require.NoError(t, err)
	require.Equal(t, "PO-0006", number)
}

func TestClaimManualWithinRejectsAutomaticSeries(t *testing.T) {
	port := newTestPort()
	err := ClaimManualWithin(context.Background(), port, Request{OrgID: 1, SeriesCode: "PO",
		AsOf: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}, "PO-0002")
	require.ErrorIs(t, err, ErrManualNotAllowed)
}

package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TxPort is the slice of transactional storage the posting routine needs.
// The receiving and payment engines implement it on their own transactions so
// a journal entry commits atomically with the business mutation that caused
// it.
type TxPort interface {
	ActiveAccountIDs(ctx context.Context, orgID int64, ids []int64) (map[int64]bool, error)
	InsertEntry(ctx context.Context, in PostingInput) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []PostingLineInput) ([]JournalLine, error)
}

// PostWithin validates the input and writes the entry plus its lines through
// the given transactional port. Line numbers are assigned sequentially from 1
// in input order.
func PostWithin(ctx context.Context, port TxPort, in PostingInput) (JournalEntry, error) {
	if err := in.Validate(); err != nil {
		return JournalEntry{}, err
	}
	ids := make([]int64, 0, len(in.Lines))
	for _, line := range in.Lines {
		ids = append(ids, line.AccountID)
	}
	active, err := port.ActiveAccountIDs(ctx, in.OrgID, ids)
	if err != nil {
		return JournalEntry{}, err
	}
	for _, id := range ids {
		if !active[id] {
			return JournalEntry{}, ErrUnknownAccount
		}
	}
	entry, err := port.InsertEntry(ctx, in)
	if err != nil {
		return JournalEntry{}, err
	}
	lines, err := port.InsertLines(ctx, entry.ID, in.Lines)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

// AuditPort records posting actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service exposes ledger posting as a standalone operation. Engines that need
// the posting inside their own transaction use PostWithin instead.
type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the ledger service.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Post writes one balanced entry in its own transaction.
func (s *Service) Post(ctx context.Context, in PostingInput) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		posted, err := PostWithin(ctx, tx, in)
		if err != nil {
			return err
		}
		entry = posted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, in.OrgID, in.PostedBy, "journal.post", entry)
	return entry, nil
}

// Reverse posts the equal-and-opposite entry referencing the original. The
// original entry is left untouched.
func (s *Service) Reverse(ctx context.Context, orgID, entryID, actorID int64, memo string) (JournalEntry, error) {
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryWithLines(ctx, orgID, entryID)
		if err != nil {
			return err
		}
		if memo == "" {
			memo = fmt.Sprintf("Reversal of JE %d", original.Number)
		}
		posted, err := PostWithin(ctx, tx, PostingInput{
			OrgID:       orgID,
			Date:        s.now(),
			Description: memo,
			Reference:   original.Reference,
			ReversalOf:  &original.ID,
			PostedBy:    actorID,
			Lines:       Negate(original.Lines),
		})
		if err != nil {
			return err
		}
		reversal = posted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, orgID, actorID, "journal.reverse", reversal)
	return reversal, nil
}

// Get fetches one entry with its lines.
func (s *Service) Get(ctx context.Context, orgID, entryID int64) (JournalEntry, error) {
	return s.repo.GetEntryWithLines(ctx, orgID, entryID)
}

// List returns entries of the organisation, newest first.
func (s *Service) List(ctx context.Context, orgID int64) ([]JournalEntry, error) {
	return s.repo.List(ctx, orgID)
}

func (s *Service) recordAudit(ctx context.Context, orgID, actorID int64, action string, entry JournalEntry) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		OrgID:    orgID,
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta:     map[string]any{"number": entry.Number},
		At:       s.now(),
	})
}

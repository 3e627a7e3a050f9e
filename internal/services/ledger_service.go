package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/ledger"
)

// Publisher announces committed ledger changes.
type Publisher interface {
	PublishChange(ctx context.Context, change core.Change) error
	Close() error
}

// LedgerService orchestrates ledger mutations and change notifications.
type LedgerService struct {
	store     *ledger.Store
	publisher Publisher
	closers   []io.Closer
	now       func() time.Time
}

func NewLedgerService(store *ledger.Store, publisher Publisher, closers ...io.Closer) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		closers:   closers,
		now:       time.Now,
	}
}

// SetClock overrides the clock used for "today".
func (s *LedgerService) SetClock(now func() time.Time) {
	s.now = now
}

// Store exposes the underlying ledger store.
func (s *LedgerService) Store() *ledger.Store {
	return s.store
}

// Today returns the current calendar date.
func (s *LedgerService) Today() core.Date {
	return core.DateOf(s.now())
}

func (s *LedgerService) Records(ctx context.Context) ([]core.Record, error) {
	return s.store.Records(ctx)
}

// Window returns the trailing window ending today.
func (s *LedgerService) Window(ctx context.Context, days int) (ledger.View, error) {
	return s.store.Windowed(ctx, s.now(), days)
}

// Add appends a record and announces it.
func (s *LedgerService) Add(ctx context.Context, r core.Record) (int, error) {
	pos, err := s.store.Append(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("append record: %w", err)
	}
	slog.InfoContext(ctx, "Record appended",
		"position", pos,
		"date", r.Date.String(),
		"kind", r.Kind,
		"category", r.Category,
		"amount", r.Amount)
	s.publish(ctx, core.OpAppend, []int{pos})
	return pos, nil
}

// Update replaces the record at pos. A non-zero rev guards against positions
// taken from an outdated view.
func (s *LedgerService) Update(ctx context.Context, rev uint64, pos int, r core.Record) error {
	var err error
	if rev != 0 {
		err = s.store.UpdateAtRevision(ctx, rev, pos, r)
	} else {
		err = s.store.UpdateAt(ctx, pos, r)
	}
	if err != nil {
		return fmt.Errorf("update record %d: %w", pos, err)
	}
	slog.InfoContext(ctx, "Record updated", "position", pos)
	s.publish(ctx, core.OpUpdate, []int{pos})
	return nil
}

// Delete removes the records at positions in one write. A non-zero rev
// guards against stale positions.
func (s *LedgerService) Delete(ctx context.Context, rev uint64, positions []int) error {
	positions = ledger.SortedPositions(positions)
	var err error
	if rev != 0 {
		err = s.store.DeleteManyAtRevision(ctx, rev, positions)
	} else {
		err = s.store.DeleteMany(ctx, positions)
	}
	if err != nil {
		return fmt.Errorf("delete records %v: %w", positions, err)
	}
	slog.InfoContext(ctx, "Records deleted", "positions", positions)
	s.publish(ctx, core.OpDelete, positions)
	return nil
}

// DeleteMatching removes the single record equal to target.
func (s *LedgerService) DeleteMatching(ctx context.Context, target core.Record) error {
	if err := s.store.DeleteMatching(ctx, target); err != nil {
		return fmt.Errorf("delete matching record: %w", err)
	}
	s.publish(ctx, core.OpDelete, nil)
	return nil
}

// UpdateMatching replaces the single record equal to target with r.
func (s *LedgerService) UpdateMatching(ctx context.Context, target, r core.Record) error {
	if err := s.store.UpdateMatching(ctx, target, r); err != nil {
		return fmt.Errorf("update matching record: %w", err)
	}
	s.publish(ctx, core.OpUpdate, nil)
	return nil
}

// Reload re-reads the backing table, announcing content changed by another
// writer.
func (s *LedgerService) Reload(ctx context.Context) error {
	before := s.store.Revision()
	if err := s.store.Reload(ctx); err != nil {
		return err
	}
	if s.store.Revision() != before {
		s.publish(ctx, core.OpReload, nil)
	}
	return nil
}

// publish never fails the caller: the mutation is already durable.
func (s *LedgerService) publish(ctx context.Context, op core.ChangeOp, positions []int) {
	if s.publisher == nil {
		return
	}
	change := core.Change{Op: op, Positions: positions, Revision: s.store.Revision()}
	if err := s.publisher.PublishChange(ctx, change); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger change",
			"op", op, "revision", change.Revision, "error", err)
	}
}

// Close closes the publisher and the registered backend resources.
func (s *LedgerService) Close() error {
	var errs []error

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}
	return nil
}

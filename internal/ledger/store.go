// Package ledger implements the ledger store: the ordered record sequence,
// the trailing-window query and the mutate-then-persist cycle.
//
// Every mutation rewrites the whole table through the sheets.Table port.
// Positions handed out by Windowed are only valid until the next mutation;
// the *AtRevision variants detect stale positions using the store revision.
// The backing table is not locked across processes, so two processes writing
// the same file race and the last full rewrite wins.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/sheets"
)

// Store owns the cached copy of the ledger and its persistence.
type Store struct {
	mu       sync.Mutex
	table    sheets.Table
	records  []core.Record
	loaded   bool
	revision uint64
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for default windows.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for persistence events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns a store over table. Its revisions start at a fresh epoch, so a
// revision handed out by another store or an earlier process never matches.
func New(table sheets.Table, opts ...Option) *Store {
	s := &Store{
		table:    table,
		revision: newEpoch(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the full sequence from durable storage, refreshing the cache.
func (s *Store) Load(ctx context.Context) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadLocked(ctx); err != nil {
		return nil, err
	}
	return s.snapshotLocked(), nil
}

// Reload forces a re-read from storage.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked(ctx)
}

// Records returns the cached sequence, loading it on first use.
func (s *Store) Records(ctx context.Context) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return nil, err
	}
	return s.snapshotLocked(), nil
}

// Revision identifies the current content of the ledger. It changes on every
// committed mutation and on reloads that observe different content.
func (s *Store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Len returns the number of records, loading if needed.
func (s *Store) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return 0, err
	}
	return len(s.records), nil
}

// Append validates r and adds it at the end of the sequence. It returns the
// position of the new record.
func (s *Store) Append(ctx context.Context, r core.Record) (int, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	r = r.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return 0, err
	}
	next := make([]core.Record, len(s.records), len(s.records)+1)
	copy(next, s.records)
	next = append(next, r)
	if err := s.commitLocked(ctx, next); err != nil {
		return 0, err
	}
	return len(next) - 1, nil
}

// Windowed returns the records dated within the trailing window ending at
// now, each paired with its position in the full sequence.
func (s *Store) Windowed(ctx context.Context, now time.Time, days int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return View{}, err
	}
	v := Window(s.records, now, days)
	v.Revision = s.revision
	return v, nil
}

// Recent is Windowed for the store clock and the default window.
func (s *Store) Recent(ctx context.Context) (View, error) {
	return s.Windowed(ctx, s.now(), DefaultWindowDays)
}

// UpdateAt replaces all fields of the record at pos.
func (s *Store) UpdateAt(ctx context.Context, pos int, r core.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	r = r.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	return s.updateLocked(ctx, pos, r)
}

// UpdateAtRevision is UpdateAt guarded against positions taken from an
// outdated view.
func (s *Store) UpdateAtRevision(ctx context.Context, rev uint64, pos int, r core.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	r = r.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	if rev != s.revision {
		return fmt.Errorf("%w: view revision %d, ledger revision %d", core.ErrStaleView, rev, s.revision)
	}
	return s.updateLocked(ctx, pos, r)
}

// DeleteAt removes the record at pos; later positions shift down by one.
func (s *Store) DeleteAt(ctx context.Context, pos int) error {
	return s.DeleteMany(ctx, []int{pos})
}

// DeleteMany removes every listed position in a single rewrite. Any position
// out of range fails the whole call.
func (s *Store) DeleteMany(ctx context.Context, positions []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	return s.deleteLocked(ctx, positions)
}

// DeleteManyAtRevision is DeleteMany guarded against stale positions.
func (s *Store) DeleteManyAtRevision(ctx context.Context, rev uint64, positions []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	if rev != s.revision {
		return fmt.Errorf("%w: view revision %d, ledger revision %d", core.ErrStaleView, rev, s.revision)
	}
	return s.deleteLocked(ctx, positions)
}

// DeleteMatching removes the single record equal to target. Zero or several
// equal records fail with ErrAmbiguousMatch.
func (s *Store) DeleteMatching(ctx context.Context, target core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	pos, err := s.matchLocked(target.Normalize())
	if err != nil {
		return err
	}
	return s.deleteLocked(ctx, []int{pos})
}

// UpdateMatching replaces the single record equal to target with r.
func (s *Store) UpdateMatching(ctx context.Context, target, r core.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	r = r.Normalize()
	target = target.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(ctx); err != nil {
		return err
	}
	pos, err := s.matchLocked(target)
	if err != nil {
		return err
	}
	return s.updateLocked(ctx, pos, r)
}

// Totals sums the given records per kind.
func Totals(records []core.Record) core.Totals {
	return core.SumTotals(records)
}

func (s *Store) updateLocked(ctx context.Context, pos int, r core.Record) error {
	if err := s.checkPositionLocked(pos); err != nil {
		return err
	}
	next := s.snapshotLocked()
	next[pos] = r
	return s.commitLocked(ctx, next)
}

func (s *Store) deleteLocked(ctx context.Context, positions []int) error {
	if len(positions) == 0 {
		return nil
	}
	drop := make(map[int]struct{}, len(positions))
	for _, p := range positions {
		if err := s.checkPositionLocked(p); err != nil {
			return err
		}
		drop[p] = struct{}{}
	}
	next := make([]core.Record, 0, len(s.records)-len(drop))
	for i, r := range s.records {
		if _, ok := drop[i]; ok {
			continue
		}
		next = append(next, r)
	}
	return s.commitLocked(ctx, next)
}

func (s *Store) matchLocked(target core.Record) (int, error) {
	var matches []int
	for i, r := range s.records {
		if r.Equal(target) {
			matches = append(matches, i)
		}
	}
	if len(matches) != 1 {
		return 0, fmt.Errorf("%w: %d records equal %s", core.ErrAmbiguousMatch, len(matches), target)
	}
	return matches[0], nil
}

func (s *Store) checkPositionLocked(pos int) error {
	if pos < 0 || pos >= len(s.records) {
		return fmt.Errorf("%w: position %d, ledger has %d records", core.ErrPositionOutOfRange, pos, len(s.records))
	}
	return nil
}

// commitLocked persists next and only then replaces the cached copy, so a
// failed write leaves the store unmodified.
func (s *Store) commitLocked(ctx context.Context, next []core.Record) error {
	if err := s.table.Save(ctx, next); err != nil {
		s.logger.ErrorContext(ctx, "Ledger save failed", "error", err, "records", len(next))
		return wrapStorage("save ledger", err)
	}
	s.records = next
	s.revision++
	s.logger.DebugContext(ctx, "Ledger saved", "records", len(next), "revision", s.revision)
	return nil
}

func (s *Store) ensureLoadedLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	return s.reloadLocked(ctx)
}

func (s *Store) reloadLocked(ctx context.Context) error {
	records, err := s.table.Load(ctx)
	if err != nil {
		return wrapStorage("load ledger", err)
	}
	if records == nil {
		records = []core.Record{}
	}
	if !s.loaded || !equalRecords(s.records, records) {
		s.revision++
	}
	s.records = records
	s.loaded = true
	return nil
}

func (s *Store) snapshotLocked() []core.Record {
	return append([]core.Record{}, s.records...)
}

func equalRecords(a, b []core.Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// epochSpan is the number of revisions reserved per store before the next
// epoch. Epochs are milliseconds shifted left, which stays below 2^53 so
// revisions survive a round trip through JSON numbers.
const epochSpan = 1 << 10

var lastEpoch atomic.Uint64

func newEpoch() uint64 {
	for {
		prev := lastEpoch.Load()
		next := uint64(time.Now().UnixMilli()) << 10
		if next < prev+epochSpan {
			next = prev + epochSpan
		}
		if lastEpoch.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// SortedPositions returns positions in ascending order without duplicates.
func SortedPositions(positions []int) []int {
	seen := make(map[int]struct{}, len(positions))
	out := make([]int, 0, len(positions))
	for _, p := range positions {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

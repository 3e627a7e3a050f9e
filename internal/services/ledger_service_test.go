package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/ledger"
	"kakeibo/internal/sheets/memory"
)

type fakePublisher struct {
	mu      sync.Mutex
	changes []core.Change
	err     error
	closed  bool
}

func (p *fakePublisher) PublishChange(_ context.Context, c core.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return p.err
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var now = time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)

func newService(pub Publisher, seed ...core.Record) (*LedgerService, *memory.Table) {
	table := memory.New(seed...)
	svc := NewLedgerService(ledger.New(table), pub)
	svc.SetClock(func() time.Time { return now })
	return svc, table
}

func record(day int, kind core.Kind, cat string, amount int64) core.Record {
	return core.Record{Date: core.NewDate(2024, 5, day), Kind: kind, Category: cat, Amount: amount}
}

func TestLedgerService_AddPublishes(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newService(pub)

	pos, err := svc.Add(context.Background(), record(20, core.Expense, "食費", 500))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if pos != 0 {
		t.Errorf("expected position 0, got %d", pos)
	}
	if len(pub.changes) != 1 || pub.changes[0].Op != core.OpAppend {
		t.Fatalf("expected one append change, got %+v", pub.changes)
	}
	if pub.changes[0].Revision != svc.Store().Revision() {
		t.Errorf("change revision %d, store revision %d", pub.changes[0].Revision, svc.Store().Revision())
	}
}

func TestLedgerService_PublishFailureDoesNotFail(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc, table := newService(pub)

	if _, err := svc.Add(context.Background(), record(20, core.Expense, "食費", 500)); err != nil {
		t.Fatalf("Add should succeed when publishing fails: %v", err)
	}
	if table.Saves() != 1 {
		t.Errorf("expected record to be saved")
	}
}

func TestLedgerService_NilPublisher(t *testing.T) {
	svc, _ := newService(nil)
	if _, err := svc.Add(context.Background(), record(20, core.Income, "給与", 1)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestLedgerService_ValidationNotPublished(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newService(pub)

	_, err := svc.Add(context.Background(), core.Record{Date: core.NewDate(2024, 5, 20), Kind: core.Expense})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(pub.changes) != 0 {
		t.Errorf("failed mutation must not be announced")
	}
}

func TestLedgerService_WindowUsesClock(t *testing.T) {
	svc, _ := newService(nil,
		record(10, core.Expense, "食費", 100),
		record(18, core.Expense, "交通", 200),
	)

	v, err := svc.Window(context.Background(), 7)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if len(v.Rows) != 1 || v.Rows[0].Position != 1 {
		t.Fatalf("unexpected window: %+v", v.Rows)
	}
	if !svc.Today().Equal(core.NewDate(2024, 5, 20)) {
		t.Errorf("unexpected today: %s", svc.Today())
	}
}

func TestLedgerService_UpdateWithRevision(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newService(pub, record(19, core.Expense, "食費", 100))
	ctx := context.Background()

	v, err := svc.Window(ctx, 7)
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if err := svc.Update(ctx, v.Revision, 0, record(19, core.Expense, "食費", 150)); err != nil {
		t.Fatalf("Update: %v", err)
	}
	// The view is now stale.
	err = svc.Update(ctx, v.Revision, 0, record(19, core.Expense, "食費", 175))
	if !errors.Is(err, core.ErrStaleView) {
		t.Fatalf("expected ErrStaleView, got %v", err)
	}
	// Plain positions skip the check.
	if err := svc.Update(ctx, 0, 0, record(19, core.Expense, "食費", 175)); err != nil {
		t.Fatalf("Update without revision: %v", err)
	}
	if len(pub.changes) != 2 {
		t.Errorf("expected 2 changes, got %d", len(pub.changes))
	}
}

func TestLedgerService_DeleteSortsPositions(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newService(pub,
		record(18, core.Expense, "A", 1),
		record(19, core.Expense, "B", 2),
		record(20, core.Expense, "C", 3),
	)
	ctx := context.Background()

	if err := svc.Delete(ctx, 0, []int{2, 0, 2}); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	records, _ := svc.Records(ctx)
	if len(records) != 1 || records[0].Category != "B" {
		t.Fatalf("unexpected records: %v", records)
	}
	got := pub.changes[0].Positions
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("unexpected published positions: %v", got)
	}

	if err := svc.Delete(ctx, 0, []int{7}); !errors.Is(err, core.ErrPositionOutOfRange) {
		t.Errorf("expected ErrPositionOutOfRange, got %v", err)
	}
}

func TestLedgerService_Matching(t *testing.T) {
	pub := &fakePublisher{}
	svc, _ := newService(pub,
		record(19, core.Expense, "食費", 500),
		record(19, core.Expense, "食費", 500),
		record(20, core.Expense, "交通", 220),
	)
	ctx := context.Background()

	err := svc.UpdateMatching(ctx, record(19, core.Expense, "食費", 500), record(19, core.Expense, "食費", 450))
	if !errors.Is(err, core.ErrAmbiguousMatch) {
		t.Fatalf("expected ErrAmbiguousMatch, got %v", err)
	}
	if err := svc.UpdateMatching(ctx, record(20, core.Expense, "交通", 220), record(20, core.Expense, "交通", 240)); err != nil {
		t.Fatalf("UpdateMatching: %v", err)
	}
	if err := svc.DeleteMatching(ctx, record(20, core.Expense, "交通", 240)); err != nil {
		t.Fatalf("DeleteMatching: %v", err)
	}
	records, _ := svc.Records(ctx)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %v", records)
	}
	if len(pub.changes) != 2 || pub.changes[0].Op != core.OpUpdate || pub.changes[1].Op != core.OpDelete {
		t.Errorf("unexpected changes: %+v", pub.changes)
	}
}

func TestLedgerService_ReloadAnnouncesExternalChange(t *testing.T) {
	pub := &fakePublisher{}
	svc, table := newService(pub, record(20, core.Expense, "A", 1))
	ctx := context.Background()

	if _, err := svc.Records(ctx); err != nil {
		t.Fatal(err)
	}
	if err := svc.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if len(pub.changes) != 0 {
		t.Fatalf("unchanged reload should not publish")
	}

	table.Put([]core.Record{record(20, core.Expense, "B", 2)})
	if err := svc.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if len(pub.changes) != 1 || pub.changes[0].Op != core.OpReload {
		t.Errorf("expected reload change, got %+v", pub.changes)
	}
}

func TestLedgerService_Close(t *testing.T) {
	pub := &fakePublisher{}
	closed := false
	svc := NewLedgerService(ledger.New(memory.New()), pub, closerFunc(func() error {
		closed = true
		return errors.New("busy")
	}))

	err := svc.Close()
	if err == nil {
		t.Fatal("expected close error to be reported")
	}
	if !pub.closed || !closed {
		t.Error("all resources should be closed")
	}
}

package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/sheets/memory"
)

func sampleRecords() []core.Record {
	return []core.Record{
		{Date: core.NewDate(2024, 5, 1), Kind: core.Expense, Category: "食費", Amount: 800},
		{Date: core.NewDate(2024, 5, 2), Kind: core.Income, Category: "給与", Amount: 1000},
	}
}

func msg(rev uint64) *amqp.LedgerChangedMessage {
	return amqp.NewLedgerChangedMessage(core.Change{Op: core.OpAppend, Revision: rev})
}

func TestMirrorWorker_HandleChangeCopiesSnapshot(t *testing.T) {
	source := memory.New(sampleRecords()...)
	mirror := memory.New()
	w := NewMirrorWorker(source, mirror)

	if err := w.HandleChange(context.Background(), msg(1)); err != nil {
		t.Fatalf("HandleChange: %v", err)
	}
	got, _ := mirror.Load(context.Background())
	if len(got) != 2 || !got[1].Equal(sampleRecords()[1]) {
		t.Fatalf("mirror mismatch: %v", got)
	}
}

func TestMirrorWorker_SkipsUnchangedSnapshot(t *testing.T) {
	source := memory.New(sampleRecords()...)
	mirror := memory.New()
	w := NewMirrorWorker(source, mirror)
	ctx := context.Background()

	if err := w.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if mirror.Saves() != 1 {
		t.Errorf("expected a single mirror save, got %d", mirror.Saves())
	}

	source.Put(sampleRecords()[:1])
	if err := w.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if mirror.Saves() != 2 {
		t.Errorf("expected changed snapshot to be mirrored, got %d saves", mirror.Saves())
	}
}

func TestMirrorWorker_OutdatedMessageIgnored(t *testing.T) {
	source := memory.New(sampleRecords()...)
	mirror := memory.New()
	w := NewMirrorWorker(source, mirror)
	ctx := context.Background()

	if err := w.HandleChange(ctx, msg(5)); err != nil {
		t.Fatal(err)
	}
	source.Put(nil)
	if err := w.HandleChange(ctx, msg(3)); err != nil {
		t.Fatal(err)
	}
	if mirror.Saves() != 1 {
		t.Errorf("outdated message should not trigger a copy")
	}
}

func TestMirrorWorker_ErrorsRequeue(t *testing.T) {
	source := memory.New(sampleRecords()...)
	mirror := memory.New()
	mirror.SaveErr = errors.New("read-only")
	w := NewMirrorWorker(source, mirror)

	err := w.HandleChange(context.Background(), msg(1))
	if !errors.Is(err, core.ErrStorageUnavailable) {
		t.Fatalf("expected storage error, got %v", err)
	}

	mirror.SaveErr = nil
	if err := w.HandleChange(context.Background(), msg(1)); err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
}

func TestMirrorWorker_RunStopsOnCancel(t *testing.T) {
	source := memory.New(sampleRecords()...)
	mirror := memory.New()
	w := NewMirrorWorker(source, mirror)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, 10*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for mirror.Saves() == 0 {
		select {
		case <-deadline:
			t.Fatal("mirror never synced")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

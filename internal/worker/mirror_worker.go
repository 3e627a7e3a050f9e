package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/sheets"
)

// MirrorWorker copies the ledger snapshot from the source table into a
// mirror table. Change messages trigger a copy; a periodic poll catches up
// after lost messages.
type MirrorWorker struct {
	source sheets.Table
	mirror sheets.Table

	mu           sync.Mutex
	lastRevision uint64
	lastSnapshot []core.Record
	mirrored     bool
}

func NewMirrorWorker(source, mirror sheets.Table) *MirrorWorker {
	return &MirrorWorker{source: source, mirror: mirror}
}

// HandleChange processes a single ledger change message from AMQP.
func (w *MirrorWorker) HandleChange(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	slog.InfoContext(ctx, "Processing ledger change",
		"message_id", msg.ID,
		"op", msg.Op,
		"revision", msg.Revision)

	w.mu.Lock()
	stale := w.mirrored && msg.Revision != 0 && msg.Revision < w.lastRevision
	w.mu.Unlock()
	if stale {
		// Older notification delivered late; the mirror already holds newer content.
		slog.DebugContext(ctx, "Skipping outdated change", "revision", msg.Revision)
		return nil
	}

	if err := w.Sync(ctx); err != nil {
		return err
	}

	w.mu.Lock()
	if msg.Revision > w.lastRevision {
		w.lastRevision = msg.Revision
	}
	w.mu.Unlock()
	return nil
}

// Sync copies the current source snapshot into the mirror when it differs
// from the last copy.
func (w *MirrorWorker) Sync(ctx context.Context) error {
	records, err := w.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load source ledger: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mirrored && sameRecords(w.lastSnapshot, records) {
		return nil
	}
	if err := w.mirror.Save(ctx, records); err != nil {
		return fmt.Errorf("save mirror ledger: %w", err)
	}
	w.lastSnapshot = records
	w.mirrored = true

	slog.InfoContext(ctx, "Ledger mirrored", "records", len(records))
	return nil
}

// Run polls the source every interval until ctx is done.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := w.Sync(ctx); err != nil {
		slog.ErrorContext(ctx, "Initial mirror sync failed", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Sync(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic mirror sync failed", "error", err)
			}
		}
	}
}

func sameRecords(a, b []core.Record) bool {
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

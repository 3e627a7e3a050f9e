package memory

import (
	"context"
	"fmt"
	"sync"

	"kakeibo/internal/core"
	ports "kakeibo/internal/sheets"
)

var _ ports.Table = (*Table)(nil)

// Table keeps the ledger snapshot in process memory.
type Table struct {
	mu    sync.Mutex
	items []core.Record
	saves int

	// Injected failures, for exercising error paths.
	LoadErr error
	SaveErr error
}

func New(seed ...core.Record) *Table {
	return &Table{items: append([]core.Record(nil), seed...)}
}

// Load returns a copy of the stored snapshot.
func (t *Table) Load(_ context.Context) ([]core.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.LoadErr != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStorageUnavailable, t.LoadErr)
	}
	return append([]core.Record{}, t.items...), nil
}

// Save replaces the stored snapshot.
func (t *Table) Save(_ context.Context, records []core.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.SaveErr != nil {
		return fmt.Errorf("%w: %v", core.ErrStorageUnavailable, t.SaveErr)
	}
	t.items = append([]core.Record{}, records...)
	t.saves++
	return nil
}

// Saves reports how many snapshots have been written.
func (t *Table) Saves() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saves
}

// Put replaces the snapshot without counting a save, simulating a write by
// another process.
func (t *Table) Put(records []core.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append([]core.Record{}, records...)
}

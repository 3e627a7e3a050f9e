package xlsx

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceInterval = 250 * time.Millisecond

// Watch calls onChange after the workbook is modified on disk, coalescing
// bursts of events. The containing directory is watched because saves
// replace the file by rename. Watch blocks until ctx is done.
func (t *Table) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	target, err := filepath.Abs(t.path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}
	t.logger.InfoContext(ctx, "Watching ledger workbook", "path", target)

	ticker := time.NewTicker(debounceInterval)
	defer ticker.Stop()

	var pending time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(ev.Name)
			if err != nil || name != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				pending = time.Now()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			t.logger.WarnContext(ctx, "Workbook watcher error", "error", err)
		case now := <-ticker.C:
			if !pending.IsZero() && now.Sub(pending) >= debounceInterval {
				pending = time.Time{}
				onChange()
			}
		}
	}
}

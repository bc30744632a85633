package kvstore

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/jotpad/internal/checksum"
)

// SourceExternal marks change events detected from another process's writes.
const SourceExternal = "external"

const reconcileDelay = 200 * time.Millisecond

// Watch follows writes made to the database file by other processes and
// publishes them as change events until ctx is cancelled.
//
// SQLite in WAL mode touches both the main file and its -wal sibling, so the
// whole directory is watched and events are filtered by file name. Bursts are
// collapsed into one reconciliation pass.
func (s *SQLite) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(s.path)
	if err != nil {
		return err
	}
	dir, base := filepath.Split(abs)
	if err := w.Add(dir); err != nil {
		return err
	}

	s.logger.Info("kvstore: watching", slog.String("path", abs))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			s.logger.Info("kvstore: watch stopped")
			return nil

		case <-reconcileCh:
			s.reconcile()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), base) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("kvstore: watch error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile compares the table with the last known snapshot and publishes
// every difference. Writes made through this handle already updated the
// snapshot and therefore produce nothing here.
func (s *SQLite) reconcile() {
	s.mu.Lock()
	current, err := s.readAll()
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("kvstore: reconcile read failed", slog.String("error", err.Error()))
		return
	}

	changes := make(map[string]Change)
	for k, cur := range current {
		prev, ok := s.snapshot[k]
		if ok && checksum.Matches(prev.sum, cur.value) {
			continue
		}
		changes[k] = Change{OldValue: prev.value, NewValue: cur.value}
	}
	for k, prev := range s.snapshot {
		if _, ok := current[k]; !ok {
			changes[k] = Change{OldValue: prev.value}
		}
	}
	s.snapshot = current
	s.notify.publish(changes, SourceExternal)
	s.mu.Unlock()

	if len(changes) > 0 {
		s.logger.Debug("kvstore: external change", slog.Int("keys", len(changes)))
	}
}

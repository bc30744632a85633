// Package testutil provides shared test helpers for setting up stores and sessions.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/jotpad/internal/kvstore"
	"github.com/starford/jotpad/internal/models"
	"github.com/starford/jotpad/internal/session"
	"github.com/starford/jotpad/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MemoryStore creates an in-memory store holding notes, with the first one
// current. It is closed automatically.
func MemoryStore(t *testing.T, notes ...models.Note) *kvstore.Memory {
	t.Helper()
	store := kvstore.NewMemory()
	t.Cleanup(func() { store.Close() })
	Seed(t, store, notes...)
	return store
}

// SQLiteStore creates a store in a temporary database file.
func SQLiteStore(t *testing.T) *kvstore.SQLite {
	t.Helper()
	store, err := kvstore.OpenSQLite(filepath.Join(t.TempDir(), "jotpad-test.db"), Logger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// Seed writes notes to store, with the first one current. No notes is a no-op.
func Seed(t *testing.T, store kvstore.Store, notes ...models.Note) {
	t.Helper()
	if len(notes) == 0 {
		return
	}
	err := store.Set(context.Background(), map[string]any{
		kvstore.KeyNotes:         notes,
		kvstore.KeyCurrentNoteID: notes[0].ID,
	})
	if err != nil {
		t.Fatal(err)
	}
}

// Session creates and loads a session over store. It is closed before the
// store is.
func Session(t *testing.T, store kvstore.Store, opts ...session.Option) *session.Session {
	t.Helper()
	opts = append([]session.Option{session.WithLogger(Logger())}, opts...)
	sess := session.New(store, opts...)
	if err := sess.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sess.Close(context.Background()) })
	return sess
}

// Exports creates a temporary export directory.
func Exports(t *testing.T) *storage.FS {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return fs
}

// Eventually polls fn until it returns true or the timeout expires.
func Eventually(t *testing.T, timeout time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

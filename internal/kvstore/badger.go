package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/starford/jotpad/internal/apperr"
)

const badgerPrefix = AreaLocal + "/"

// Badger is a Store backed by an embedded BadgerDB directory. Badger holds an
// exclusive lock on its directory, so only one process can use it at a time.
type Badger struct {
	db     *badger.DB
	logger *slog.Logger
	notify *notifier

	// mu orders commits with their change events.
	mu sync.Mutex
}

var _ Store = (*Badger)(nil)

// OpenBadger opens the database in dir. An empty dir keeps everything in memory.
func OpenBadger(dir string, logger *slog.Logger) (*Badger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(dir).
		WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open badger: %w", err)
	}
	return &Badger{
		db:     db,
		logger: logger,
		notify: newNotifier(uuid.NewString()),
	}, nil
}

func badgerKey(k string) []byte {
	return []byte(badgerPrefix + k)
}

// Get implements Store.
func (b *Badger) Get(_ context.Context, keys ...string) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(keys))
	err := b.db.View(func(txn *badger.Txn) error {
		for _, k := range keys {
			item, err := txn.Get(badgerKey(k))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			out[k] = val
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrStoreRead, err)
	}
	return out, nil
}

// Set implements Store.
func (b *Badger) Set(_ context.Context, items map[string]any) error {
	encoded, err := encodeItems(items)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	old := make(map[string]json.RawMessage, len(encoded))
	err = b.db.Update(func(txn *badger.Txn) error {
		for k, v := range encoded {
			item, err := txn.Get(badgerKey(k))
			switch {
			case err == nil:
				prev, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				old[k] = prev
				if bytes.Equal(prev, v) {
					continue
				}
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}
			if err := txn.Set(badgerKey(k), v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrStoreWrite, err)
	}

	b.notify.publish(diff(old, encoded), "")
	return nil
}

// Remove implements Store.
func (b *Badger) Remove(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	changes := make(map[string]Change)
	err := b.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			item, err := txn.Get(badgerKey(k))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			prev, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := txn.Delete(badgerKey(k)); err != nil {
				return err
			}
			changes[k] = Change{OldValue: prev}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", apperr.ErrStoreWrite, err)
	}

	b.notify.publish(changes, "")
	return nil
}

// OnChanged implements Store.
func (b *Badger) OnChanged(fn Listener) func() {
	return b.notify.subscribe(fn)
}

// Close implements Store.
func (b *Badger) Close() error {
	b.notify.close()
	return b.db.Close()
}

// Package kvstore provides the durable key-value area Jotpad persists into,
// with a change-notification stream shared by every instance that opens it.
package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/starford/jotpad/internal/apperr"
)

// AreaLocal is the only storage area Jotpad writes to.
const AreaLocal = "local"

// Persisted keys.
const (
	KeyNotes         = "notes"
	KeyCurrentNoteID = "currentNoteId"
	KeyTheme         = "theme"
)

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// Change is the before/after value of one key. A nil NewValue means the key
// was removed; a nil OldValue means it was created.
type Change struct {
	OldValue json.RawMessage `json:"oldValue,omitempty"`
	NewValue json.RawMessage `json:"newValue,omitempty"`
}

// ChangeEvent is delivered to listeners after one or more keys changed.
type ChangeEvent struct {
	Area    string            `json:"area"`
	Source  string            `json:"source"`
	Changes map[string]Change `json:"changes"`
}

// Has reports whether key is part of the event.
func (e ChangeEvent) Has(key string) bool {
	_, ok := e.Changes[key]
	return ok
}

// Listener receives change events on the store's dispatch goroutine.
type Listener func(ChangeEvent)

// Store is an asynchronous-style key-value area with change notifications.
type Store interface {
	// Get returns the raw JSON of every requested key that exists.
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)
	// Set JSON-encodes and writes all items in one atomic step.
	Set(ctx context.Context, items map[string]any) error
	// Remove deletes keys; missing keys are ignored.
	Remove(ctx context.Context, keys ...string) error
	// OnChanged registers fn and returns a function that unregisters it.
	OnChanged(fn Listener) (unsubscribe func())
	// Close releases the store and stops change delivery.
	Close() error
}

// Open returns a Store for the given driver. path is ignored by the memory driver.
func Open(driver, path string, logger *slog.Logger) (Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemory(), nil
	case DriverSQLite:
		return OpenSQLite(path, logger)
	case DriverBadger:
		return OpenBadger(path, logger)
	default:
		return nil, fmt.Errorf("kvstore: unknown driver %q", driver)
	}
}

// GetJSON decodes the value of key into dst. It reports false when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, dst any) (bool, error) {
	vals, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	raw, ok := vals[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("%w: decode %s: %w", apperr.ErrStoreRead, key, err)
	}
	return true, nil
}

func encodeItems(items map[string]any) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(items))
	for k, v := range items {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: encode %s: %w", apperr.ErrStoreWrite, k, err)
		}
		out[k] = raw
	}
	return out, nil
}

// diff returns the changes needed to go from old to updated for the given keys.
func diff(old map[string]json.RawMessage, updated map[string]json.RawMessage) map[string]Change {
	changes := make(map[string]Change)
	for k, nv := range updated {
		ov, had := old[k]
		if had && bytes.Equal(ov, nv) {
			continue
		}
		changes[k] = Change{OldValue: ov, NewValue: nv}
	}
	return changes
}

package kvstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/jotpad/internal/apperr"
)

// Memory is a process-local Store. Values do not survive a restart.
type Memory struct {
	mu     sync.Mutex
	data   map[string]json.RawMessage
	closed bool
	notify *notifier
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data:   make(map[string]json.RawMessage),
		notify: newNotifier(uuid.NewString()),
	}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, keys ...string) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("%w: %w", apperr.ErrStoreRead, apperr.ErrClosed)
	}
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, items map[string]any) error {
	encoded, err := encodeItems(items)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("%w: %w", apperr.ErrStoreWrite, apperr.ErrClosed)
	}
	changes := diff(m.data, encoded)
	for k, v := range encoded {
		m.data[k] = v
	}
	// Publishing under the lock keeps events in commit order.
	m.notify.publish(changes, "")
	m.mu.Unlock()
	return nil
}

// Remove implements Store.
func (m *Memory) Remove(_ context.Context, keys ...string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("%w: %w", apperr.ErrStoreWrite, apperr.ErrClosed)
	}
	changes := make(map[string]Change)
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			changes[k] = Change{OldValue: v}
			delete(m.data, k)
		}
	}
	m.notify.publish(changes, "")
	m.mu.Unlock()
	return nil
}

// OnChanged implements Store.
func (m *Memory) OnChanged(fn Listener) func() {
	return m.notify.subscribe(fn)
}

// Close implements Store.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.notify.close()
	return nil
}

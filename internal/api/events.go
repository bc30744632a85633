package api

import (
	"slices"

	"github.com/samber/lo"

	"github.com/starford/jotpad/internal/kvstore"
	"github.com/starford/jotpad/internal/models"
	"github.com/starford/jotpad/internal/session"
	"github.com/starford/jotpad/internal/sse"
)

// Events relays session, store and theme updates to SSE clients. It serves
// as the session's View, the theme panel's Document and a store listener.
type Events struct {
	session.NopView
	broker *sse.Broker
}

var _ session.View = (*Events)(nil)

// NewEvents creates a relay publishing to broker.
func NewEvents(broker *sse.Broker) *Events {
	return &Events{broker: broker}
}

// ShowStatus publishes save.status, and note.saved once a save lands.
func (e *Events) ShowStatus(status models.SaveStatus) {
	e.broker.PublishStatus(string(status))
	if status == models.StatusSaved {
		e.broker.Publish(sse.Event{Type: sse.TypeNoteSaved, Data: map[string]string{}})
	}
}

// SetAttribute publishes theme.changed when the theme attribute is set.
func (e *Events) SetAttribute(name, value string) {
	if name != models.ThemeAttribute {
		return
	}
	e.broker.Publish(sse.Event{Type: sse.TypeThemeChanged, Data: map[string]string{"theme": value}})
}

// StorageChanged publishes the keys touched by a store change.
func (e *Events) StorageChanged(ev kvstore.ChangeEvent) {
	keys := lo.Keys(ev.Changes)
	slices.Sort(keys)
	e.broker.Publish(sse.Event{Type: sse.TypeStorageChanged, Data: map[string]any{
		"area":   ev.Area,
		"source": ev.Source,
		"keys":   keys,
	}})
}

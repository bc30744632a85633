package theme

import "sync"

// Attributes is an in-memory Document, the server-side stand-in for the
// root element of the page.
type Attributes struct {
	mu    sync.RWMutex
	attrs map[string]string
	onSet func(name, value string)
}

// NewAttributes returns an empty attribute set. onSet, if non-nil, is called
// after every change.
func NewAttributes(onSet func(name, value string)) *Attributes {
	return &Attributes{attrs: make(map[string]string), onSet: onSet}
}

// SetAttribute implements Document.
func (a *Attributes) SetAttribute(name, value string) {
	a.mu.Lock()
	prev, had := a.attrs[name]
	a.attrs[name] = value
	a.mu.Unlock()
	if a.onSet != nil && (!had || prev != value) {
		a.onSet(name, value)
	}
}

// Attribute returns the value of name.
func (a *Attributes) Attribute(name string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.attrs[name]
}

// Package theme keeps the color scheme preference in sync with the store,
// including changes written by other instances.
package theme

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/samber/lo"

	"github.com/starford/jotpad/internal/kvstore"
	"github.com/starford/jotpad/internal/models"
)

// Document is whatever the theme is applied to.
type Document interface {
	SetAttribute(name, value string)
}

// Panel reads, writes and follows the theme preference.
type Panel struct {
	store  kvstore.Store
	doc    Document
	logger *slog.Logger

	mu      sync.Mutex
	current models.Theme
}

// New creates a panel applying themes to doc.
func New(store kvstore.Store, doc Document, logger *slog.Logger) *Panel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Panel{store: store, doc: doc, logger: logger, current: models.ThemeSystem}
}

// Load reads the stored preference and applies it. An absent value or a
// read failure applies "system".
func (p *Panel) Load(ctx context.Context) models.Theme {
	var t models.Theme
	ok, err := kvstore.GetJSON(ctx, p.store, kvstore.KeyTheme, &t)
	if err != nil {
		p.logger.Error("theme: load failed", slog.String("error", err.Error()))
	}
	if err != nil || !ok || t == "" {
		t = models.ThemeSystem
	}
	p.apply(t)
	return t
}

// Save persists t. The document is updated through the change notification.
func (p *Panel) Save(ctx context.Context, t models.Theme) error {
	if err := p.store.Set(ctx, map[string]any{kvstore.KeyTheme: t}); err != nil {
		p.logger.Error("theme: save failed", slog.String("theme", string(t)), slog.String("error", err.Error()))
		return fmt.Errorf("theme: save: %w", err)
	}
	return nil
}

// Watch applies every change to the theme key until ctx is cancelled.
func (p *Panel) Watch(ctx context.Context) {
	unsubscribe := p.store.OnChanged(p.handleChange)
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
}

// Current returns the last applied theme.
func (p *Panel) Current() models.Theme {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Panel) handleChange(ev kvstore.ChangeEvent) {
	if ev.Area != kvstore.AreaLocal || !ev.Has(kvstore.KeyTheme) {
		return
	}
	change := ev.Changes[kvstore.KeyTheme]
	t := models.ThemeSystem
	if change.NewValue != nil {
		if err := json.Unmarshal(change.NewValue, &t); err != nil {
			p.logger.Warn("theme: bad value in change", slog.String("error", err.Error()))
			return
		}
	}
	p.logger.Debug("theme: changed", slog.String("theme", string(t)), slog.String("source", ev.Source))
	p.apply(t)
}

func (p *Panel) apply(t models.Theme) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = t
	if p.doc != nil {
		p.doc.SetAttribute(models.ThemeAttribute, string(t))
	}
}

// Validate checks t against the values offered by the theme control group.
func Validate(t models.Theme) error {
	return validation.Validate(t,
		validation.Required,
		validation.In(lo.ToAnySlice(models.Themes)...),
	)
}

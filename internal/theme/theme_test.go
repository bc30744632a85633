package theme

import (
	"context"
	"testing"
	"time"

	"github.com/starford/jotpad/internal/kvstore"
	"github.com/starford/jotpad/internal/models"
)

func eventually(t *testing.T, timeout time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error(msg)
}

func newPanel(t *testing.T) (*Panel, *Attributes, *kvstore.Memory) {
	t.Helper()
	store := kvstore.NewMemory()
	t.Cleanup(func() { store.Close() })
	doc := NewAttributes(nil)
	return New(store, doc, nil), doc, store
}

func TestLoad_DefaultsToSystem(t *testing.T) {
	p, doc, _ := newPanel(t)
	if got := p.Load(context.Background()); got != models.ThemeSystem {
		t.Errorf("Load = %q, want system", got)
	}
	if doc.Attribute(models.ThemeAttribute) != "system" {
		t.Errorf("data-theme = %q", doc.Attribute(models.ThemeAttribute))
	}
}

func TestLoad_StoredValue(t *testing.T) {
	p, doc, store := newPanel(t)
	if err := store.Set(context.Background(), map[string]any{kvstore.KeyTheme: "light"}); err != nil {
		t.Fatal(err)
	}
	p.Load(context.Background())
	if doc.Attribute(models.ThemeAttribute) != "light" {
		t.Errorf("data-theme = %q, want light", doc.Attribute(models.ThemeAttribute))
	}
}

func TestLoad_ClosedStoreFallsBack(t *testing.T) {
	p, doc, store := newPanel(t)
	store.Close()
	if got := p.Load(context.Background()); got != models.ThemeSystem {
		t.Errorf("Load = %q, want system", got)
	}
	if doc.Attribute(models.ThemeAttribute) != "system" {
		t.Errorf("data-theme = %q", doc.Attribute(models.ThemeAttribute))
	}
}

func TestWatch_ExternalChangeAppliedLive(t *testing.T) {
	p, doc, store := newPanel(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Load(ctx)
	p.Watch(ctx)

	// A second panel over the same store plays the settings page.
	settings := New(store, nil, nil)
	if err := settings.Save(ctx, models.ThemeDark); err != nil {
		t.Fatalf("Save: %v", err)
	}

	eventually(t, time.Second, func() bool {
		return doc.Attribute(models.ThemeAttribute) == "dark"
	}, "theme change was not applied")
	if p.Current() != models.ThemeDark {
		t.Errorf("Current = %q", p.Current())
	}
}

func TestWatch_RemovedKeyAppliesSystem(t *testing.T) {
	p, doc, store := newPanel(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = store.Set(ctx, map[string]any{kvstore.KeyTheme: "dark"})
	p.Load(ctx)
	p.Watch(ctx)

	if err := store.Remove(ctx, kvstore.KeyTheme); err != nil {
		t.Fatal(err)
	}
	eventually(t, time.Second, func() bool {
		return doc.Attribute(models.ThemeAttribute) == "system"
	}, "removal did not reset theme")
}

func TestWatch_IgnoresOtherKeys(t *testing.T) {
	p, doc, store := newPanel(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Load(ctx)
	changes := 0
	doc.onSet = func(string, string) { changes++ }
	p.Watch(ctx)

	_ = store.Set(ctx, map[string]any{kvstore.KeyCurrentNoteID: "1"})
	time.Sleep(50 * time.Millisecond)
	if changes != 0 {
		t.Errorf("unexpected theme updates: %d", changes)
	}
}

func TestValidate(t *testing.T) {
	for _, ok := range []models.Theme{"system", "light", "dark"} {
		if err := Validate(ok); err != nil {
			t.Errorf("Validate(%q) = %v", ok, err)
		}
	}
	for _, bad := range []models.Theme{"", "sepia"} {
		if err := Validate(bad); err == nil {
			t.Errorf("Validate(%q) should fail", bad)
		}
	}
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/jotpad/internal/apperr"
	"github.com/starford/jotpad/internal/kvstore"
	"github.com/starford/jotpad/internal/models"
)

// countingStore wraps a memory store, counting writes and injecting failures.
type countingStore struct {
	*kvstore.Memory

	mu      sync.Mutex
	sets    int
	failGet bool
	failSet bool
}

func newCountingStore(t *testing.T) *countingStore {
	t.Helper()
	m := kvstore.NewMemory()
	t.Cleanup(func() { m.Close() })
	return &countingStore{Memory: m}
}

func (c *countingStore) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	c.mu.Lock()
	fail := c.failGet
	c.mu.Unlock()
	if fail {
		return nil, errBoom
	}
	return c.Memory.Get(ctx, keys...)
}

func (c *countingStore) Set(ctx context.Context, items map[string]any) error {
	c.mu.Lock()
	c.sets++
	fail := c.failSet
	c.mu.Unlock()
	if fail {
		return errBoom
	}
	return c.Memory.Set(ctx, items)
}

func (c *countingStore) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func seed(t *testing.T, store kvstore.Store, notes []models.Note, current string) {
	t.Helper()
	require.NoError(t, store.Set(context.Background(), map[string]any{
		kvstore.KeyNotes:         notes,
		kvstore.KeyCurrentNoteID: current,
	}))
}

func loaded(t *testing.T, store kvstore.Store, opts ...Option) *Session {
	t.Helper()
	s := New(store, append([]Option{WithClock(fixedClock())}, opts...)...)
	require.NoError(t, s.Load(context.Background()))
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func threeNotes() []models.Note {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return []models.Note{
		{ID: "1", Title: "A", Content: "a", CreatedAt: ts, UpdatedAt: ts},
		{ID: "2", Title: "B", Content: "b", CreatedAt: ts, UpdatedAt: ts},
		{ID: "3", Title: "C", Content: "c", CreatedAt: ts, UpdatedAt: ts},
	}
}

func TestLoad_EmptyStoreCreatesAndPersistsDefault(t *testing.T) {
	store := newCountingStore(t)
	s := loaded(t, store)

	notes := s.Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, models.DefaultTitle, notes[0].Title)
	assert.Empty(t, notes[0].Content)
	assert.Equal(t, notes[0].ID, s.CurrentNoteID())
	assert.Equal(t, 1, store.setCount())
	assert.Equal(t, models.StatusSaved, s.Status())

	var persisted []models.Note
	ok, err := kvstore.GetJSON(context.Background(), store, kvstore.KeyNotes, &persisted)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, notes, persisted)
}

func TestLoad_ReadFailureFallsBackWithoutPersisting(t *testing.T) {
	store := newCountingStore(t)
	store.failGet = true

	s := loaded(t, store)

	require.Len(t, s.Notes(), 1)
	assert.Equal(t, s.Notes()[0].ID, s.CurrentNoteID())
	assert.Zero(t, store.setCount())
}

func TestLoad_UnknownCurrentFallsBackToFirst(t *testing.T) {
	store := newCountingStore(t)
	seed(t, store, threeNotes(), "missing")

	s := loaded(t, store)
	assert.Equal(t, "1", s.CurrentNoteID())
}

func TestLoad_DefaultTitleShowsBlankEditorTitle(t *testing.T) {
	store := newCountingStore(t)
	notes := threeNotes()
	notes[1].Title = models.DefaultTitle
	seed(t, store, notes, "2")

	s := loaded(t, store)
	title, content := s.Editor()
	assert.Empty(t, title)
	assert.Equal(t, "b", content)
}

func TestAddNote_PrependsAndBecomesCurrent(t *testing.T) {
	store := newCountingStore(t)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seed(t, store, []models.Note{{ID: "1", Title: "A", Content: "hi", CreatedAt: ts, UpdatedAt: ts}}, "1")

	view := &recordingView{}
	s := loaded(t, store, WithView(view))

	n, err := s.AddNote(context.Background())
	require.NoError(t, err)

	notes := s.Notes()
	require.Len(t, notes, 2)
	assert.Equal(t, n.ID, notes[0].ID)
	assert.Equal(t, "1", notes[1].ID)
	assert.Equal(t, n.ID, s.CurrentNoteID())

	items := view.lastList()
	require.Len(t, items, 2)
	assert.True(t, items[0].Active)
	assert.False(t, items[1].Active)
	assert.Equal(t, "Empty note", items[0].Preview)
	assert.Equal(t, "hi", items[1].Preview)
	assert.Equal(t, 1, view.focusCount())
}

func TestAddNote_CommitsPendingEdit(t *testing.T) {
	store := newCountingStore(t)
	seed(t, store, threeNotes(), "1")
	s := loaded(t, store, WithSaveDelay(time.Hour))

	s.Edit("A2", "typed")
	_, err := s.AddNote(context.Background())
	require.NoError(t, err)

	notes := s.Notes()
	assert.Equal(t, "A2", notes[1].Title)
	assert.Equal(t, "typed", notes[1].Content)
}

func TestCreateNote_UniqueIDsUnderFrozenClock(t *testing.T) {
	s := loaded(t, newCountingStore(t))

	seen := map[string]bool{s.CurrentNoteID(): true}
	for i := 0; i < 100; i++ {
		n := s.CreateNote()
		require.False(t, seen[n.ID], "duplicate id %s", n.ID)
		seen[n.ID] = true
		assert.Equal(t, models.DefaultTitle, n.Title)
		assert.Equal(t, n.CreatedAt, n.UpdatedAt)
	}
}

func TestCreateNote_AvoidsLoadedIDs(t *testing.T) {
	store := newCountingStore(t)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	future := fixedClock()().UnixMilli() + 5
	seed(t, store, []models.Note{{ID: itoa(future), Title: "F", CreatedAt: ts, UpdatedAt: ts}}, itoa(future))

	s := loaded(t, store)
	n := s.CreateNote()
	assert.NotEqual(t, itoa(future), n.ID)
}

func TestDeleteCurrentNote_OnlyNoteIsCleared(t *testing.T) {
	store := newCountingStore(t)
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seed(t, store, []models.Note{{ID: "1", Title: "A", Content: "hi", CreatedAt: ts, UpdatedAt: ts}}, "1")
	s := loaded(t, store)

	confirmCalled := false
	err := s.DeleteCurrentNote(context.Background(), func(string) bool {
		confirmCalled = true
		return false
	})
	require.NoError(t, err)
	assert.False(t, confirmCalled)

	notes := s.Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, "1", notes[0].ID)
	assert.Equal(t, models.DefaultTitle, notes[0].Title)
	assert.Empty(t, notes[0].Content)
	title, content := s.Editor()
	assert.Empty(t, title)
	assert.Empty(t, content)
}

func TestDeleteCurrentNote_MiddleSelectsSameIndex(t *testing.T) {
	store := newCountingStore(t)
	seed(t, store, threeNotes(), "2")
	s := loaded(t, store)

	require.NoError(t, s.DeleteCurrentNote(context.Background(), Always))
	assert.Equal(t, "3", s.CurrentNoteID())
	assert.Len(t, s.Notes(), 2)
}

func TestDeleteCurrentNote_LastSelectsNewLast(t *testing.T) {
	store := newCountingStore(t)
	seed(t, store, threeNotes(), "3")
	s := loaded(t, store)

	require.NoError(t, s.DeleteCurrentNote(context.Background(), Always))
	assert.Equal(t, "2", s.CurrentNoteID())
}

func TestDeleteCurrentNote_RefusedLeavesStateAlone(t *testing.T) {
	store := newCountingStore(t)
	seed(t, store, threeNotes(), "2")
	s := loaded(t, store)
	before := store.setCount()

	err := s.DeleteCurrentNote(context.Background(), Never)
	require.ErrorIs(t, err, apperr.ErrNotConfirmed)
	assert.Len(t, s.Notes(), 3)
	assert.Equal(t, "2", s.CurrentNoteID())
	assert.Equal(t, before, store.setCount())

	require.ErrorIs(t, s.DeleteCurrentNote(context.Background(), nil), apperr.ErrNotConfirmed)
}

func TestAddDeleteSequences_KeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := loaded(t, newCountingStore(t))
	ctx := context.Background()

	for i := 0; i < 300; i++ {
		switch rng.Intn(3) {
		case 0:
			_, err := s.AddNote(ctx)
			require.NoError(t, err)
		case 1:
			require.NoError(t, s.DeleteCurrentNote(ctx, Always))
		case 2:
			notes := s.Notes()
			require.NoError(t, s.SwitchNote(ctx, notes[rng.Intn(len(notes))].ID))
		}

		notes := s.Notes()
		require.NotEmpty(t, notes)
		found := false
		for _, n := range notes {
			if n.ID == s.CurrentNoteID() {
				found = true
				break
			}
		}
		require.True(t, found, "current %s not in list", s.CurrentNoteID())
	}
}

func TestSwitchNote_CommitsEditsAndLoadsTarget(t *testing.T) {
	store := newCountingStore(t)
	seed(t, store, threeNotes(), "1")
	s := loaded(t, store, WithSaveDelay(time.Hour))

	s.Edit("  ", "changed")
	require.NoError(t, s.SwitchNote(context.Background(), "3"))

	notes := s.Notes()
	assert.Equal(t, models.DefaultTitle, notes[0].Title)
	assert.Equal(t, "changed", notes[0].Content)
	assert.Equal(t, "3", s.CurrentNoteID())
	title, content := s.Editor()
	assert.Equal(t, "C", title)
	assert.Equal(t, "c", content)
}

func TestSwitchNote_UnknownID(t *testing.T) {
	store := newCountingStore(t)
	seed(t, store, threeNotes(), "1")
	s := loaded(t, store)

	err := s.SwitchNote(context.Background(), "nope")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "1", s.CurrentNoteID())
}

func TestEdit_BurstProducesSingleSave(t *testing.T) {
	store := newCountingStore(t)
	seed(t, store, threeNotes(), "1")
	view := &recordingView{}
	s := loaded(t, store, WithSaveDelay(50*time.Millisecond), WithView(view))
	before := store.setCount()

	for i := 0; i < 20; i++ {
		s.Edit("Draft", "word "+itoa(int64(i)))
	}
	assert.Equal(t, models.StatusSaving, s.Status())
	assert.Equal(t, "2 words", view.lastStats().WordLabel)

	require.Eventually(t, func() bool { return s.Status() == models.StatusSaved }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, before+1, store.setCount())

	var persisted []models.Note
	_, err := kvstore.GetJSON(context.Background(), store, kvstore.KeyNotes, &persisted)
	require.NoError(t, err)
	assert.Equal(t, "Draft", persisted[0].Title)
	assert.Equal(t, "word 19", persisted[0].Content)
}

func TestSave_WriteFailureSetsErrorStatus(t *testing.T) {
	store := newCountingStore(t)
	seed(t, store, threeNotes(), "1")
	s := loaded(t, store)
	store.mu.Lock()
	store.failSet = true
	store.mu.Unlock()

	err := s.Save(context.Background())
	require.ErrorIs(t, err, apperr.ErrStoreWrite)
	assert.Equal(t, models.StatusError, s.Status())
	assert.Equal(t, "Error saving", s.Status().Label())
}

func TestPersistThenReload_IdenticalState(t *testing.T) {
	store := newCountingStore(t)
	ctx := context.Background()
	s := loaded(t, store)
	_, err := s.AddNote(ctx)
	require.NoError(t, err)
	s.Edit("Groceries", "eggs\nmilk")
	require.NoError(t, s.Save(ctx))

	reloaded := loaded(t, store)
	assert.Equal(t, s.Notes(), reloaded.Notes())
	assert.Equal(t, s.CurrentNoteID(), reloaded.CurrentNoteID())
}

func TestExportCurrentNote(t *testing.T) {
	store := newCountingStore(t)
	seed(t, store, threeNotes(), "2")
	s := loaded(t, store)

	exp, err := s.ExportCurrentNote()
	require.NoError(t, err)
	assert.Equal(t, "B.txt", exp.Filename)
	assert.Equal(t, "text/plain", exp.MIMEType)
	assert.Equal(t, []byte("b"), exp.Content)
}

func TestClose_FlushesPendingEdit(t *testing.T) {
	store := newCountingStore(t)
	seed(t, store, threeNotes(), "1")
	s := New(store, WithSaveDelay(time.Hour))
	require.NoError(t, s.Load(context.Background()))

	s.Edit("A", "late")
	require.NoError(t, s.Close(context.Background()))

	var persisted []models.Note
	_, err := kvstore.GetJSON(context.Background(), store, kvstore.KeyNotes, &persisted)
	require.NoError(t, err)
	assert.Equal(t, "late", persisted[0].Content)
}

func TestCountStats(t *testing.T) {
	assert.Equal(t, models.Stats{Characters: 0, Words: 0, CharLabel: "0 characters", WordLabel: "0 words"}, CountStats(""))
	assert.Equal(t, "1 character", CountStats("a").CharLabel)
	assert.Equal(t, "1 word", CountStats("  a  ").WordLabel)
	assert.Equal(t, 3, CountStats("one two\nthree").Words)
	assert.Equal(t, 2, CountStats("hé").Characters)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "Empty note", preview("", 50))
	assert.Equal(t, "abc", preview("abcdef", 3))
	assert.Equal(t, "ééé", preview("éééé", 3))
}

var errBoom = errors.New("boom")

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

type recordingView struct {
	mu     sync.Mutex
	list   []models.ListItem
	stats  models.Stats
	focus  int
	status []models.SaveStatus
}

func (v *recordingView) RenderList(items []models.ListItem) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.list = items
}

func (v *recordingView) LoadEditor(string, string) {}

func (v *recordingView) ShowStats(st models.Stats) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stats = st
}

func (v *recordingView) ShowStatus(st models.SaveStatus) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status = append(v.status, st)
}

func (v *recordingView) FocusTitle() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.focus++
}

func (v *recordingView) lastList() []models.ListItem {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.list
}

func (v *recordingView) lastStats() models.Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}

func (v *recordingView) focusCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.focus
}

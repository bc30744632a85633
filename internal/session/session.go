// Package session owns the notes editor state: the ordered note list, the
// current note, the live editor fields and the pending auto-save.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/starford/jotpad/internal/apperr"
	"github.com/starford/jotpad/internal/kvstore"
	"github.com/starford/jotpad/internal/models"
)

const deletePrompt = "Are you sure you want to delete this note?"

// Session is one editor instance bound to a store.
//
// Invariants: notes is never empty after Load, and currentID always names a
// member of notes.
type Session struct {
	store      kvstore.Store
	view       View
	logger     *slog.Logger
	saveDelay  time.Duration
	previewLen int
	now        func() time.Time

	mu            sync.Mutex
	notes         []models.Note
	currentID     string
	editorTitle   string
	editorContent string
	status        models.SaveStatus
	lastID        int64

	// pending is the scheduled auto-save; pendingGen invalidates a timer
	// that already fired but has not acquired the lock yet.
	pending    *time.Timer
	pendingGen uint64
	closed     bool
}

// New creates a session over store. Call Load before using it.
func New(store kvstore.Store, opts ...Option) *Session {
	s := &Session{
		store:      store,
		view:       NopView{},
		logger:     slog.Default(),
		saveDelay:  DefaultSaveDelay,
		previewLen: DefaultPreviewLength,
		now:        time.Now,
		status:     models.StatusIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the persisted notes. With nothing stored it creates and
// persists one default note. A read failure falls back to an in-memory
// default note that is not persisted.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var notes []models.Note
	var currentID string
	vals, err := s.store.Get(ctx, kvstore.KeyNotes, kvstore.KeyCurrentNoteID)
	if err == nil {
		notes, currentID, err = decodeState(vals)
	}
	if err != nil {
		s.logger.Error("session: load failed", slog.String("error", err.Error()))
		n := s.createLocked()
		s.notes = []models.Note{n}
		s.currentID = n.ID
		s.loadEditorLocked()
		return nil
	}

	s.seedIDs(notes)
	if len(notes) == 0 {
		n := s.createLocked()
		s.notes = []models.Note{n}
		s.currentID = n.ID
		s.loadEditorLocked()
		return s.persistLocked(ctx)
	}

	s.notes = notes
	s.currentID = currentID
	if !s.hasLocked(currentID) {
		s.currentID = notes[0].ID
	}
	s.loadEditorLocked()
	s.logger.Debug("session: loaded", slog.Int("notes", len(notes)), slog.String("current", s.currentID))
	return nil
}

// CreateNote returns a fresh note without adding it to the list.
func (s *Session) CreateNote() models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked()
}

// AddNote prepends a new note, makes it current and persists.
// Unsaved edits to the previous note are committed first.
func (s *Session) AddNote(ctx context.Context) (models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelPendingLocked() {
		s.updateCurrentLocked()
	}
	n := s.createLocked()
	s.notes = slices.Insert(s.notes, 0, n)
	s.currentID = n.ID

	s.loadEditorLocked()
	err := s.persistLocked(ctx)
	s.view.FocusTitle()
	return n, err
}

// UpdateCurrentNote copies the editor fields into the current note.
func (s *Session) UpdateCurrentNote() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCurrentLocked()
}

// SwitchNote commits edits to the current note and makes id current.
func (s *Session) SwitchNote(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasLocked(id) {
		return fmt.Errorf("session: switch to %q: %w", id, apperr.ErrNotFound)
	}
	s.cancelPendingLocked()
	s.updateCurrentLocked()
	s.currentID = id
	s.loadEditorLocked()
	return s.persistLocked(ctx)
}

// DeleteCurrentNote removes the current note after confirmation. The last
// remaining note is cleared instead, without asking. Refusal returns
// apperr.ErrNotConfirmed and leaves everything untouched.
func (s *Session) DeleteCurrentNote(ctx context.Context, confirm Confirmer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.notes) == 1 {
		s.cancelPendingLocked()
		s.notes[0].Title = models.DefaultTitle
		s.notes[0].Content = ""
		s.editorTitle = ""
		s.editorContent = ""
		s.view.LoadEditor("", "")
		s.view.ShowStats(CountStats(""))
		s.renderLocked()
		return s.persistLocked(ctx)
	}

	if confirm == nil || !confirm(deletePrompt) {
		return apperr.ErrNotConfirmed
	}

	_, idx, ok := lo.FindIndexOf(s.notes, func(n models.Note) bool { return n.ID == s.currentID })
	if !ok {
		return fmt.Errorf("session: current note %q: %w", s.currentID, apperr.ErrNotFound)
	}
	s.cancelPendingLocked()
	deleted := s.currentID
	s.notes = lo.Filter(s.notes, func(n models.Note, _ int) bool { return n.ID != deleted })

	next := idx
	if next >= len(s.notes) {
		next = len(s.notes) - 1
	}
	s.currentID = s.notes[next].ID

	s.loadEditorLocked()
	s.logger.Debug("session: note deleted", slog.String("id", deleted), slog.String("current", s.currentID))
	return s.persistLocked(ctx)
}

// ExportCurrentNote returns the current note's content as a text file.
func (s *Session) ExportCurrentNote() (models.Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.currentLocked()
	if !ok {
		return models.Export{}, apperr.ErrNotFound
	}
	return models.Export{
		Filename: n.Title + ".txt",
		MIMEType: "text/plain",
		Content:  []byte(n.Content),
	}, nil
}

// Edit records the editor's live title and content, refreshes the counters
// and (re)schedules the auto-save. Only the last edit of a burst is saved.
func (s *Session) Edit(title, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.editorTitle = title
	s.editorContent = content
	s.view.ShowStats(CountStats(content))
	s.setStatusLocked(models.StatusSaving)

	s.cancelPendingLocked()
	s.pendingGen++
	gen := s.pendingGen
	s.pending = time.AfterFunc(s.saveDelay, func() { s.autoSave(gen) })
}

// Save commits the editor fields and persists immediately.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelPendingLocked()
	s.updateCurrentLocked()
	s.renderLocked()
	return s.persistLocked(ctx)
}

// Close flushes a pending auto-save and stops the session.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.cancelPendingLocked() {
		s.updateCurrentLocked()
		return s.persistLocked(ctx)
	}
	return nil
}

// Notes returns a copy of the note list in display order.
func (s *Session) Notes() []models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.notes)
}

// CurrentNoteID returns the id of the current note.
func (s *Session) CurrentNoteID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// CurrentNote returns the current note record.
func (s *Session) CurrentNote() (models.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

// Editor returns the live editor fields.
func (s *Session) Editor() (title, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editorTitle, s.editorContent
}

// Stats returns the counters for the editor content.
func (s *Session) Stats() models.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CountStats(s.editorContent)
}

// Status returns the save indicator state.
func (s *Session) Status() models.SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// List returns the rendered note list.
func (s *Session) List() []models.ListItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listLocked()
}

func (s *Session) autoSave(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.pendingGen || s.pending == nil {
		return
	}
	s.pending = nil
	s.updateCurrentLocked()
	s.renderLocked()
	_ = s.persistLocked(context.Background())
}

// cancelPendingLocked stops the scheduled auto-save and reports whether one was pending.
func (s *Session) cancelPendingLocked() bool {
	if s.pending == nil {
		return false
	}
	s.pending.Stop()
	s.pending = nil
	s.pendingGen++
	return true
}

func (s *Session) createLocked() models.Note {
	now := s.now()
	id := now.UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	for s.hasLocked(strconv.FormatInt(id, 10)) {
		id++
	}
	s.lastID = id
	return models.Note{
		ID:        strconv.FormatInt(id, 10),
		Title:     models.DefaultTitle,
		Content:   "",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// seedIDs makes sure generated ids sort after every numeric id already stored.
func (s *Session) seedIDs(notes []models.Note) {
	for _, n := range notes {
		if v, err := strconv.ParseInt(n.ID, 10, 64); err == nil && v > s.lastID {
			s.lastID = v
		}
	}
}

func (s *Session) updateCurrentLocked() {
	i := s.indexLocked(s.currentID)
	if i < 0 {
		return
	}
	title := strings.TrimSpace(s.editorTitle)
	if title == "" {
		title = models.DefaultTitle
	}
	s.notes[i].Title = title
	s.notes[i].Content = s.editorContent
	s.notes[i].UpdatedAt = s.now()
}

// loadEditorLocked copies the current note into the editor fields. A note
// still carrying the default title shows an empty title field.
func (s *Session) loadEditorLocked() {
	n, ok := s.currentLocked()
	if !ok {
		return
	}
	s.editorTitle = n.Title
	if n.Title == models.DefaultTitle {
		s.editorTitle = ""
	}
	s.editorContent = n.Content
	s.view.LoadEditor(s.editorTitle, s.editorContent)
	s.view.ShowStats(CountStats(s.editorContent))
	s.renderLocked()
}

func (s *Session) persistLocked(ctx context.Context) error {
	err := s.store.Set(ctx, map[string]any{
		kvstore.KeyNotes:         s.notes,
		kvstore.KeyCurrentNoteID: s.currentID,
	})
	if err != nil {
		s.logger.Error("session: save failed", slog.String("error", err.Error()))
		s.setStatusLocked(models.StatusError)
		if !errors.Is(err, apperr.ErrStoreWrite) {
			err = fmt.Errorf("%w: %w", apperr.ErrStoreWrite, err)
		}
		return err
	}
	s.setStatusLocked(models.StatusSaved)
	return nil
}

func (s *Session) setStatusLocked(st models.SaveStatus) {
	s.status = st
	s.view.ShowStatus(st)
}

func (s *Session) renderLocked() {
	s.view.RenderList(s.listLocked())
}

func (s *Session) listLocked() []models.ListItem {
	return lo.Map(s.notes, func(n models.Note, _ int) models.ListItem {
		return models.ListItem{
			ID:      n.ID,
			Title:   n.Title,
			Preview: preview(n.Content, s.previewLen),
			Active:  n.ID == s.currentID,
		}
	})
}

func (s *Session) currentLocked() (models.Note, bool) {
	return lo.Find(s.notes, func(n models.Note) bool { return n.ID == s.currentID })
}

func (s *Session) indexLocked(id string) int {
	return slices.IndexFunc(s.notes, func(n models.Note) bool { return n.ID == id })
}

func (s *Session) hasLocked(id string) bool {
	return id != "" && s.indexLocked(id) >= 0
}

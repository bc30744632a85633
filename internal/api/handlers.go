package api

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jotpad/internal/apperr"
	"github.com/starford/jotpad/internal/session"
	"github.com/starford/jotpad/internal/theme"
)

// Handler holds API route handlers.
type Handler struct {
	sess   *session.Session
	panel  *theme.Panel
	logger *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(sess *session.Session, panel *theme.Panel, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{sess: sess, panel: panel, logger: logger}
}

func (h *Handler) current() CurrentNoteResponse {
	note, _ := h.sess.CurrentNote()
	title, content := h.sess.Editor()
	status := h.sess.Status()
	return CurrentNoteResponse{
		Note:        note,
		Title:       title,
		Content:     content,
		Stats:       h.sess.Stats(),
		Status:      status,
		StatusLabel: status.Label(),
	}
}

// logStoreWrite reports a failed write. The session already shows the error
// status, and the in-memory change stands, so the request still succeeds.
func (h *Handler) logStoreWrite(op string, err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, apperr.ErrStoreWrite) {
		h.logger.Warn("api: "+op+" not persisted", slog.String("error", err.Error()))
		return true
	}
	return false
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes, most recent first
//	@Tags			notes
//	@Produce		json
//	@Success		200		{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, NoteListResponse{
		Notes:         h.sess.List(),
		CurrentNoteID: h.sess.CurrentNoteID(),
	})
}

// AddNote handles POST /api/notes.
//
//	@Summary		Add an empty note and make it current
//	@Tags			notes
//	@Produce		json
//	@Success		201		{object}	CurrentNoteResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	_, err := h.sess.AddNote(r.Context())
	if !h.logStoreWrite("add note", err) {
		h.logger.Error("api: add note failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, h.current())
}

// SwitchNote handles POST /api/notes/{id}/switch.
//
//	@Summary		Make another note current
//	@Tags			notes
//	@Produce		json
//	@Param			id		path		string	true	"Note id"
//	@Success		200		{object}	CurrentNoteResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/switch [post]
func (h *Handler) SwitchNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.sess.SwitchNote(r.Context(), id)
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	if !h.logStoreWrite("switch note", err) {
		h.logger.Error("api: switch note failed", slog.String("id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, h.current())
}

// GetCurrent handles GET /api/notes/current.
//
//	@Summary		Get the editor pane
//	@Tags			editor
//	@Produce		json
//	@Success		200		{object}	CurrentNoteResponse
//	@Security		BearerAuth
//	@Router			/notes/current [get]
func (h *Handler) GetCurrent(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.current())
}

// EditCurrent handles PUT /api/notes/current.
//
//	@Summary		Record editor input; saved after the quiet period
//	@Tags			editor
//	@Accept			json
//	@Produce		json
//	@Param			body	body		EditRequest	true	"Editor fields"
//	@Success		202		{object}	CurrentNoteResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/current [put]
func (h *Handler) EditCurrent(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if !readJSON(w, r, &req) {
		return
	}
	h.sess.Edit(req.Title, req.Content)
	writeJSON(w, http.StatusAccepted, h.current())
}

// SaveCurrent handles POST /api/notes/current/save.
//
//	@Summary		Save the editor immediately
//	@Tags			editor
//	@Produce		json
//	@Success		200		{object}	CurrentNoteResponse
//	@Failure		500		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/current/save [post]
func (h *Handler) SaveCurrent(w http.ResponseWriter, r *http.Request) {
	if err := h.sess.Save(r.Context()); err != nil {
		h.logger.Error("api: save failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("save failed"))
		return
	}
	writeJSON(w, http.StatusOK, h.current())
}

// DeleteCurrent handles DELETE /api/notes/current.
//
//	@Summary		Delete the current note
//	@Description	Deleting one of several notes requires confirm=true. The only note is cleared instead.
//	@Tags			editor
//	@Produce		json
//	@Param			confirm	query		bool	false	"Confirm deletion"
//	@Success		200		{object}	CurrentNoteResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/current [delete]
func (h *Handler) DeleteCurrent(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	confirm := session.Never
	if confirmed {
		confirm = session.Always
	}
	err := h.sess.DeleteCurrentNote(r.Context(), confirm)
	if errors.Is(err, apperr.ErrNotConfirmed) {
		writeJSON(w, http.StatusConflict, errorBody("confirmation required"))
		return
	}
	if !h.logStoreWrite("delete note", err) {
		h.logger.Error("api: delete note failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, h.current())
}

// ExportCurrent handles GET /api/notes/current/export.
//
//	@Summary		Download the current note as a text file
//	@Tags			editor
//	@Produce		plain
//	@Success		200		{string}	string	"Note content"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/current/export [get]
func (h *Handler) ExportCurrent(w http.ResponseWriter, _ *http.Request) {
	exp, err := h.sess.ExportCurrentNote()
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.Header().Set("Content-Type", exp.MIMEType)
	w.Header().Set("Content-Disposition", contentDisposition(exp.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(exp.Content)
}

// GetTheme handles GET /api/theme.
//
//	@Summary		Get the applied theme
//	@Tags			theme
//	@Produce		json
//	@Success		200		{object}	ThemeResponse
//	@Security		BearerAuth
//	@Router			/theme [get]
func (h *Handler) GetTheme(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ThemeResponse{Theme: h.panel.Current()})
}

// SetTheme handles PUT /api/theme.
//
//	@Summary		Store the theme preference
//	@Tags			theme
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ThemeRequest	true	"Theme"
//	@Success		200		{object}	ThemeResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/theme [put]
func (h *Handler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := theme.Validate(req.Theme); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("theme: "+err.Error()))
		return
	}
	if err := h.panel.Save(r.Context(), req.Theme); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, ThemeResponse{Theme: req.Theme})
}

// contentDisposition builds an attachment header. Non-ASCII names get an
// RFC 6266 filename* parameter next to an ASCII fallback.
func contentDisposition(name string) string {
	ascii := strings.Map(func(r rune) rune {
		if r >= utf8.RuneSelf || r < 0x20 {
			return '_'
		}
		return r
	}, name)
	disp := mime.FormatMediaType("attachment", map[string]string{"filename": ascii})
	if ascii == name {
		return disp
	}
	ext := mime.FormatMediaType("attachment", map[string]string{"filename": name})
	return disp + "; " + strings.TrimPrefix(ext, "attachment; ")
}

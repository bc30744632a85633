package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/jotpad/internal/session"
	"github.com/starford/jotpad/internal/theme"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(sess *session.Session, panel *theme.Panel, logger *slog.Logger, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(sess, panel, logger)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.AddNote)
	r.Post("/notes/{id}/switch", h.SwitchNote)

	// Current note editor.
	r.Get("/notes/current", h.GetCurrent)
	r.Put("/notes/current", h.EditCurrent)
	r.Delete("/notes/current", h.DeleteCurrent)
	r.Post("/notes/current/save", h.SaveCurrent)
	r.Get("/notes/current/export", h.ExportCurrent)

	// Theme.
	r.Get("/theme", h.GetTheme)
	r.Put("/theme", h.SetTheme)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

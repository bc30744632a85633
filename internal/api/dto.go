package api

import (
	"github.com/starford/jotpad/internal/models"
)

// NoteListResponse is the rendered note list.
type NoteListResponse struct {
	Notes         []models.ListItem `json:"notes" validate:"required"`
	CurrentNoteID string            `json:"currentNoteId" example:"1760875200000" validate:"required"`
}

// EditRequest carries the editor's live fields.
type EditRequest struct {
	Title   string `json:"title" example:"Groceries"`
	Content string `json:"content" example:"milk, eggs"`
}

// CurrentNoteResponse describes the editor pane.
type CurrentNoteResponse struct {
	Note        models.Note       `json:"note" validate:"required"`
	Title       string            `json:"title" example:"Groceries"`
	Content     string            `json:"content" example:"milk, eggs"`
	Stats       models.Stats      `json:"stats" validate:"required"`
	Status      models.SaveStatus `json:"status" example:"saved" enums:"idle,saving,saved,error"`
	StatusLabel string            `json:"statusLabel" example:"Saved"`
}

// ThemeRequest is the body of PUT /api/theme.
type ThemeRequest struct {
	Theme models.Theme `json:"theme" example:"dark" enums:"system,light,dark" validate:"required"`
}

// ThemeResponse reports the applied theme.
type ThemeResponse struct {
	Theme models.Theme `json:"theme" example:"dark" validate:"required"`
}

// Package models defines the domain types for Jotpad.
package models

import "time"

// DefaultTitle is shown for notes whose title is blank.
const DefaultTitle = "Untitled Note"

// Note is a single user-authored record. Field names match the persisted
// layout of the "notes" key.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListItem is one row of the rendered note list.
type ListItem struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Preview string `json:"preview"`
	Active  bool   `json:"active"`
}

// Stats holds the live counters shown under the editor.
type Stats struct {
	Characters int    `json:"characters"`
	Words      int    `json:"words"`
	CharLabel  string `json:"charLabel"`
	WordLabel  string `json:"wordLabel"`
}

// SaveStatus is the state of the save indicator.
type SaveStatus string

const (
	StatusIdle   SaveStatus = "idle"
	StatusSaving SaveStatus = "saving"
	StatusSaved  SaveStatus = "saved"
	StatusError  SaveStatus = "error"
)

// Label returns the text displayed by the save indicator.
func (s SaveStatus) Label() string {
	switch s {
	case StatusSaving:
		return "Saving..."
	case StatusSaved:
		return "Saved"
	case StatusError:
		return "Error saving"
	default:
		return ""
	}
}

// Export is a plain-text download of a note.
type Export struct {
	Filename string
	MIMEType string
	Content  []byte
}

package session

import "github.com/starford/jotpad/internal/models"

// View reflects session state. Methods are called with the session lock
// held and must not call back into the Session.
type View interface {
	RenderList(items []models.ListItem)
	LoadEditor(title, content string)
	ShowStats(stats models.Stats)
	ShowStatus(status models.SaveStatus)
	FocusTitle()
}

// NopView ignores every update.
type NopView struct{}

func (NopView) RenderList([]models.ListItem) {}
func (NopView) LoadEditor(string, string) {}
func (NopView) ShowStats(models.Stats) {}
func (NopView) ShowStatus(models.SaveStatus) {}
func (NopView) FocusTitle() {}

// Confirmer asks the user a yes/no question.
type Confirmer func(prompt string) bool

// Always is a Confirmer that approves everything.
func Always(string) bool { return true }

// Never is a Confirmer that refuses everything.
func Never(string) bool { return false }

package internal

import (
	"io"

	"github.com/starford/jotpad/internal/session"
	"github.com/starford/jotpad/internal/theme"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput io.Writer
	view      session.View
	document  theme.Document
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput sets where structured logs are written.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithView sets the view notified of session changes.
func WithView(v session.View) Option {
	return func(a *application) {
		a.view = v
	}
}

// WithDocument sets what the theme is applied to.
func WithDocument(d theme.Document) Option {
	return func(a *application) {
		a.document = d
	}
}

package session

import (
	"log/slog"
	"time"
)

// DefaultSaveDelay is the quiet period between the last edit and auto-save.
const DefaultSaveDelay = 500 * time.Millisecond

// DefaultPreviewLength is the number of characters shown under a list title.
const DefaultPreviewLength = 50

// Option is a functional option for configuring a Session.
type Option func(*Session)

// WithView sets the view notified of every state change.
func WithView(v View) Option {
	return func(s *Session) {
		if v != nil {
			s.view = v
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSaveDelay overrides the auto-save quiet period.
func WithSaveDelay(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.saveDelay = d
		}
	}
}

// WithPreviewLength overrides the list preview length.
func WithPreviewLength(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.previewLen = n
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// Package storage writes exported notes to a download directory.
package storage

import "github.com/starford/jotpad/internal/models"

// Exporter saves a note export and returns where it landed.
type Exporter interface {
	Export(exp models.Export) (string, error)
}

package session

import (
	"encoding/json"
	"fmt"

	"github.com/starford/jotpad/internal/apperr"
	"github.com/starford/jotpad/internal/kvstore"
	"github.com/starford/jotpad/internal/models"
)

// decodeState extracts the note list and current id from raw store values.
// A current id that is not a string is ignored.
func decodeState(vals map[string]json.RawMessage) ([]models.Note, string, error) {
	var notes []models.Note
	if raw, ok := vals[kvstore.KeyNotes]; ok {
		if err := json.Unmarshal(raw, &notes); err != nil {
			return nil, "", fmt.Errorf("%w: decode notes: %w", apperr.ErrStoreRead, err)
		}
	}
	var currentID string
	if raw, ok := vals[kvstore.KeyCurrentNoteID]; ok {
		_ = json.Unmarshal(raw, &currentID)
	}
	return notes, currentID, nil
}

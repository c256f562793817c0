package domain

import (
	"errors"
	"strings"
)

// ErrEmptyGenerationID indicates a missing generation id in session settings.
var ErrEmptyGenerationID = errors.New("generation id is required")

// EncounterSettings configures how encounters are generated for a session.
type EncounterSettings struct {
	// FilterSpeciesClause removes species already present anywhere in the
	// requesting participant's box from the candidate pool, unless the
	// caller overrides the choice per request.
	FilterSpeciesClause bool `json:"filterSpeciesClause"`
}

// Settings holds per-session configuration. Settings are immutable once a
// session is created.
type Settings struct {
	GenerationID string            `json:"generationId"`
	Encounter    EncounterSettings `json:"encounter"`
}

// NormalizeSettings trims and validates session settings.
func NormalizeSettings(settings Settings) (Settings, error) {
	settings.GenerationID = strings.TrimSpace(settings.GenerationID)
	if settings.GenerationID == "" {
		return Settings{}, ErrEmptyGenerationID
	}
	return settings, nil
}

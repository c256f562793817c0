package domain

import (
	"errors"
	"strings"
)

// StarterLocationID is the box key reserved for a participant's starter.
const StarterLocationID = "starter"

var (
	// ErrEmptyParticipantID indicates a missing participant id.
	ErrEmptyParticipantID = errors.New("participant id is required")
	// ErrRosterEntryNotFound indicates no creature is bound at a location.
	ErrRosterEntryNotFound = errors.New("no creature bound at location")
	// ErrLocationOccupied indicates a captured creature already holds a location.
	ErrLocationOccupied = errors.New("location already holds a captured creature")
	// ErrCreatureNotCaptured indicates an operation requires a finalized creature.
	ErrCreatureNotCaptured = errors.New("creature has not been captured")
)

// Box is a participant's creature collection keyed by location id. The key
// makes the "one creature per location" rule structural.
type Box map[string]Creature

// Get returns the creature bound at a location.
func (b Box) Get(locationID string) (Creature, error) {
	creature, ok := b[locationID]
	if !ok {
		return Creature{}, ErrRosterEntryNotFound
	}
	return creature, nil
}

// Bind inserts a creature at its location key. A provisional entry at the
// key is replaced (a re-roll supersedes the pending draw); a captured entry
// blocks the bind.
func (b Box) Bind(creature Creature) error {
	existing, ok := b[creature.LocationID]
	if ok && !existing.Provisional() {
		return ErrLocationOccupied
	}
	b[creature.LocationID] = creature
	return nil
}

// Capture finalizes the provisional creature at a location with the
// player's choices and returns the updated creature.
func (b Box) Capture(locationID, nickname string, abilityIndex int, nature Nature, gender Gender, shiny bool) (Creature, error) {
	creature, ok := b[locationID]
	if !ok {
		return Creature{}, ErrRosterEntryNotFound
	}
	if err := creature.Capture(nickname, abilityIndex, nature, gender, shiny); err != nil {
		return Creature{}, err
	}
	b[locationID] = creature
	return creature, nil
}

// MarkDead flags the captured creature at a location as no longer alive.
// The entry stays in the box.
func (b Box) MarkDead(locationID string) (Creature, error) {
	creature, ok := b[locationID]
	if !ok {
		return Creature{}, ErrRosterEntryNotFound
	}
	if creature.Provisional() {
		return Creature{}, ErrCreatureNotCaptured
	}
	creature.Alive = false
	b[locationID] = creature
	return creature, nil
}

// ContainsSpecies reports whether any entry, alive or not, holds the
// species. Used by the species-exclusion filter.
func (b Box) ContainsSpecies(speciesID int) bool {
	for _, creature := range b {
		if creature.Species.ID == speciesID {
			return true
		}
	}
	return false
}

// Participant is a registered player within a session.
type Participant struct {
	ID string `json:"id"`
	// VersionID optionally records which game variant the participant plays.
	VersionID string `json:"versionId,omitempty"`
	Ready     bool   `json:"ready"`
	Box       Box    `json:"box"`
}

// NewParticipant creates a participant with an empty box.
func NewParticipant(participantID, versionID string) (Participant, error) {
	participantID = strings.TrimSpace(participantID)
	if participantID == "" {
		return Participant{}, ErrEmptyParticipantID
	}
	return Participant{
		ID:        participantID,
		VersionID: strings.TrimSpace(versionID),
		Box:       Box{},
	}, nil
}

// ReadyUp marks the participant ready for the current checkpoint.
func (p *Participant) ReadyUp() {
	p.Ready = true
}

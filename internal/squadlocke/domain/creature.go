package domain

import (
	"time"

	"github.com/Monroeshindelar/lw-game-service/internal/pokeapi"
)

// Nature is a creature's nature as named by the catalog.
type Nature string

// Gender is a creature's gender.
type Gender string

const (
	// GenderUnknown covers genderless species and undecided captures.
	GenderUnknown Gender = "unknown"
	// GenderMale indicates a male creature.
	GenderMale Gender = "male"
	// GenderFemale indicates a female creature.
	GenderFemale Gender = "female"
)

// Creature is one box entry: a species bound to a participant at a
// location. A creature is created provisionally when an encounter is drawn
// and captured when the player finalizes it. Creatures are never removed
// from the box; a fallen creature is only flagged not alive so the run's
// history stays intact.
type Creature struct {
	Species       pokeapi.Species  `json:"species"`
	Captured      bool             `json:"captured"`
	Alive         bool             `json:"alive"`
	Shiny         bool             `json:"shiny"`
	Nickname      string           `json:"nickname,omitempty"`
	Nature        Nature           `json:"nature,omitempty"`
	Gender        Gender           `json:"gender,omitempty"`
	Ability       *pokeapi.Ability `json:"ability,omitempty"`
	LocationID    string           `json:"locationId"`
	EncounteredAt time.Time        `json:"encounteredAt"`
}

// NewProvisionalCreature builds the not-yet-captured creature bound when an
// encounter is drawn. The player must finalize it before it counts as caught.
func NewProvisionalCreature(species pokeapi.Species, locationID string, encounteredAt time.Time) Creature {
	return Creature{
		Species:       species,
		LocationID:    locationID,
		EncounteredAt: encounteredAt.UTC(),
	}
}

// NewStarterCreature builds the creature a joining participant picks as
// their starter. Starters are captured immediately.
func NewStarterCreature(species pokeapi.Species, encounteredAt time.Time) Creature {
	return Creature{
		Species:       species,
		Captured:      true,
		Alive:         true,
		LocationID:    StarterLocationID,
		EncounteredAt: encounteredAt.UTC(),
	}
}

// Provisional reports whether the creature is still an unfinalized draw.
func (c Creature) Provisional() bool {
	return !c.Captured
}

// Capture finalizes a provisional creature with the player's choices.
// The ability index selects from the cached species descriptor.
func (c *Creature) Capture(nickname string, abilityIndex int, nature Nature, gender Gender, shiny bool) error {
	ability, err := c.Species.AbilityAt(abilityIndex)
	if err != nil {
		return err
	}
	c.Captured = true
	c.Alive = true
	c.Shiny = shiny
	c.Nickname = nickname
	c.Nature = nature
	c.Gender = gender
	c.Ability = &ability
	return nil
}

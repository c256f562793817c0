package service

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Monroeshindelar/lw-game-service/internal/encounter"
	"github.com/Monroeshindelar/lw-game-service/internal/pokeapi"
	"github.com/Monroeshindelar/lw-game-service/internal/squadlocke/domain"
)

// Encounter is the result of one draw: the weighted candidate that won,
// the resolved species and the provisional creature bound to the box.
type Encounter struct {
	Candidate encounter.Candidate `json:"candidate"`
	Species   pokeapi.Species     `json:"species"`
	Creature  domain.Creature     `json:"creature"`
}

// GetEncounterInput carries the parameters for GetEncounter.
type GetEncounterInput struct {
	SessionID     string
	ParticipantID string
	LocationID    string
	// Modes scopes the candidate pool. Empty means walk only.
	Modes []encounter.Mode
	// DisableFilter overrides the session's species clause for this draw.
	DisableFilter bool
}

// GetEncounter draws a weighted random encounter for a participant at a
// location and binds the result to their box as a provisional creature.
// Drawing again at the same location replaces the pending draw; a captured
// creature at the location blocks further draws.
func (s *Service) GetEncounter(ctx context.Context, in GetEncounterInput) (Encounter, error) {
	ctx, span := s.tracer.Start(ctx, "squadlocke.GetEncounter", trace.WithAttributes(
		attribute.String("session.id", in.SessionID),
		attribute.String("participant.id", in.ParticipantID),
		attribute.String("location.id", in.LocationID),
	))
	defer span.End()

	session, err := s.sessions.Get(ctx, in.SessionID)
	if err != nil {
		return Encounter{}, err
	}
	if err := session.RequireCheckpoint(); err != nil {
		return Encounter{}, err
	}
	participant, err := session.Participant(in.ParticipantID)
	if err != nil {
		return Encounter{}, err
	}
	if existing, err := participant.Box.Get(in.LocationID); err == nil && !existing.Provisional() {
		return Encounter{}, domain.ErrLocationOccupied
	}

	modes := in.Modes
	if len(modes) == 0 {
		modes = []encounter.Mode{encounter.ModeWalk}
	}
	pool, err := s.pools.ListCandidates(ctx, session.Settings.GenerationID, in.LocationID, modes)
	if err != nil {
		return Encounter{}, fmt.Errorf("list candidates: %w", err)
	}
	if session.Settings.Encounter.FilterSpeciesClause && !in.DisableFilter {
		pool = filterKnownSpecies(pool, participant.Box)
	}

	candidate, err := s.generator.Pick(pool)
	if err != nil {
		return Encounter{}, err
	}
	span.SetAttributes(attribute.Int("species.id", candidate.SpeciesID))

	species, err := s.catalog.GetSpecies(ctx, strconv.Itoa(candidate.SpeciesID))
	if err != nil {
		return Encounter{}, fmt.Errorf("resolve species %d: %w", candidate.SpeciesID, err)
	}

	creature := domain.NewProvisionalCreature(species, in.LocationID, s.clock())
	if _, err := s.mutateSession(ctx, in.SessionID, func(session *domain.Session) error {
		if err := session.RequireCheckpoint(); err != nil {
			return err
		}
		participant, err := session.Participant(in.ParticipantID)
		if err != nil {
			return err
		}
		return participant.Box.Bind(creature)
	}); err != nil {
		return Encounter{}, err
	}

	return Encounter{Candidate: candidate, Species: species, Creature: creature}, nil
}

// filterKnownSpecies removes candidates whose species is already anywhere
// in the participant's box, alive or not.
func filterKnownSpecies(pool []encounter.Candidate, box domain.Box) []encounter.Candidate {
	filtered := pool[:0]
	for _, candidate := range pool {
		if box.ContainsSpecies(candidate.SpeciesID) {
			continue
		}
		filtered = append(filtered, candidate)
	}
	return filtered
}

// SaveEncounterInput carries the player's capture choices.
type SaveEncounterInput struct {
	SessionID     string
	ParticipantID string
	LocationID    string
	Nickname      string
	AbilityIndex  int
	Nature        domain.Nature
	Gender        domain.Gender
	Shiny         bool
}

// SaveEncounter finalizes the provisional creature at a location with the
// player's choices.
func (s *Service) SaveEncounter(ctx context.Context, in SaveEncounterInput) (domain.Creature, error) {
	var captured domain.Creature
	_, err := s.mutateSession(ctx, in.SessionID, func(session *domain.Session) error {
		if err := session.RequireMutable(); err != nil {
			return err
		}
		participant, err := session.Participant(in.ParticipantID)
		if err != nil {
			return err
		}
		captured, err = participant.Box.Capture(in.LocationID, in.Nickname, in.AbilityIndex, in.Nature, in.Gender, in.Shiny)
		return err
	})
	if err != nil {
		return domain.Creature{}, err
	}
	return captured, nil
}

// KillEncounter flags the captured creature at a location as no longer
// alive. The entry stays in the box so the run's history is preserved.
func (s *Service) KillEncounter(ctx context.Context, sessionID, participantID, locationID string) (domain.Creature, error) {
	var fallen domain.Creature
	_, err := s.mutateSession(ctx, sessionID, func(session *domain.Session) error {
		if err := session.RequireMutable(); err != nil {
			return err
		}
		participant, err := session.Participant(participantID)
		if err != nil {
			return err
		}
		fallen, err = participant.Box.MarkDead(locationID)
		return err
	})
	if err != nil {
		return domain.Creature{}, err
	}
	return fallen, nil
}

// EvolveEncounter advances the creature at a location to its next
// evolution stage. Dead creatures and final-stage species are left
// untouched; the returned bool reports whether an evolution happened.
// Branching evolutions resolve to the first listed branch.
func (s *Service) EvolveEncounter(ctx context.Context, sessionID, participantID, locationID string) (domain.Creature, bool, error) {
	ctx, span := s.tracer.Start(ctx, "squadlocke.EvolveEncounter", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("participant.id", participantID),
		attribute.String("location.id", locationID),
	))
	defer span.End()

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Creature{}, false, err
	}
	if err := session.RequireMutable(); err != nil {
		return domain.Creature{}, false, err
	}
	participant, err := session.Participant(participantID)
	if err != nil {
		return domain.Creature{}, false, err
	}
	creature, err := participant.Box.Get(locationID)
	if err != nil {
		return domain.Creature{}, false, err
	}
	if creature.Provisional() {
		return domain.Creature{}, false, domain.ErrCreatureNotCaptured
	}
	if !creature.Alive {
		return creature, false, nil
	}

	chain, err := s.catalog.GetEvolutionChain(ctx, creature.Species.EvolutionChainID)
	if err != nil {
		return domain.Creature{}, false, fmt.Errorf("resolve evolution chain %d: %w", creature.Species.EvolutionChainID, err)
	}
	nextName, ok := chain.NextStage(creature.Species.Name)
	if !ok {
		return creature, false, nil
	}
	next, err := s.catalog.GetSpecies(ctx, nextName)
	if err != nil {
		return domain.Creature{}, false, fmt.Errorf("resolve species %q: %w", nextName, err)
	}

	var evolved domain.Creature
	_, err = s.mutateSession(ctx, sessionID, func(session *domain.Session) error {
		if err := session.RequireMutable(); err != nil {
			return err
		}
		participant, err := session.Participant(participantID)
		if err != nil {
			return err
		}
		current, err := participant.Box.Get(locationID)
		if err != nil {
			return err
		}
		// A concurrent writer may have killed or already evolved the
		// creature between the load and this attempt.
		if !current.Alive || current.Species.ID != creature.Species.ID {
			evolved = current
			return errNoSave
		}
		current.Species = next
		participant.Box[locationID] = current
		evolved = current
		return nil
	})
	if err != nil {
		return domain.Creature{}, false, err
	}

	return evolved, evolved.Species.ID == next.ID, nil
}

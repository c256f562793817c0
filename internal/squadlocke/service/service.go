// Package service implements the squadlocke session operations on top of
// the session store and the species catalog.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Monroeshindelar/lw-game-service/internal/encounter"
	"github.com/Monroeshindelar/lw-game-service/internal/platform/id"
	"github.com/Monroeshindelar/lw-game-service/internal/pokeapi"
	"github.com/Monroeshindelar/lw-game-service/internal/squadlocke/domain"
	"github.com/Monroeshindelar/lw-game-service/internal/storage"
)

// ErrUnknownGeneration indicates a session was requested for a generation
// the encounter pool has no data for.
var ErrUnknownGeneration = errors.New("no encounter data for generation")

// conflictRetries bounds how many times a mutation is reapplied after
// losing a version race.
const conflictRetries = 3

// errNoSave signals from a mutate closure that the session is already in
// the desired state and no write is needed.
var errNoSave = errors.New("no save required")

// CatalogClient reads immutable species data from the catalog.
type CatalogClient interface {
	GetSpecies(ctx context.Context, idOrName string) (pokeapi.Species, error)
	GetEvolutionChain(ctx context.Context, id int) (pokeapi.EvolutionChain, error)
}

// Service coordinates session state transitions, encounter draws and
// roster mutations.
type Service struct {
	sessions    storage.SessionStore
	pools       storage.EncounterStore
	catalog     CatalogClient
	generator   encounter.Generator
	tournament  TournamentStarter
	clock       func() time.Time
	idGenerator func() (string, error)
	tracer      trace.Tracer
}

// Config carries the service dependencies.
type Config struct {
	Sessions  storage.SessionStore
	Pools     storage.EncounterStore
	Catalog   CatalogClient
	Generator encounter.Generator
	// Tournament is notified when every participant of a session has
	// readied up. Optional.
	Tournament TournamentStarter
	// Clock and IDGenerator default to the real implementations; tests
	// inject fixed values.
	Clock       func() time.Time
	IDGenerator func() (string, error)
}

// New creates a Service with default dependencies filled in.
func New(cfg Config) *Service {
	if cfg.Tournament == nil {
		cfg.Tournament = NoopTournamentStarter{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = id.NewID
	}
	return &Service{
		sessions:    cfg.Sessions,
		pools:       cfg.Pools,
		catalog:     cfg.Catalog,
		generator:   cfg.Generator,
		tournament:  cfg.Tournament,
		clock:       cfg.Clock,
		idGenerator: cfg.IDGenerator,
		tracer:      otel.Tracer("squadlocke/service"),
	}
}

// CreateInput carries the parameters for Create.
type CreateInput struct {
	CreatorID string
	Settings  domain.Settings
}

// Create starts a new session in the registration state. The settings
// generation must have encounter data loaded.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Session, error) {
	session, err := domain.NewSession(in.CreatorID, in.Settings, s.clock, s.idGenerator)
	if err != nil {
		return domain.Session{}, err
	}

	ok, err := s.pools.HasGeneration(ctx, session.Settings.GenerationID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("check generation %q: %w", session.Settings.GenerationID, err)
	}
	if !ok {
		return domain.Session{}, fmt.Errorf("generation %q: %w", session.Settings.GenerationID, ErrUnknownGeneration)
	}

	return s.sessions.Save(ctx, session)
}

// Get returns a session by id.
func (s *Service) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.sessions.Get(ctx, sessionID)
}

// GetParticipant returns one participant of a session.
func (s *Service) GetParticipant(ctx context.Context, sessionID, participantID string) (domain.Participant, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Participant{}, err
	}
	participant, err := session.Participant(participantID)
	if err != nil {
		return domain.Participant{}, err
	}
	return *participant, nil
}

// JoinInput carries the parameters for Join.
type JoinInput struct {
	SessionID     string
	ParticipantID string
	// VersionID optionally records the game variant the participant plays.
	VersionID string
	// Starter is the species id or name bound at the starter location.
	Starter string
}

// Join registers a participant with their starter creature. The starter is
// resolved against the catalog before the session is mutated.
func (s *Service) Join(ctx context.Context, in JoinInput) (domain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "squadlocke.Join", trace.WithAttributes(
		attribute.String("session.id", in.SessionID),
		attribute.String("participant.id", in.ParticipantID),
	))
	defer span.End()

	participant, err := domain.NewParticipant(in.ParticipantID, in.VersionID)
	if err != nil {
		return domain.Session{}, err
	}

	species, err := s.catalog.GetSpecies(ctx, in.Starter)
	if err != nil {
		return domain.Session{}, fmt.Errorf("resolve starter %q: %w", in.Starter, err)
	}

	return s.mutateSession(ctx, in.SessionID, func(session *domain.Session) error {
		joining := participant
		joining.Box = domain.Box{}
		if err := joining.Box.Bind(domain.NewStarterCreature(species, s.clock())); err != nil {
			return err
		}
		return session.Join(joining)
	})
}

// Start moves a session from registration to its first checkpoint.
func (s *Service) Start(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.mutateSession(ctx, sessionID, func(session *domain.Session) error {
		return session.Start()
	})
}

// AdvanceCheckpoint moves a session to its next checkpoint, clearing every
// participant's ready flag.
func (s *Service) AdvanceCheckpoint(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.mutateSession(ctx, sessionID, func(session *domain.Session) error {
		return session.AdvanceCheckpoint()
	})
}

// Finalize moves a session to its terminal state. Finalizing twice is a
// no-op.
func (s *Service) Finalize(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.mutateSession(ctx, sessionID, func(session *domain.Session) error {
		if session.State.Phase == domain.PhaseFinalized {
			return errNoSave
		}
		session.Finalize()
		return nil
	})
}

// Ready marks a participant ready for the current checkpoint. When the
// last participant readies up the tournament starter is notified; a failed
// notification does not fail the ready itself.
func (s *Service) Ready(ctx context.Context, sessionID, participantID string) (domain.Session, error) {
	session, err := s.mutateSession(ctx, sessionID, func(session *domain.Session) error {
		_, err := session.ReadyParticipant(participantID)
		return err
	})
	if err != nil {
		return domain.Session{}, err
	}

	if session.AllReady() {
		if err := s.tournament.StartTournament(ctx, session); err != nil {
			log.Printf("start tournament for session %s: %v", session.ID, err)
		}
	}
	return session, nil
}

// ListByParticipant returns every session the user participates in.
func (s *Service) ListByParticipant(ctx context.Context, participantID string) ([]domain.Session, error) {
	return s.sessions.ListByParticipant(ctx, participantID)
}

// ListJoinable returns registration-state sessions the user has not joined.
func (s *Service) ListJoinable(ctx context.Context, participantID string) ([]domain.Session, error) {
	return s.sessions.ListJoinable(ctx, participantID)
}

// mutateSession applies a load-mutate-save cycle with bounded retries on
// version conflicts. The closure sees a freshly loaded session on every
// attempt; returning errNoSave commits nothing and returns the loaded
// session as-is.
func (s *Service) mutateSession(ctx context.Context, sessionID string, mutate func(*domain.Session) error) (domain.Session, error) {
	var lastErr error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		session, err := s.sessions.Get(ctx, sessionID)
		if err != nil {
			return domain.Session{}, err
		}
		if err := mutate(&session); err != nil {
			if errors.Is(err, errNoSave) {
				return session, nil
			}
			return domain.Session{}, err
		}
		saved, err := s.sessions.Save(ctx, session)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, storage.ErrVersionConflict) {
			return domain.Session{}, err
		}
		lastErr = err
	}
	return domain.Session{}, fmt.Errorf("session %s: %w", sessionID, lastErr)
}

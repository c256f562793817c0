// Package storage defines the persistence contracts for the game service.
package storage

import (
	"context"
	"errors"

	"github.com/Monroeshindelar/lw-game-service/internal/encounter"
	"github.com/Monroeshindelar/lw-game-service/internal/squadlocke/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrVersionConflict indicates a save lost a compare-and-swap race against
// a concurrent writer. Callers reload the session and reapply the
// transition.
var ErrVersionConflict = errors.New("session version conflict")

// SessionStore persists session aggregates with optimistic versioning.
type SessionStore interface {
	// Save upserts a session. A session with Version zero is inserted;
	// otherwise the write succeeds only when the stored version still
	// matches, failing with ErrVersionConflict when it does not. The
	// returned session carries the new version.
	Save(ctx context.Context, session domain.Session) (domain.Session, error)
	Get(ctx context.Context, id string) (domain.Session, error)
	// ListByParticipant returns every session the user participates in.
	ListByParticipant(ctx context.Context, participantID string) ([]domain.Session, error)
	// ListJoinable returns registration-state sessions the user has not
	// already joined.
	ListJoinable(ctx context.Context, participantID string) ([]domain.Session, error)
}

// EncounterStore holds the catalog-backed candidate pools.
type EncounterStore interface {
	PutCandidates(ctx context.Context, candidates []encounter.Candidate) error
	// ListCandidates returns the pool scoped by generation, location and
	// the requested modes.
	ListCandidates(ctx context.Context, generationID, locationID string, modes []encounter.Mode) ([]encounter.Candidate, error)
	// HasGeneration reports whether any candidate data exists for the
	// generation.
	HasGeneration(ctx context.Context, generationID string) (bool, error)
}

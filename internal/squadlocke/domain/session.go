package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Monroeshindelar/lw-game-service/internal/platform/id"
)

var (
	// ErrEmptyCreatorID indicates a missing creator id.
	ErrEmptyCreatorID = errors.New("creator id is required")
	// ErrImproperState indicates an operation invalid for the session's state.
	ErrImproperState = errors.New("operation not allowed in current session state")
	// ErrDuplicateParticipant indicates the participant already joined.
	ErrDuplicateParticipant = errors.New("participant already joined the session")
	// ErrParticipantNotFound indicates the participant is not in the session.
	ErrParticipantNotFound = errors.New("participant not found in session")
)

// Session is one multiplayer locke-style game run. It exclusively owns its
// participants and, transitively, their boxes. All state transitions assert
// their precondition state before mutating.
type Session struct {
	ID           string        `json:"id"`
	CreatorID    string        `json:"creatorId"`
	Settings     Settings      `json:"settings"`
	Participants []Participant `json:"participants"`
	State        State         `json:"state"`
	CreatedAt    time.Time     `json:"createdAt"`

	// Version is the storage compare-and-swap counter. Zero means the
	// session has never been persisted.
	Version int64 `json:"-"`
}

// NewSession creates a session in the registration state with the creator
// registered as its first participant.
func NewSession(creatorID string, settings Settings, now func() time.Time, idGenerator func() (string, error)) (Session, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	creatorID = strings.TrimSpace(creatorID)
	if creatorID == "" {
		return Session{}, ErrEmptyCreatorID
	}
	normalized, err := NormalizeSettings(settings)
	if err != nil {
		return Session{}, err
	}

	creator, err := NewParticipant(creatorID, "")
	if err != nil {
		return Session{}, err
	}

	sessionID, err := idGenerator()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	return Session{
		ID:           sessionID,
		CreatorID:    creatorID,
		Settings:     normalized,
		Participants: []Participant{creator},
		State:        Registration(),
		CreatedAt:    now().UTC(),
	}, nil
}

// Participant returns a pointer into the session's participant list.
func (s *Session) Participant(participantID string) (*Participant, error) {
	for i := range s.Participants {
		if s.Participants[i].ID == participantID {
			return &s.Participants[i], nil
		}
	}
	return nil, ErrParticipantNotFound
}

// HasParticipant reports whether the participant id is registered.
func (s *Session) HasParticipant(participantID string) bool {
	_, err := s.Participant(participantID)
	return err == nil
}

// Join registers a new participant. Only legal during registration, and
// participant ids must be unique within the session.
func (s *Session) Join(participant Participant) error {
	if s.HasParticipant(participant.ID) {
		return ErrDuplicateParticipant
	}
	if s.State.Phase != PhaseRegistration {
		return fmt.Errorf("join in state %s: %w", s.State, ErrImproperState)
	}
	s.Participants = append(s.Participants, participant)
	return nil
}

// Start moves the session from registration to the first checkpoint.
func (s *Session) Start() error {
	if s.State.Phase != PhaseRegistration {
		return fmt.Errorf("start in state %s: %w", s.State, ErrImproperState)
	}
	s.State = Checkpoint(1)
	return nil
}

// AdvanceCheckpoint moves to the next checkpoint and clears every
// participant's ready flag.
func (s *Session) AdvanceCheckpoint() error {
	if s.State.Phase != PhaseCheckpoint {
		return fmt.Errorf("advance in state %s: %w", s.State, ErrImproperState)
	}
	s.State = Checkpoint(s.State.Checkpoint + 1)
	for i := range s.Participants {
		s.Participants[i].Ready = false
	}
	return nil
}

// Finalize moves the session to its terminal state. Finalizing an already
// finalized session is a no-op.
func (s *Session) Finalize() {
	s.State = Finalized()
}

// ReadyParticipant marks a participant ready. Only legal during a
// checkpoint.
func (s *Session) ReadyParticipant(participantID string) (*Participant, error) {
	if s.State.Phase != PhaseCheckpoint {
		return nil, fmt.Errorf("ready in state %s: %w", s.State, ErrImproperState)
	}
	participant, err := s.Participant(participantID)
	if err != nil {
		return nil, err
	}
	participant.ReadyUp()
	return participant, nil
}

// AllReady reports whether every participant is ready.
func (s *Session) AllReady() bool {
	for i := range s.Participants {
		if !s.Participants[i].Ready {
			return false
		}
	}
	return len(s.Participants) > 0
}

// RequireCheckpoint asserts the session is in a checkpoint state.
func (s *Session) RequireCheckpoint() error {
	if s.State.Phase != PhaseCheckpoint {
		return fmt.Errorf("session %s is in state %s: %w", s.ID, s.State, ErrImproperState)
	}
	return nil
}

// RequireMutable asserts the session has not been finalized.
func (s *Session) RequireMutable() error {
	if s.State.Phase == PhaseFinalized {
		return fmt.Errorf("session %s is finalized: %w", s.ID, ErrImproperState)
	}
	return nil
}

// Joinable reports whether the given user could still join the session.
func (s *Session) Joinable(userID string) bool {
	return s.State.Phase == PhaseRegistration && !s.HasParticipant(userID)
}

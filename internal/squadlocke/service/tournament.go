package service

import (
	"context"
	"log"

	"github.com/Monroeshindelar/lw-game-service/internal/squadlocke/domain"
)

// TournamentStarter is notified when every participant of a session has
// readied up for the current checkpoint, so an external bracket can begin.
type TournamentStarter interface {
	StartTournament(ctx context.Context, session domain.Session) error
}

// NoopTournamentStarter logs the all-ready event and does nothing else.
// It stands in until a bracket service is wired up.
type NoopTournamentStarter struct{}

// StartTournament implements TournamentStarter.
func (NoopTournamentStarter) StartTournament(_ context.Context, session domain.Session) error {
	log.Printf("session %s: all %d participants ready at checkpoint %d",
		session.ID, len(session.Participants), session.State.Checkpoint)
	return nil
}

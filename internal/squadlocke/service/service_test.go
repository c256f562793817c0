package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Monroeshindelar/lw-game-service/internal/encounter"
	"github.com/Monroeshindelar/lw-game-service/internal/pokeapi"
	"github.com/Monroeshindelar/lw-game-service/internal/squadlocke/domain"
	"github.com/Monroeshindelar/lw-game-service/internal/storage"
)

// memSessionStore is an in-memory SessionStore with the same optimistic
// versioning semantics as the sqlite store. Sessions are stored as JSON so
// callers never share map or slice memory with the store.
type memSessionStore struct {
	mu       sync.Mutex
	payloads map[string][]byte
	versions map[string]int64
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{
		payloads: map[string][]byte{},
		versions: map[string]int64{},
	}
}

func (m *memSessionStore) Save(_ context.Context, session domain.Session) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.versions[session.ID]
	if session.Version == 0 {
		if exists {
			return domain.Session{}, storage.ErrVersionConflict
		}
	} else if !exists || stored != session.Version {
		return domain.Session{}, storage.ErrVersionConflict
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return domain.Session{}, err
	}
	m.payloads[session.ID] = payload
	m.versions[session.ID] = session.Version + 1
	session.Version++
	return session, nil
}

func (m *memSessionStore) Get(_ context.Context, id string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payload, ok := m.payloads[id]
	if !ok {
		return domain.Session{}, storage.ErrNotFound
	}
	var session domain.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return domain.Session{}, err
	}
	session.Version = m.versions[id]
	return session, nil
}

func (m *memSessionStore) ListByParticipant(ctx context.Context, participantID string) ([]domain.Session, error) {
	return m.list(ctx, func(session domain.Session) bool {
		return session.HasParticipant(participantID)
	})
}

func (m *memSessionStore) ListJoinable(ctx context.Context, participantID string) ([]domain.Session, error) {
	return m.list(ctx, func(session domain.Session) bool {
		return session.Joinable(participantID)
	})
}

func (m *memSessionStore) list(ctx context.Context, keep func(domain.Session) bool) ([]domain.Session, error) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.payloads))
	for id := range m.payloads {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var sessions []domain.Session
	for _, id := range ids {
		session, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if keep(session) {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

// memEncounterStore is an in-memory EncounterStore.
type memEncounterStore struct {
	candidates []encounter.Candidate
}

func (m *memEncounterStore) PutCandidates(_ context.Context, candidates []encounter.Candidate) error {
	m.candidates = append(m.candidates, candidates...)
	return nil
}

func (m *memEncounterStore) ListCandidates(_ context.Context, generationID, locationID string, modes []encounter.Mode) ([]encounter.Candidate, error) {
	wanted := map[encounter.Mode]bool{}
	for _, mode := range modes {
		wanted[mode] = true
	}
	var pool []encounter.Candidate
	for _, candidate := range m.candidates {
		if candidate.GenerationID == generationID && candidate.LocationID == locationID && wanted[candidate.Mode] {
			pool = append(pool, candidate)
		}
	}
	return pool, nil
}

func (m *memEncounterStore) HasGeneration(_ context.Context, generationID string) (bool, error) {
	for _, candidate := range m.candidates {
		if candidate.GenerationID == generationID {
			return true, nil
		}
	}
	return false, nil
}

// fakeCatalog serves species and chains from fixed maps.
type fakeCatalog struct {
	species map[string]pokeapi.Species
	chains  map[int]pokeapi.EvolutionChain
}

func (f *fakeCatalog) GetSpecies(_ context.Context, idOrName string) (pokeapi.Species, error) {
	species, ok := f.species[idOrName]
	if !ok {
		return pokeapi.Species{}, pokeapi.ErrNotFound
	}
	return species, nil
}

func (f *fakeCatalog) GetEvolutionChain(_ context.Context, id int) (pokeapi.EvolutionChain, error) {
	chain, ok := f.chains[id]
	if !ok {
		return pokeapi.EvolutionChain{}, pokeapi.ErrNotFound
	}
	return chain, nil
}

// firstPickGenerator always draws the first candidate in the pool.
type firstPickGenerator struct{}

func (firstPickGenerator) Pick(candidates []encounter.Candidate) (encounter.Candidate, error) {
	if len(candidates) == 0 {
		return encounter.Candidate{}, encounter.ErrEmptyPool
	}
	return candidates[0], nil
}

// recordingTournament records StartTournament calls.
type recordingTournament struct {
	mu       sync.Mutex
	sessions []string
}

func (r *recordingTournament) StartTournament(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = append(r.sessions, session.ID)
	return nil
}

func testCatalog() *fakeCatalog {
	pidgey := pokeapi.Species{
		ID: 16, Name: "pidgey", EvolutionChainID: 7,
		Abilities: []pokeapi.Ability{{Name: "keen-eye", Slot: 1}},
		Types:     []string{"normal", "flying"},
	}
	pidgeotto := pokeapi.Species{
		ID: 17, Name: "pidgeotto", EvolutionChainID: 7,
		Abilities: []pokeapi.Ability{{Name: "keen-eye", Slot: 1}},
		Types:     []string{"normal", "flying"},
	}
	charmander := pokeapi.Species{
		ID: 4, Name: "charmander", EvolutionChainID: 2,
		Abilities: []pokeapi.Ability{{Name: "blaze", Slot: 1}},
		Types:     []string{"fire"},
	}
	rattata := pokeapi.Species{
		ID: 19, Name: "rattata", EvolutionChainID: 8,
		Abilities: []pokeapi.Ability{{Name: "run-away", Slot: 1}},
		Types:     []string{"normal"},
	}
	raticate := pokeapi.Species{
		ID: 20, Name: "raticate", EvolutionChainID: 8,
		Abilities: []pokeapi.Ability{{Name: "run-away", Slot: 1}},
		Types:     []string{"normal"},
	}
	return &fakeCatalog{
		species: map[string]pokeapi.Species{
			"16": pidgey, "pidgey": pidgey,
			"17": pidgeotto, "pidgeotto": pidgeotto,
			"4": charmander, "charmander": charmander,
			"19": rattata, "rattata": rattata,
			"20": raticate, "raticate": raticate,
		},
		chains: map[int]pokeapi.EvolutionChain{
			7: {ID: 7, Root: pokeapi.ChainLink{
				Name: "pidgey",
				EvolvesTo: []pokeapi.ChainLink{{
					Name:      "pidgeotto",
					EvolvesTo: []pokeapi.ChainLink{{Name: "pidgeot"}},
				}},
			}},
			8: {ID: 8, Root: pokeapi.ChainLink{
				Name:      "rattata",
				EvolvesTo: []pokeapi.ChainLink{{Name: "raticate"}},
			}},
		},
	}
}

func testPool() []encounter.Candidate {
	return []encounter.Candidate{
		{GenerationID: "generation-i", LocationID: "route-1", Mode: encounter.ModeWalk, SpeciesID: 16, Rate: 50},
		{GenerationID: "generation-i", LocationID: "route-1", Mode: encounter.ModeWalk, SpeciesID: 19, Rate: 50},
	}
}

type fixture struct {
	service    *Service
	sessions   *memSessionStore
	pools      *memEncounterStore
	tournament *recordingTournament
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sessions := newMemSessionStore()
	pools := &memEncounterStore{}
	if err := pools.PutCandidates(context.Background(), testPool()); err != nil {
		t.Fatalf("seed pool: %v", err)
	}
	tournament := &recordingTournament{}
	svc := New(Config{
		Sessions:   sessions,
		Pools:      pools,
		Catalog:    testCatalog(),
		Generator:  firstPickGenerator{},
		Tournament: tournament,
		Clock:      func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) },
	})
	return &fixture{service: svc, sessions: sessions, pools: pools, tournament: tournament}
}

func (f *fixture) createSession(t *testing.T) domain.Session {
	t.Helper()
	session, err := f.service.Create(context.Background(), CreateInput{
		CreatorID: "creator",
		Settings:  domain.Settings{GenerationID: "generation-i"},
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	if session.State.Phase != domain.PhaseRegistration {
		t.Fatalf("expected registration, got %s", session.State)
	}
	if !session.HasParticipant("creator") {
		t.Fatal("expected creator registered as participant")
	}
	if session.Version != 1 {
		t.Fatalf("expected persisted version 1, got %d", session.Version)
	}
}

func TestCreateUnknownGeneration(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Create(context.Background(), CreateInput{
		CreatorID: "creator",
		Settings:  domain.Settings{GenerationID: "generation-ix"},
	})
	if !errors.Is(err, ErrUnknownGeneration) {
		t.Fatalf("expected ErrUnknownGeneration, got %v", err)
	}
}

func TestCreateValidatesCreator(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Create(context.Background(), CreateInput{
		Settings: domain.Settings{GenerationID: "generation-i"},
	})
	if !errors.Is(err, domain.ErrEmptyCreatorID) {
		t.Fatalf("expected ErrEmptyCreatorID, got %v", err)
	}
}

func TestJoinBindsStarter(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	joined, err := f.service.Join(context.Background(), JoinInput{
		SessionID:     session.ID,
		ParticipantID: "rival",
		VersionID:     "red",
		Starter:       "charmander",
	})
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	participant, err := joined.Participant("rival")
	if err != nil {
		t.Fatalf("participant: %v", err)
	}
	if participant.VersionID != "red" {
		t.Fatalf("expected version id carried, got %q", participant.VersionID)
	}
	starter, err := participant.Box.Get(domain.StarterLocationID)
	if err != nil {
		t.Fatalf("starter: %v", err)
	}
	if starter.Species.Name != "charmander" || !starter.Captured || !starter.Alive {
		t.Fatalf("unexpected starter: %+v", starter)
	}
}

func TestJoinUnknownStarter(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	_, err := f.service.Join(context.Background(), JoinInput{
		SessionID:     session.ID,
		ParticipantID: "rival",
		Starter:       "missingno",
	})
	if !errors.Is(err, pokeapi.ErrNotFound) {
		t.Fatalf("expected catalog ErrNotFound, got %v", err)
	}
}

func TestJoinAfterStart(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)
	if _, err := f.service.Start(context.Background(), session.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	_, err := f.service.Join(context.Background(), JoinInput{
		SessionID:     session.ID,
		ParticipantID: "late",
		Starter:       "charmander",
	})
	if !errors.Is(err, domain.ErrImproperState) {
		t.Fatalf("expected ErrImproperState, got %v", err)
	}
}

func TestJoinDuplicate(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	_, err := f.service.Join(context.Background(), JoinInput{
		SessionID:     session.ID,
		ParticipantID: "creator",
		Starter:       "charmander",
	})
	if !errors.Is(err, domain.ErrDuplicateParticipant) {
		t.Fatalf("expected ErrDuplicateParticipant, got %v", err)
	}
}

func TestStartAndAdvance(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	started, err := f.service.Start(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.State.Phase != domain.PhaseCheckpoint || started.State.Checkpoint != 1 {
		t.Fatalf("expected checkpoint(1), got %s", started.State)
	}

	if _, err := f.service.Start(context.Background(), session.ID); !errors.Is(err, domain.ErrImproperState) {
		t.Fatalf("expected ErrImproperState on double start, got %v", err)
	}

	if _, err := f.service.Ready(context.Background(), session.ID, "creator"); err != nil {
		t.Fatalf("ready: %v", err)
	}
	advanced, err := f.service.AdvanceCheckpoint(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if advanced.State.Checkpoint != 2 {
		t.Fatalf("expected checkpoint 2, got %d", advanced.State.Checkpoint)
	}
	for _, participant := range advanced.Participants {
		if participant.Ready {
			t.Fatalf("expected ready flags cleared, %s still ready", participant.ID)
		}
	}
}

func TestReadyTriggersTournament(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)
	if _, err := f.service.Join(context.Background(), JoinInput{
		SessionID: session.ID, ParticipantID: "rival", Starter: "charmander",
	}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.service.Start(context.Background(), session.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := f.service.Ready(context.Background(), session.ID, "creator"); err != nil {
		t.Fatalf("ready creator: %v", err)
	}
	if got := len(f.tournament.sessions); got != 0 {
		t.Fatalf("tournament started before all ready, %d calls", got)
	}

	if _, err := f.service.Ready(context.Background(), session.ID, "rival"); err != nil {
		t.Fatalf("ready rival: %v", err)
	}
	if got := len(f.tournament.sessions); got != 1 || f.tournament.sessions[0] != session.ID {
		t.Fatalf("expected one tournament start for %s, got %v", session.ID, f.tournament.sessions)
	}
}

func TestReadyOutsideCheckpoint(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	if _, err := f.service.Ready(context.Background(), session.ID, "creator"); !errors.Is(err, domain.ErrImproperState) {
		t.Fatalf("expected ErrImproperState, got %v", err)
	}
}

func TestConcurrentReady(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)
	if _, err := f.service.Join(context.Background(), JoinInput{
		SessionID: session.ID, ParticipantID: "rival", Starter: "charmander",
	}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := f.service.Start(context.Background(), session.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, participantID := range []string{"creator", "rival"} {
		wg.Add(1)
		go func(participantID string) {
			defer wg.Done()
			if _, err := f.service.Ready(context.Background(), session.ID, participantID); err != nil {
				errs <- fmt.Errorf("ready %s: %w", participantID, err)
			}
		}(participantID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	final, err := f.service.Get(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !final.AllReady() {
		t.Fatalf("expected both participants ready, got %+v", final.Participants)
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	finalized, err := f.service.Finalize(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if finalized.State.Phase != domain.PhaseFinalized {
		t.Fatalf("expected finalized, got %s", finalized.State)
	}

	again, err := f.service.Finalize(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	if again.Version != finalized.Version {
		t.Fatalf("expected no extra write, versions %d and %d", finalized.Version, again.Version)
	}
}

func TestGetMissingSession(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.Get(context.Background(), "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetParticipant(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	participant, err := f.service.GetParticipant(context.Background(), session.ID, "creator")
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if participant.ID != "creator" {
		t.Fatalf("unexpected participant: %+v", participant)
	}

	if _, err := f.service.GetParticipant(context.Background(), session.ID, "stranger"); !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected ErrParticipantNotFound, got %v", err)
	}
}

func TestListQueries(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	mine, err := f.service.ListByParticipant(context.Background(), "creator")
	if err != nil {
		t.Fatalf("list by participant: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != session.ID {
		t.Fatalf("expected creator's session, got %+v", mine)
	}

	joinable, err := f.service.ListJoinable(context.Background(), "rival")
	if err != nil {
		t.Fatalf("list joinable: %v", err)
	}
	if len(joinable) != 1 || joinable[0].ID != session.ID {
		t.Fatalf("expected the session joinable for rival, got %+v", joinable)
	}

	joinable, err = f.service.ListJoinable(context.Background(), "creator")
	if err != nil {
		t.Fatalf("list joinable for member: %v", err)
	}
	if len(joinable) != 0 {
		t.Fatalf("expected nothing joinable for a member, got %+v", joinable)
	}
}

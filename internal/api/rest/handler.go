// Package rest exposes the squadlocke service over a JSON HTTP API.
package rest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/Monroeshindelar/lw-game-service/internal/encounter"
	"github.com/Monroeshindelar/lw-game-service/internal/pokeapi"
	"github.com/Monroeshindelar/lw-game-service/internal/squadlocke/domain"
	"github.com/Monroeshindelar/lw-game-service/internal/squadlocke/service"
	"github.com/Monroeshindelar/lw-game-service/internal/storage"
)

// Handler serves the squadlocke HTTP routes.
type Handler struct {
	service *service.Service
}

// NewHandler builds the HTTP handler for the squadlocke API.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// RegisterRoutes wires the squadlocke routes into the provided mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("PUT /games/squadlocke/create", h.handleCreate)
	mux.HandleFunc("GET /games/squadlocke/joinable", h.handleListJoinable)
	mux.HandleFunc("GET /games/squadlocke/by-userid/{userId}", h.handleListByParticipant)
	mux.HandleFunc("GET /games/squadlocke/{gameId}", h.handleGet)
	mux.HandleFunc("POST /games/squadlocke/{gameId}/join", h.handleJoin)
	mux.HandleFunc("POST /games/squadlocke/{gameId}/start", h.handleStart)
	mux.HandleFunc("POST /games/squadlocke/{gameId}/advance", h.handleAdvance)
	mux.HandleFunc("POST /games/squadlocke/{gameId}/finalize", h.handleFinalize)
	mux.HandleFunc("GET /games/squadlocke/{gameId}/encounter", h.handleGetEncounter)
	mux.HandleFunc("POST /games/squadlocke/{gameId}/encounter", h.handleSaveEncounter)
	mux.HandleFunc("POST /games/squadlocke/{gameId}/encounter/kill", h.handleKillEncounter)
	mux.HandleFunc("POST /games/squadlocke/{gameId}/encounter/evolve", h.handleEvolveEncounter)
	mux.HandleFunc("GET /games/squadlocke/{gameId}/participants/{participantId}", h.handleGetParticipant)
	mux.HandleFunc("POST /games/squadlocke/{gameId}/participants/{participantId}/ready", h.handleReady)
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

type createRequest struct {
	CreatorID string          `json:"creatorId"`
	Settings  domain.Settings `json:"settings"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.service.Create(r.Context(), service.CreateInput{
		CreatorID: req.CreatorID,
		Settings:  req.Settings,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Get(r.Context(), r.PathValue("gameId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type joinRequest struct {
	ParticipantID string `json:"participantId"`
	VersionID     string `json:"versionId"`
	Starter       string `json:"starter"`
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.service.Join(r.Context(), service.JoinInput{
		SessionID:     r.PathValue("gameId"),
		ParticipantID: req.ParticipantID,
		VersionID:     req.VersionID,
		Starter:       req.Starter,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Start(r.Context(), r.PathValue("gameId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleAdvance(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.AdvanceCheckpoint(r.Context(), r.PathValue("gameId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Finalize(r.Context(), r.PathValue("gameId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleGetEncounter(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	in := service.GetEncounterInput{
		SessionID:     r.PathValue("gameId"),
		ParticipantID: query.Get("participantId"),
		LocationID:    query.Get("locationId"),
		DisableFilter: query.Get("disableFilter") == "true",
	}
	for _, mode := range query["mode"] {
		mode = strings.TrimSpace(mode)
		if mode != "" {
			in.Modes = append(in.Modes, encounter.Mode(mode))
		}
	}
	if in.ParticipantID == "" || in.LocationID == "" {
		writeMessage(w, http.StatusBadRequest, "participantId and locationId are required")
		return
	}

	drawn, err := h.service.GetEncounter(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drawn)
}

type saveEncounterRequest struct {
	ParticipantID string        `json:"participantId"`
	LocationID    string        `json:"locationId"`
	Nickname      string        `json:"nickname"`
	AbilityIndex  int           `json:"abilityIndex"`
	Nature        domain.Nature `json:"nature"`
	Gender        domain.Gender `json:"gender"`
	Shiny         bool          `json:"shiny"`
}

func (h *Handler) handleSaveEncounter(w http.ResponseWriter, r *http.Request) {
	var req saveEncounterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	captured, err := h.service.SaveEncounter(r.Context(), service.SaveEncounterInput{
		SessionID:     r.PathValue("gameId"),
		ParticipantID: req.ParticipantID,
		LocationID:    req.LocationID,
		Nickname:      req.Nickname,
		AbilityIndex:  req.AbilityIndex,
		Nature:        req.Nature,
		Gender:        req.Gender,
		Shiny:         req.Shiny,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, captured)
}

type rosterEntryRequest struct {
	ParticipantID string `json:"participantId"`
	LocationID    string `json:"locationId"`
}

func (h *Handler) handleKillEncounter(w http.ResponseWriter, r *http.Request) {
	var req rosterEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	fallen, err := h.service.KillEncounter(r.Context(), r.PathValue("gameId"), req.ParticipantID, req.LocationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fallen)
}

type evolveResponse struct {
	Creature domain.Creature `json:"creature"`
	Evolved  bool            `json:"evolved"`
}

func (h *Handler) handleEvolveEncounter(w http.ResponseWriter, r *http.Request) {
	var req rosterEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	creature, evolved, err := h.service.EvolveEncounter(r.Context(), r.PathValue("gameId"), req.ParticipantID, req.LocationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evolveResponse{Creature: creature, Evolved: evolved})
}

func (h *Handler) handleGetParticipant(w http.ResponseWriter, r *http.Request) {
	participant, err := h.service.GetParticipant(r.Context(), r.PathValue("gameId"), r.PathValue("participantId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, participant)
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Ready(r.Context(), r.PathValue("gameId"), r.PathValue("participantId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handler) handleListByParticipant(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.ListByParticipant(r.Context(), r.PathValue("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionList(sessions))
}

func (h *Handler) handleListJoinable(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeMessage(w, http.StatusBadRequest, "userId is required")
		return
	}
	sessions, err := h.service.ListJoinable(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionList(sessions))
}

// sessionList keeps empty results as [] instead of null.
func sessionList(sessions []domain.Session) []domain.Session {
	if sessions == nil {
		return []domain.Session{}
	}
	return sessions
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeError maps domain and storage errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, domain.ErrParticipantNotFound),
		errors.Is(err, domain.ErrRosterEntryNotFound),
		errors.Is(err, pokeapi.ErrNotFound),
		errors.Is(err, encounter.ErrEmptyPool):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrImproperState),
		errors.Is(err, domain.ErrDuplicateParticipant),
		errors.Is(err, domain.ErrLocationOccupied),
		errors.Is(err, domain.ErrCreatureNotCaptured),
		errors.Is(err, storage.ErrVersionConflict):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEmptyCreatorID),
		errors.Is(err, domain.ErrEmptyGenerationID),
		errors.Is(err, domain.ErrEmptyParticipantID),
		errors.Is(err, pokeapi.ErrNoAbility),
		errors.Is(err, service.ErrUnknownGeneration):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pokeapi.ErrUnavailable):
		writeMessage(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

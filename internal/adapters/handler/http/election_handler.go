package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/domain"
	"github.com/memberhall/elections/internal/core/ports"
)

type ElectionHandler struct {
	elections ports.ElectionService
	lifecycle ports.LifecycleService
}

func NewElectionHandler(elections ports.ElectionService, lifecycle ports.LifecycleService) *ElectionHandler {
	return &ElectionHandler{
		elections: elections,
		lifecycle: lifecycle,
	}
}

type createElectionRequest struct {
	OrganizationID            uuid.UUID           `json:"organization_id"`
	Title                     string              `json:"title"`
	Description               string              `json:"description"`
	StartDate                 time.Time           `json:"start_date"`
	EndDate                   time.Time           `json:"end_date"`
	Positions                 []string            `json:"positions"`
	VotingMethod              string              `json:"voting_method"`
	VictoryCondition          string              `json:"victory_condition"`
	VictoryThreshold          *int                `json:"victory_threshold"`
	VictoryPercentage         *float64            `json:"victory_percentage"`
	AnonymousVoting           bool                `json:"anonymous_voting"`
	MaxVotesPerPosition       int                 `json:"max_votes_per_position"`
	EligibleVoters            []uuid.UUID         `json:"eligible_voters"`
	PositionEligibility       map[string][]string `json:"position_eligibility"`
	BallotItems               []domain.BallotItem `json:"ballot_items"`
	ResultsVisibleImmediately bool                `json:"results_visible_immediately"`
	AllowWriteIns             bool                `json:"allow_write_ins"`
	EnableRunoffs             bool                `json:"enable_runoffs"`
	RunoffType                string              `json:"runoff_type"`
	MaxRunoffRounds           int                 `json:"max_runoff_rounds"`
}

func (h *ElectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	actor, _ := MemberID(r.Context())

	election, err := h.elections.Create(r.Context(), ports.CreateElectionInput{
		OrganizationID:            req.OrganizationID,
		Title:                     req.Title,
		Description:               req.Description,
		StartDate:                 req.StartDate,
		EndDate:                   req.EndDate,
		Positions:                 req.Positions,
		VotingMethod:              domain.VotingMethod(req.VotingMethod),
		VictoryCondition:          domain.VictoryCondition(req.VictoryCondition),
		VictoryThreshold:          req.VictoryThreshold,
		VictoryPercentage:         req.VictoryPercentage,
		AnonymousVoting:           req.AnonymousVoting,
		MaxVotesPerPosition:       req.MaxVotesPerPosition,
		EligibleVoters:            req.EligibleVoters,
		PositionEligibility:       req.PositionEligibility,
		BallotItems:               req.BallotItems,
		ResultsVisibleImmediately: req.ResultsVisibleImmediately,
		AllowWriteIns:             req.AllowWriteIns,
		EnableRunoffs:             req.EnableRunoffs,
		RunoffType:                domain.RunoffType(req.RunoffType),
		MaxRunoffRounds:           req.MaxRunoffRounds,
		CreatedBy:                 actor,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, election)
}

func (h *ElectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	election, err := h.elections.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, election)
}

type nominateRequest struct {
	MemberID     *uuid.UUID `json:"member_id"`
	Name         string     `json:"name"`
	Position     string     `json:"position"`
	IsWriteIn    bool       `json:"is_write_in"`
	DisplayOrder int        `json:"display_order"`
}

func (h *ElectionHandler) Nominate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	var req nominateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	candidate, err := h.elections.Nominate(r.Context(), ports.NominateInput{
		ElectionID:   id,
		MemberID:     req.MemberID,
		Name:         req.Name,
		Position:     req.Position,
		IsWriteIn:    req.IsWriteIn,
		DisplayOrder: req.DisplayOrder,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, candidate)
}

func (h *ElectionHandler) AcceptNomination(w http.ResponseWriter, r *http.Request) {
	electionID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	candidateID, err := pathID(r, "candidateID")
	if err != nil {
		http.Error(w, "invalid candidate id", http.StatusBadRequest)
		return
	}
	candidate, err := h.elections.AcceptNomination(r.Context(), electionID, candidateID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidate)
}

func (h *ElectionHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	candidates, err := h.elections.Candidates(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidates)
}

func (h *ElectionHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	member, ok := MemberID(r.Context())
	if !ok {
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return
	}
	if err := h.elections.CheckIn(r.Context(), id, member); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ElectionHandler) Open(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	actor, _ := MemberID(r.Context())
	election, err := h.lifecycle.Open(r.Context(), id, actor)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, election)
}

func (h *ElectionHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	actor, _ := MemberID(r.Context())
	outcome, err := h.lifecycle.Close(r.Context(), id, actor)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type rollbackRequest struct {
	Reason string `json:"reason"`
}

func (h *ElectionHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	var req rollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	actor, _ := MemberID(r.Context())
	election, err := h.lifecycle.Rollback(r.Context(), id, actor, req.Reason)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, election)
}

func (h *ElectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	actor, _ := MemberID(r.Context())
	if err := h.lifecycle.Delete(r.Context(), id, actor); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ElectionHandler) DestroySalt(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	actor, _ := MemberID(r.Context())
	if err := h.lifecycle.DestroySalt(r.Context(), id, actor); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ElectionHandler) Results(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	results, err := h.lifecycle.Results(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (h *ElectionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	stats, err := h.lifecycle.Stats(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func pathID(r *http.Request, param string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, param))
}

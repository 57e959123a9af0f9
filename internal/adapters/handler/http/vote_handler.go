package http

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/ports"
)

type VoteHandler struct {
	casting ports.CastingService
}

func NewVoteHandler(casting ports.CastingService) *VoteHandler {
	return &VoteHandler{casting: casting}
}

func (h *VoteHandler) CheckEligibility(w http.ResponseWriter, r *http.Request) {
	electionID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	member, ok := MemberID(r.Context())
	if !ok {
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return
	}
	position := r.URL.Query().Get("position")

	eligibility, err := h.casting.CheckEligibility(r.Context(), electionID, member, position)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eligibility)
}

type castVoteRequest struct {
	CandidateID uuid.UUID `json:"candidate_id"`
	Position    string    `json:"position"`
	Rank        int       `json:"rank"`
}

func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	electionID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	member, ok := MemberID(r.Context())
	if !ok {
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return
	}
	var req castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	vote, err := h.casting.CastVote(r.Context(), ports.CastVoteInput{
		ElectionID:  electionID,
		VoterID:     member,
		CandidateID: req.CandidateID,
		Position:    req.Position,
		Rank:        req.Rank,
		Metadata:    requestMetadata(r),
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, vote)
}

type castProxyVoteRequest struct {
	CandidateID     uuid.UUID `json:"candidate_id"`
	AuthorizationID uuid.UUID `json:"authorization_id"`
	Position        string    `json:"position"`
	Rank            int       `json:"rank"`
}

func (h *VoteHandler) CastProxyVote(w http.ResponseWriter, r *http.Request) {
	electionID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	member, ok := MemberID(r.Context())
	if !ok {
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return
	}
	var req castProxyVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	vote, err := h.casting.CastProxyVote(r.Context(), ports.CastProxyVoteInput{
		ElectionID:      electionID,
		ProxyVoterID:    member,
		CandidateID:     req.CandidateID,
		AuthorizationID: req.AuthorizationID,
		Position:        req.Position,
		Rank:            req.Rank,
		Metadata:        requestMetadata(r),
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, vote)
}

type deleteVoteRequest struct {
	Reason string `json:"reason"`
}

func (h *VoteHandler) DeleteVote(w http.ResponseWriter, r *http.Request) {
	voteID, err := pathID(r, "voteID")
	if err != nil {
		http.Error(w, "invalid vote id", http.StatusBadRequest)
		return
	}
	member, ok := MemberID(r.Context())
	if !ok {
		http.Error(w, "missing credentials", http.StatusUnauthorized)
		return
	}
	var req deleteVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.casting.DeleteVote(r.Context(), voteID, member, req.Reason); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requestMetadata(r *http.Request) ports.VoteMetadata {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return ports.VoteMetadata{
		IPAddress: host,
		UserAgent: r.UserAgent(),
	}
}

package http

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/ports"
)

type TokenHandler struct {
	tokens ports.TokenService
}

func NewTokenHandler(tokens ports.TokenService) *TokenHandler {
	return &TokenHandler{tokens: tokens}
}

func (h *TokenHandler) Issue(w http.ResponseWriter, r *http.Request) {
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

	token, err := h.tokens.Issue(r.Context(), electionID, member)
	if err != nil {
		respondError(w, err)
		return
	}
	// The opaque credential is returned once, at issuance.
	writeJSON(w, http.StatusCreated, map[string]any{
		"token":      token.Token,
		"expires_at": token.ExpiresAt,
	})
}

func (h *TokenHandler) IssueAll(w http.ResponseWriter, r *http.Request) {
	electionID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	issued, err := h.tokens.IssueAll(r.Context(), electionID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"issued": issued})
}

func (h *TokenHandler) Peek(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokens.Peek(r.Context(), rawToken(r))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

type redeemSingleRequest struct {
	CandidateID uuid.UUID `json:"candidate_id"`
	Position    string    `json:"position"`
}

func (h *TokenHandler) RedeemSingle(w http.ResponseWriter, r *http.Request) {
	var req redeemSingleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, err := h.tokens.RedeemSingle(r.Context(), rawToken(r), req.CandidateID, req.Position, requestMetadata(r))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

type ballotItemRequest struct {
	Position    string    `json:"position"`
	Choice      string    `json:"choice"`
	CandidateID uuid.UUID `json:"candidate_id"`
	WriteInName string    `json:"write_in_name"`
}

type redeemBallotRequest struct {
	Items []ballotItemRequest `json:"items"`
}

func (h *TokenHandler) RedeemWholeBallot(w http.ResponseWriter, r *http.Request) {
	var req redeemBallotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	items := make([]ports.BallotItemVote, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, ports.BallotItemVote{
			Position:    item.Position,
			Choice:      ports.ItemChoice(item.Choice),
			CandidateID: item.CandidateID,
			WriteInName: item.WriteInName,
		})
	}

	token, err := h.tokens.RedeemWholeBallot(r.Context(), rawToken(r), items, requestMetadata(r))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func rawToken(r *http.Request) string {
	return r.URL.Query().Get("token")
}

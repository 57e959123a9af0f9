package http

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/ports"
)

type ProxyHandler struct {
	proxies ports.ProxyService
}

func NewProxyHandler(proxies ports.ProxyService) *ProxyHandler {
	return &ProxyHandler{proxies: proxies}
}

type grantProxyRequest struct {
	DelegatorID uuid.UUID `json:"delegator_id"`
	ProxyID     uuid.UUID `json:"proxy_id"`
	ProxyType   string    `json:"proxy_type"`
	Reason      string    `json:"reason"`
}

func (h *ProxyHandler) Grant(w http.ResponseWriter, r *http.Request) {
	electionID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	var req grantProxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	actor, _ := MemberID(r.Context())

	authorization, err := h.proxies.Grant(r.Context(), ports.GrantProxyInput{
		ElectionID:  electionID,
		DelegatorID: req.DelegatorID,
		ProxyID:     req.ProxyID,
		ProxyType:   req.ProxyType,
		Reason:      req.Reason,
		GrantedBy:   actor,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, authorization)
}

func (h *ProxyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	electionID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	authorizationID, err := pathID(r, "authorizationID")
	if err != nil {
		http.Error(w, "invalid authorization id", http.StatusBadRequest)
		return
	}
	actor, _ := MemberID(r.Context())

	if err := h.proxies.Revoke(r.Context(), electionID, authorizationID, actor); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

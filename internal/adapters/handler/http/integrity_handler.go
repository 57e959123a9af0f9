package http

import (
	"net/http"

	"github.com/memberhall/elections/internal/core/ports"
)

type IntegrityHandler struct {
	integrity ports.IntegrityService
}

func NewIntegrityHandler(integrity ports.IntegrityService) *IntegrityHandler {
	return &IntegrityHandler{integrity: integrity}
}

func (h *IntegrityHandler) VerifySignatures(w http.ResponseWriter, r *http.Request) {
	electionID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	report, err := h.integrity.VerifySignatures(r.Context(), electionID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *IntegrityHandler) Forensics(w http.ResponseWriter, r *http.Request) {
	electionID, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "invalid election id", http.StatusBadRequest)
		return
	}
	report, err := h.integrity.Forensics(r.Context(), electionID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

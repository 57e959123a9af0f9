package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/memberhall/elections/internal/core/domain"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// respondError maps domain sentinels onto HTTP statuses. Unknown errors are
// masked as 500 so repository details never reach clients.
func respondError(w http.ResponseWriter, err error) {
	var ineligible *domain.IneligibleError
	if errors.As(err, &ineligible) {
		http.Error(w, ineligible.Error(), http.StatusForbidden)
		return
	}

	switch {
	case errors.Is(err, domain.ErrElectionNotFound),
		errors.Is(err, domain.ErrCandidateNotFound),
		errors.Is(err, domain.ErrVoteNotFound),
		errors.Is(err, domain.ErrTokenNotFound),
		errors.Is(err, domain.ErrAuthorizationNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)

	case errors.Is(err, domain.ErrAlreadyVoted),
		errors.Is(err, domain.ErrVoteLimitReached),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNoAcceptedCandidates),
		errors.Is(err, domain.ErrElectionHasVotes),
		errors.Is(err, domain.ErrElectionNotClosed),
		errors.Is(err, domain.ErrElectionNotOpen),
		errors.Is(err, domain.ErrDuplicateAuthorization),
		errors.Is(err, domain.ErrAuthorizationUsed),
		errors.Is(err, domain.ErrTokenUsed),
		errors.Is(err, domain.ErrTokenExpired):
		http.Error(w, err.Error(), http.StatusConflict)

	case errors.Is(err, domain.ErrResultsNotVisible),
		errors.Is(err, domain.ErrProxyVotingDisabled),
		errors.Is(err, domain.ErrAuthorizationRevoked),
		errors.Is(err, domain.ErrNotAuthorizedProxy):
		http.Error(w, err.Error(), http.StatusForbidden)

	case errors.Is(err, domain.ErrCandidateMismatch),
		errors.Is(err, domain.ErrCandidateNotAccepted),
		errors.Is(err, domain.ErrSelfProxy),
		errors.Is(err, domain.ErrUnknownPosition),
		errors.Is(err, domain.ErrWriteInsClosed):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)

	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

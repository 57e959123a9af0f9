package domain

import "errors"

var (
	ErrElectionNotFound      = errors.New("election not found")
	ErrCandidateNotFound     = errors.New("candidate not found")
	ErrTokenNotFound         = errors.New("voting token not found")
	ErrVoteNotFound          = errors.New("vote not found")
	ErrAuthorizationNotFound = errors.New("proxy authorization not found")

	ErrAlreadyVoted     = errors.New("a vote has already been recorded for this position")
	ErrVoteLimitReached = errors.New("maximum votes for this position reached")

	ErrInvalidTransition    = errors.New("invalid election status transition")
	ErrNoAcceptedCandidates = errors.New("election has no accepted candidates")
	ErrResultsNotVisible    = errors.New("results are not visible until the election is closed")
	ErrElectionHasVotes     = errors.New("election has recorded votes and cannot be deleted")
	ErrElectionNotClosed    = errors.New("election is not closed")

	ErrCandidateMismatch    = errors.New("candidate does not belong to this election or position")
	ErrCandidateNotAccepted = errors.New("candidate has not accepted the nomination")

	ErrProxyVotingDisabled    = errors.New("proxy voting is not enabled for this organization")
	ErrSelfProxy              = errors.New("a member cannot act as their own proxy")
	ErrDuplicateAuthorization = errors.New("member already has an active proxy authorization")
	ErrAuthorizationRevoked   = errors.New("proxy authorization has been revoked")
	ErrAuthorizationUsed      = errors.New("a vote has been cast under this authorization")
	ErrNotAuthorizedProxy     = errors.New("authorization is not held by this proxy")

	ErrTokenExpired    = errors.New("voting token has expired")
	ErrTokenUsed       = errors.New("voting token has already been used")
	ErrElectionNotOpen = errors.New("election is not open for voting")
	ErrUnknownPosition = errors.New("position is not contested in this election")
	ErrWriteInsClosed  = errors.New("write-in candidates are not allowed in this election")
)

// IneligibleError carries an eligibility evaluator's user-facing reason
// through an error-returning call path. It is an expected outcome and is
// never logged as a failure.
type IneligibleError struct {
	Reason string
}

func (e *IneligibleError) Error() string { return e.Reason }

func Ineligible(reason string) error { return &IneligibleError{Reason: reason} }


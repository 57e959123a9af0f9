package domain

import (
	"time"

	"github.com/google/uuid"
)

// Eligibility is the structured outcome of an eligibility evaluation.
// Ineligibility is a normal result, not an error; Reason is human-readable
// and user-facing.
type Eligibility struct {
	Eligible           bool     `json:"is_eligible"`
	HasVoted           bool     `json:"has_voted"`
	PositionsVoted     []string `json:"positions_voted,omitempty"`
	PositionsRemaining []string `json:"positions_remaining,omitempty"`
	Reason             string   `json:"reason,omitempty"`
}

type CandidateResult struct {
	CandidateID uuid.UUID `json:"candidate_id"`
	Name        string    `json:"name"`
	Position    string    `json:"position,omitempty"`
	VoteCount   int       `json:"vote_count"`
	Percentage  float64   `json:"percentage"`
	IsWinner    bool      `json:"is_winner"`
}

// IRVRound records one instant-runoff round for result transparency.
type IRVRound struct {
	Round      int               `json:"round"`
	Counts     map[uuid.UUID]int `json:"counts"`
	Eliminated []uuid.UUID       `json:"eliminated,omitempty"`
}

type PositionResult struct {
	Position  string            `json:"position,omitempty"`
	Results   []CandidateResult `json:"results"`
	Rounds    []IRVRound        `json:"rounds,omitempty"`
	HasWinner bool              `json:"has_winner"`
}

type ElectionResults struct {
	ElectionID     uuid.UUID        `json:"election_id"`
	Overall        PositionResult   `json:"overall"`
	ByPosition     []PositionResult `json:"by_position,omitempty"`
	TotalVotes     int              `json:"total_votes"`
	DistinctVoters int              `json:"distinct_voters"`
	ComputedAt     time.Time        `json:"computed_at"`
}

// HasWinner reports whether the overall race or every declared position
// produced at least one winner.
func (r *ElectionResults) HasWinner() bool {
	if len(r.ByPosition) == 0 {
		return r.Overall.HasWinner
	}
	for _, pr := range r.ByPosition {
		if !pr.HasWinner {
			return false
		}
	}
	return true
}

// ElectionStats is the ungated ballot-count view available while an election
// is still open.
type ElectionStats struct {
	ElectionID     uuid.UUID      `json:"election_id"`
	Status         ElectionStatus `json:"status"`
	TokensIssued   int            `json:"tokens_issued"`
	TokensUsed     int            `json:"tokens_used"`
	VotesReceived  int            `json:"votes_received"`
	DistinctVoters int            `json:"distinct_voters"`
	TurnoutPercent float64        `json:"turnout_percent"`
}

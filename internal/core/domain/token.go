package domain

import (
	"time"

	"github.com/google/uuid"
)

// VotingToken is a single-issuance anonymous ballot credential. It is bound
// to the voter through the election's anonymity salt, never through the
// member id, and is correlated with votes only by the resulting hash.
type VotingToken struct {
	ID         uuid.UUID `json:"id"`
	Token      string    `json:"-"`
	ElectionID uuid.UUID `json:"election_id"`
	VoterHash  string    `json:"-"`

	ExpiresAt time.Time  `json:"expires_at"`
	Used      bool       `json:"used"`
	UsedAt    *time.Time `json:"used_at,omitempty"`

	FirstAccessedAt *time.Time `json:"first_accessed_at,omitempty"`
	AccessCount     int        `json:"access_count"`

	// PositionsVoted tracks partial redemption of multi-position ballots.
	PositionsVoted []string `json:"positions_voted,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

func (t *VotingToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func (t *VotingToken) PositionVoted(position string) bool {
	for _, p := range t.PositionsVoted {
		if p == position {
			return true
		}
	}
	return false
}

// CoversAll reports whether every required position has been redeemed.
func (t *VotingToken) CoversAll(positions []string) bool {
	for _, p := range positions {
		if !t.PositionVoted(p) {
			return false
		}
	}
	return true
}

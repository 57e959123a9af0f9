package domain

import (
	"time"

	"github.com/google/uuid"
)

type SignatureReport struct {
	ElectionID  uuid.UUID   `json:"election_id"`
	Total       int         `json:"total"`
	Valid       int         `json:"valid"`
	Unsigned    int         `json:"unsigned"`
	TamperedIDs []uuid.UUID `json:"tampered_ids,omitempty"`
}

func (r *SignatureReport) Clean() bool {
	return r.Unsigned == 0 && len(r.TamperedIDs) == 0
}

type DeletedVoteSummary struct {
	VoteID    uuid.UUID  `json:"vote_id"`
	Position  string     `json:"position,omitempty"`
	DeletedAt time.Time  `json:"deleted_at"`
	DeletedBy *uuid.UUID `json:"deleted_by,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

type ProxyVoteSummary struct {
	AuthorizationID uuid.UUID `json:"authorization_id"`
	ProxyVoterID    uuid.UUID `json:"proxy_voter_id"`
	Votes           int       `json:"votes"`
}

// ForensicsReport is the read-only post-election composite; it never alters
// outcomes.
type ForensicsReport struct {
	ElectionID     uuid.UUID            `json:"election_id"`
	Signatures     SignatureReport      `json:"signatures"`
	DeletedVotes   []DeletedVoteSummary `json:"deleted_votes,omitempty"`
	TokensIssued   int                  `json:"tokens_issued"`
	TokensUsed     int                  `json:"tokens_used"`
	VotesByIP      map[string]int       `json:"votes_by_ip,omitempty"`
	SuspiciousIPs  []string             `json:"suspicious_ips,omitempty"`
	HourlyTimeline map[string]int       `json:"hourly_timeline,omitempty"`
	ProxyVotes     []ProxyVoteSummary   `json:"proxy_votes,omitempty"`
	GeneratedAt    time.Time            `json:"generated_at"`
}

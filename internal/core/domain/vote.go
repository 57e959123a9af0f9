package domain

import (
	"time"

	"github.com/google/uuid"
)

// VoterRef identifies the voter behind a vote: either a member id (named
// elections) or an anonymity hash (anonymous elections), never both. The
// zero value is invalid; construct through IdentifiedVoter or AnonymousVoter.
type VoterRef struct {
	id        uuid.UUID
	hash      string
	anonymous bool
}

func IdentifiedVoter(memberID uuid.UUID) VoterRef {
	return VoterRef{id: memberID}
}

func AnonymousVoter(hash string) VoterRef {
	return VoterRef{hash: hash, anonymous: true}
}

func (v VoterRef) Anonymous() bool { return v.anonymous }

// MemberID returns the member identity, valid only for identified voters.
func (v VoterRef) MemberID() (uuid.UUID, bool) {
	if v.anonymous {
		return uuid.Nil, false
	}
	return v.id, true
}

// Hash returns the anonymity hash, valid only for anonymous voters.
func (v VoterRef) Hash() (string, bool) {
	if !v.anonymous {
		return "", false
	}
	return v.hash, true
}

// Key is the voter's uniqueness-key component. Identified and anonymous
// voters occupy disjoint key spaces.
func (v VoterRef) Key() string {
	if v.anonymous {
		return "hash:" + v.hash
	}
	return "id:" + v.id.String()
}

func (v VoterRef) IsZero() bool {
	return !v.anonymous && v.id == uuid.Nil
}

// Vote is immutable once signed. The scope key is the storage-level defense
// against double voting; see Election.VoteScopeKey.
type Vote struct {
	ID          uuid.UUID `json:"id"`
	ElectionID  uuid.UUID `json:"election_id"`
	CandidateID uuid.UUID `json:"candidate_id"`
	Position    string    `json:"position,omitempty"`

	Voter    VoterRef `json:"-"`
	ScopeKey string   `json:"-"`

	// Rank orders ranked-choice ballots, ascending. Zero means unranked and
	// sorts after every explicit rank.
	Rank int `json:"rank,omitempty"`

	IPAddress string    `json:"-"`
	UserAgent string    `json:"-"`
	VotedAt   time.Time `json:"voted_at"`
	Signature string    `json:"-"`

	IsProxyVote          bool       `json:"is_proxy_vote"`
	ProxyVoterID         *uuid.UUID `json:"proxy_voter_id,omitempty"`
	ProxyDelegatorID     *uuid.UUID `json:"proxy_delegator_id,omitempty"`
	ProxyAuthorizationID *uuid.UUID `json:"proxy_authorization_id,omitempty"`

	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	DeletedBy      *uuid.UUID `json:"deleted_by,omitempty"`
	DeletionReason string     `json:"deletion_reason,omitempty"`
}

func (v *Vote) Active() bool { return v.DeletedAt == nil }

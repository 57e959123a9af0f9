package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProxyAuthorization is an embedded record on the election: a delegation of
// one member's ballot to another. At most one non-revoked authorization may
// exist per delegating member per election.
type ProxyAuthorization struct {
	ID           uuid.UUID  `json:"id"`
	DelegatorID  uuid.UUID  `json:"delegator_id"`
	ProxyID      uuid.UUID  `json:"proxy_id"`
	ProxyType    string     `json:"proxy_type"`
	Reason       string     `json:"reason,omitempty"`
	GrantedBy    uuid.UUID  `json:"granted_by"`
	AuthorizedAt time.Time  `json:"authorized_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
}

func (a *ProxyAuthorization) Active() bool { return a.RevokedAt == nil }

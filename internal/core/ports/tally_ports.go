package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/domain"
)

// TallyService computes results from stored votes. It is read-only and
// idempotent; callers may run it arbitrarily often.
type TallyService interface {
	Tally(election *domain.Election, candidates []domain.Candidate, votes []domain.Vote) *domain.ElectionResults
}

type GrantProxyInput struct {
	ElectionID  uuid.UUID
	DelegatorID uuid.UUID
	ProxyID     uuid.UUID
	ProxyType   string
	Reason      string
	GrantedBy   uuid.UUID
}

type ProxyService interface {
	Grant(ctx context.Context, input GrantProxyInput) (*domain.ProxyAuthorization, error)
	Revoke(ctx context.Context, electionID, authorizationID, revokedBy uuid.UUID) error
}

type IntegrityService interface {
	VerifySignatures(ctx context.Context, electionID uuid.UUID) (*domain.SignatureReport, error)
	Forensics(ctx context.Context, electionID uuid.UUID) (*domain.ForensicsReport, error)
}

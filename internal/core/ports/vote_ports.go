package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/domain"
)

type VoteRepository interface {
	// Save persists the vote, returning domain.ErrAlreadyVoted when another
	// active vote already holds the same scope key. The attempted row must
	// not persist on conflict.
	Save(ctx context.Context, vote *domain.Vote) error

	GetByID(ctx context.Context, id uuid.UUID) (*domain.Vote, error)
	ListActive(ctx context.Context, electionID uuid.UUID) ([]domain.Vote, error)
	ListActiveByVoter(ctx context.Context, electionID uuid.UUID, voter domain.VoterRef) ([]domain.Vote, error)
	ListDeleted(ctx context.Context, electionID uuid.UUID) ([]domain.Vote, error)
	SoftDelete(ctx context.Context, id, deletedBy uuid.UUID, reason string) error
	HasProxyVote(ctx context.Context, electionID, authorizationID uuid.UUID) (bool, error)
	CountActive(ctx context.Context, electionID uuid.UUID) (int, error)
}

type VoteMetadata struct {
	IPAddress string
	UserAgent string
}

type CastVoteInput struct {
	ElectionID  uuid.UUID
	VoterID     uuid.UUID
	CandidateID uuid.UUID
	Position    string
	Rank        int
	Metadata    VoteMetadata
}

type CastProxyVoteInput struct {
	ElectionID      uuid.UUID
	ProxyVoterID    uuid.UUID
	CandidateID     uuid.UUID
	AuthorizationID uuid.UUID
	Position        string
	Rank            int
	Metadata        VoteMetadata
}

type CastingService interface {
	CheckEligibility(ctx context.Context, electionID, voterID uuid.UUID, position string) (*domain.Eligibility, error)
	CastVote(ctx context.Context, input CastVoteInput) (*domain.Vote, error)
	CastProxyVote(ctx context.Context, input CastProxyVoteInput) (*domain.Vote, error)
	DeleteVote(ctx context.Context, voteID, deletedBy uuid.UUID, reason string) error
}

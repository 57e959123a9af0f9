package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/domain"
)

type TokenRepository interface {
	Save(ctx context.Context, token *domain.VotingToken) error
	GetByToken(ctx context.Context, token string) (*domain.VotingToken, error)
	GetByVoterHash(ctx context.Context, electionID uuid.UUID, voterHash string) (*domain.VotingToken, error)
	RecordAccess(ctx context.Context, id uuid.UUID, at time.Time) error

	// Redeem commits the votes and the token state change as one atomic
	// unit. The voted positions are merged against the stored row, not the
	// caller's snapshot, so concurrent redemptions serialize; the token
	// turns used once the merged set covers every contested position. Any
	// position or scope-key conflict aborts the whole batch with
	// domain.ErrAlreadyVoted and leaves the token untouched. On success the
	// passed token reflects the committed state.
	Redeem(ctx context.Context, token *domain.VotingToken, positions []string, votes []*domain.Vote) error

	Counts(ctx context.Context, electionID uuid.UUID) (issued, used int, err error)
}

// ItemChoice resolves one whole-ballot item.
type ItemChoice string

const (
	ChoiceApprove   ItemChoice = "approve"
	ChoiceDeny      ItemChoice = "deny"
	ChoiceWriteIn   ItemChoice = "write_in"
	ChoiceAbstain   ItemChoice = "abstain"
	ChoiceCandidate ItemChoice = "candidate"
)

type BallotItemVote struct {
	Position    string
	Choice      ItemChoice
	CandidateID uuid.UUID
	WriteInName string
}

type TokenService interface {
	Issue(ctx context.Context, electionID, memberID uuid.UUID) (*domain.VotingToken, error)
	// IssueAll issues a token for every eligible voter and hands the batch to
	// the notifier; returns the number issued.
	IssueAll(ctx context.Context, electionID uuid.UUID) (int, error)
	// Peek resolves a token and records the access without redeeming it.
	Peek(ctx context.Context, token string) (*domain.VotingToken, error)
	RedeemSingle(ctx context.Context, token string, candidateID uuid.UUID, position string, meta VoteMetadata) (*domain.VotingToken, error)
	RedeemWholeBallot(ctx context.Context, token string, items []BallotItemVote, meta VoteMetadata) (*domain.VotingToken, error)
}

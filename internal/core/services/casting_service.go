package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/domain"
	"github.com/memberhall/elections/internal/core/ports"
)

// castingService orchestrates direct and proxy vote casting: eligibility,
// candidate validation, anonymization, signing, and the conflict-aware write.
type castingService struct {
	electionRepo ports.ElectionRepository
	voteRepo     ports.VoteRepository
	eligibility  *EligibilityEvaluator
	hasher       *VoterHasher
	signer       *VoteSigner
	audit        ports.AuditSink
	now          func() time.Time
}

func NewCastingService(
	electionRepo ports.ElectionRepository,
	voteRepo ports.VoteRepository,
	eligibility *EligibilityEvaluator,
	hasher *VoterHasher,
	signer *VoteSigner,
	audit ports.AuditSink,
) ports.CastingService {
	return &castingService{
		electionRepo: electionRepo,
		voteRepo:     voteRepo,
		eligibility:  eligibility,
		hasher:       hasher,
		signer:       signer,
		audit:        audit,
		now:          time.Now,
	}
}

func (s *castingService) CheckEligibility(ctx context.Context, electionID, voterID uuid.UUID, position string) (*domain.Eligibility, error) {
	election, err := s.electionRepo.GetByID(ctx, electionID)
	if err != nil {
		return nil, err
	}
	return s.eligibility.Evaluate(ctx, election, voterID, position)
}

func (s *castingService) CastVote(ctx context.Context, input ports.CastVoteInput) (*domain.Vote, error) {
	election, err := s.electionRepo.GetByID(ctx, input.ElectionID)
	if err != nil {
		return nil, err
	}

	elig, err := s.eligibility.Evaluate(ctx, election, input.VoterID, input.Position)
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		return nil, domain.Ineligible(elig.Reason)
	}

	voter := s.voterRef(election, input.VoterID)
	vote, err := s.buildVote(ctx, election, voter, input.CandidateID, input.Position, input.Rank, input.Metadata)
	if err != nil {
		return nil, err
	}

	return s.persist(ctx, election, vote, input.VoterID)
}

func (s *castingService) CastProxyVote(ctx context.Context, input ports.CastProxyVoteInput) (*domain.Vote, error) {
	election, err := s.electionRepo.GetByID(ctx, input.ElectionID)
	if err != nil {
		return nil, err
	}

	auth := election.Authorization(input.AuthorizationID)
	if auth == nil {
		return nil, domain.ErrAuthorizationNotFound
	}
	if auth.ProxyID != input.ProxyVoterID {
		return nil, domain.ErrNotAuthorizedProxy
	}
	if !auth.Active() {
		return nil, domain.ErrAuthorizationRevoked
	}

	// Eligibility is evaluated for the delegating member, not the proxy.
	elig, err := s.eligibility.Evaluate(ctx, election, auth.DelegatorID, input.Position)
	if err != nil {
		return nil, err
	}
	if !elig.Eligible {
		return nil, domain.Ineligible(elig.Reason)
	}

	voter := s.voterRef(election, auth.DelegatorID)
	vote, err := s.buildVote(ctx, election, voter, input.CandidateID, input.Position, input.Rank, input.Metadata)
	if err != nil {
		return nil, err
	}

	vote.IsProxyVote = true
	proxyID := input.ProxyVoterID
	delegatorID := auth.DelegatorID
	authID := auth.ID
	vote.ProxyVoterID = &proxyID
	vote.ProxyDelegatorID = &delegatorID
	vote.ProxyAuthorizationID = &authID
	vote.Signature = s.signer.Sign(vote)

	return s.persist(ctx, election, vote, input.ProxyVoterID)
}

func (s *castingService) DeleteVote(ctx context.Context, voteID, deletedBy uuid.UUID, reason string) error {
	vote, err := s.voteRepo.GetByID(ctx, voteID)
	if err != nil {
		return err
	}
	if err := s.voteRepo.SoftDelete(ctx, voteID, deletedBy, reason); err != nil {
		return err
	}
	ev := domain.NewAuditEvent("vote_deleted", domain.SeverityHigh, map[string]any{
		"election_id": vote.ElectionID.String(),
		"vote_id":     voteID.String(),
		"position":    vote.Position,
		"reason":      reason,
	})
	ev.UserID = &deletedBy
	_ = s.audit.Record(ctx, ev)
	return nil
}

// buildVote validates the candidate, enforces the per-position cap, and
// returns a signed vote ready to persist.
func (s *castingService) buildVote(ctx context.Context, election *domain.Election, voter domain.VoterRef, candidateID uuid.UUID, position string, rank int, meta ports.VoteMetadata) (*domain.Vote, error) {
	// A positional election only accepts votes for its contested positions.
	// An empty or invented position would mint a scope key outside the
	// per-position uniqueness guarantee.
	if len(election.Positions) > 0 && !election.HasPosition(position) {
		return nil, domain.ErrUnknownPosition
	}

	candidate, err := s.electionRepo.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if candidate.ElectionID != election.ID {
		return nil, domain.ErrCandidateMismatch
	}
	if !candidate.Votable() {
		return nil, domain.ErrCandidateNotAccepted
	}
	if candidate.Position != position {
		return nil, domain.ErrCandidateMismatch
	}

	if limit := election.VotesPerPositionLimit(); limit != 0 {
		existing, err := s.voteRepo.ListActiveByVoter(ctx, election.ID, voter)
		if err != nil {
			return nil, fmt.Errorf("failed to look up existing votes: %w", err)
		}
		count := 0
		for _, v := range existing {
			if v.Position == position {
				count++
			}
		}
		if count >= limit {
			return nil, domain.ErrVoteLimitReached
		}
	}

	vote := &domain.Vote{
		ID:          uuid.New(),
		ElectionID:  election.ID,
		CandidateID: candidate.ID,
		Position:    position,
		Voter:       voter,
		ScopeKey:    election.VoteScopeKey(position, voter, candidate.ID),
		Rank:        rank,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		VotedAt:     s.now(),
	}
	vote.Signature = s.signer.Sign(vote)
	return vote, nil
}

// persist writes the vote. A scope-key conflict is the last line of defense
// against a race between the eligibility read and this write: it is an
// expected outcome, surfaced as "already voted" with a warning audit event.
func (s *castingService) persist(ctx context.Context, election *domain.Election, vote *domain.Vote, actorID uuid.UUID) (*domain.Vote, error) {
	if err := s.voteRepo.Save(ctx, vote); err != nil {
		if errors.Is(err, domain.ErrAlreadyVoted) {
			ev := domain.NewAuditEvent("double_vote_attempt", domain.SeverityWarning, map[string]any{
				"election_id": election.ID.String(),
				"position":    vote.Position,
			})
			ev.IPAddress = vote.IPAddress
			if !election.AnonymousVoting {
				id := actorID
				ev.UserID = &id
			}
			_ = s.audit.Record(ctx, ev)
			return nil, domain.ErrAlreadyVoted
		}
		return nil, err
	}

	ev := domain.NewAuditEvent("vote_cast", domain.SeverityInfo, map[string]any{
		"election_id": election.ID.String(),
		"position":    vote.Position,
		"proxy":       vote.IsProxyVote,
		"anonymous":   election.AnonymousVoting,
	})
	ev.IPAddress = vote.IPAddress
	if !election.AnonymousVoting {
		id := actorID
		ev.UserID = &id
	}
	_ = s.audit.Record(ctx, ev)
	return vote, nil
}

func (s *castingService) voterRef(election *domain.Election, voterID uuid.UUID) domain.VoterRef {
	if election.AnonymousVoting {
		return domain.AnonymousVoter(s.hasher.Hash(voterID, election.ID, election.AnonymitySalt))
	}
	return domain.IdentifiedVoter(voterID)
}

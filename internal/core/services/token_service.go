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

const (
	tokenByteLength = 24
	tokenMaxAge     = 30 * 24 * time.Hour
)

// tokenService issues and redeems anonymous ballot tokens. A token is bound
// to its voter only through the election's anonymity salt; redemption never
// learns the member id.
type tokenService struct {
	electionRepo ports.ElectionRepository
	tokenRepo    ports.TokenRepository
	members      ports.MemberDirectory
	notifier     ports.Notifier
	hasher       *VoterHasher
	signer       *VoteSigner
	audit        ports.AuditSink
	now          func() time.Time
}

func NewTokenService(
	electionRepo ports.ElectionRepository,
	tokenRepo ports.TokenRepository,
	members ports.MemberDirectory,
	notifier ports.Notifier,
	hasher *VoterHasher,
	signer *VoteSigner,
	audit ports.AuditSink,
) ports.TokenService {
	return &tokenService{
		electionRepo: electionRepo,
		tokenRepo:    tokenRepo,
		members:      members,
		notifier:     notifier,
		hasher:       hasher,
		signer:       signer,
		audit:        audit,
		now:          time.Now,
	}
}

func (s *tokenService) Issue(ctx context.Context, electionID, memberID uuid.UUID) (*domain.VotingToken, error) {
	election, err := s.electionRepo.GetByID(ctx, electionID)
	if err != nil {
		return nil, err
	}

	voterHash := s.hasher.Hash(memberID, election.ID, election.AnonymitySalt)

	// One issuance per (voter, election); reissuing returns the live token.
	if existing, err := s.tokenRepo.GetByVoterHash(ctx, electionID, voterHash); err == nil && existing != nil {
		return existing, nil
	} else if err != nil && !errors.Is(err, domain.ErrTokenNotFound) {
		return nil, err
	}

	raw, err := randomString(tokenByteLength)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expires := election.EndDate
	if maxExpiry := now.Add(tokenMaxAge); maxExpiry.Before(expires) {
		expires = maxExpiry
	}

	token := &domain.VotingToken{
		ID:         uuid.New(),
		Token:      raw,
		ElectionID: election.ID,
		VoterHash:  voterHash,
		ExpiresAt:  expires,
		CreatedAt:  now,
	}
	if err := s.tokenRepo.Save(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

func (s *tokenService) IssueAll(ctx context.Context, electionID uuid.UUID) (int, error) {
	election, err := s.electionRepo.GetByID(ctx, electionID)
	if err != nil {
		return 0, err
	}

	voters := election.EligibleVoters
	if voters == nil {
		voters, err = s.members.ActiveMemberIDs(ctx, election.OrganizationID)
		if err != nil {
			return 0, err
		}
	}

	var invites []ports.BallotInvite
	for _, memberID := range voters {
		token, err := s.Issue(ctx, electionID, memberID)
		if err != nil {
			return len(invites), err
		}
		invites = append(invites, ports.BallotInvite{MemberID: memberID, Token: token.Token})
	}

	if len(invites) > 0 {
		if err := s.notifier.SendBallots(ctx, election, invites); err != nil {
			return len(invites), fmt.Errorf("tokens issued but ballot notification failed: %w", err)
		}
	}

	_ = s.audit.Record(ctx, domain.NewAuditEvent("ballots_issued", domain.SeverityInfo, map[string]any{
		"election_id": election.ID.String(),
		"count":       len(invites),
	}))
	return len(invites), nil
}

func (s *tokenService) Peek(ctx context.Context, token string) (*domain.VotingToken, error) {
	tok, err := s.tokenRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.tokenRepo.RecordAccess(ctx, tok.ID, now); err != nil {
		return nil, err
	}
	if tok.FirstAccessedAt == nil {
		tok.FirstAccessedAt = &now
	}
	tok.AccessCount++
	return tok, nil
}

func (s *tokenService) RedeemSingle(ctx context.Context, token string, candidateID uuid.UUID, position string, meta ports.VoteMetadata) (*domain.VotingToken, error) {
	tok, election, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	if len(election.Positions) > 0 && !election.HasPosition(position) {
		return nil, domain.ErrUnknownPosition
	}
	if tok.PositionVoted(position) {
		return nil, domain.ErrAlreadyVoted
	}

	vote, err := s.buildTokenVote(ctx, election, tok, candidateID, position, meta)
	if err != nil {
		return nil, err
	}

	updated := *tok
	updated.PositionsVoted = append(append([]string(nil), tok.PositionsVoted...), position)
	if updated.CoversAll(election.PositionNames()) {
		now := s.now()
		updated.Used = true
		updated.UsedAt = &now
	}

	if err := s.commit(ctx, election, &updated, []*domain.Vote{vote}, meta); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *tokenService) RedeemWholeBallot(ctx context.Context, token string, items []ports.BallotItemVote, meta ports.VoteMetadata) (*domain.VotingToken, error) {
	tok, election, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	updated := *tok
	updated.PositionsVoted = append([]string(nil), tok.PositionsVoted...)

	var votes []*domain.Vote
	for _, item := range items {
		if len(election.Positions) > 0 && !election.HasPosition(item.Position) {
			return nil, domain.ErrUnknownPosition
		}
		if item.Choice == ports.ChoiceAbstain {
			continue
		}
		// Any collision aborts the entire submission before any row commits,
		// including two items naming the same position within this ballot.
		if updated.PositionVoted(item.Position) {
			return nil, domain.ErrAlreadyVoted
		}

		candidateID, err := s.resolveChoice(ctx, election, item)
		if err != nil {
			return nil, err
		}
		vote, err := s.buildTokenVote(ctx, election, tok, candidateID, item.Position, meta)
		if err != nil {
			return nil, err
		}
		votes = append(votes, vote)
		updated.PositionsVoted = append(updated.PositionsVoted, item.Position)
	}

	// The token is marked fully used regardless of abstentions.
	now := s.now()
	updated.Used = true
	updated.UsedAt = &now

	if err := s.commit(ctx, election, &updated, votes, meta); err != nil {
		return nil, err
	}
	return &updated, nil
}

// resolve loads the token and its election and runs the shared validity
// checks: expiry, prior full use, election open and inside its window.
func (s *tokenService) resolve(ctx context.Context, token string) (*domain.VotingToken, *domain.Election, error) {
	tok, err := s.tokenRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	if tok.Expired(now) {
		return nil, nil, domain.ErrTokenExpired
	}
	if tok.Used {
		return nil, nil, domain.ErrTokenUsed
	}

	election, err := s.electionRepo.GetByID(ctx, tok.ElectionID)
	if err != nil {
		return nil, nil, err
	}
	if election.Status != domain.StatusOpen || !election.WithinWindow(now) {
		return nil, nil, domain.ErrElectionNotOpen
	}
	return tok, election, nil
}

// resolveChoice maps a ballot-item decision to a candidate id, synthesizing
// shared Approve/Deny rows and write-in rows on first use.
func (s *tokenService) resolveChoice(ctx context.Context, election *domain.Election, item ports.BallotItemVote) (uuid.UUID, error) {
	switch item.Choice {
	case ports.ChoiceCandidate:
		return item.CandidateID, nil

	case ports.ChoiceApprove, ports.ChoiceDeny:
		name := "Approve"
		if item.Choice == ports.ChoiceDeny {
			name = "Deny"
		}
		c, err := s.electionRepo.EnsureSynthesizedCandidate(ctx, &domain.Candidate{
			ID:          uuid.New(),
			ElectionID:  election.ID,
			Name:        name,
			Position:    item.Position,
			Accepted:    true,
			Synthesized: true,
			CreatedAt:   s.now(),
		})
		if err != nil {
			return uuid.Nil, err
		}
		return c.ID, nil

	case ports.ChoiceWriteIn:
		if !election.AllowWriteIns {
			return uuid.Nil, domain.ErrWriteInsClosed
		}
		if item.WriteInName == "" {
			return uuid.Nil, domain.ErrCandidateNotFound
		}
		c, err := s.electionRepo.EnsureSynthesizedCandidate(ctx, &domain.Candidate{
			ID:          uuid.New(),
			ElectionID:  election.ID,
			Name:        item.WriteInName,
			Position:    item.Position,
			IsWriteIn:   true,
			Synthesized: true,
			CreatedAt:   s.now(),
		})
		if err != nil {
			return uuid.Nil, err
		}
		return c.ID, nil

	default:
		return uuid.Nil, fmt.Errorf("unknown ballot choice %q", item.Choice)
	}
}

func (s *tokenService) buildTokenVote(ctx context.Context, election *domain.Election, tok *domain.VotingToken, candidateID uuid.UUID, position string, meta ports.VoteMetadata) (*domain.Vote, error) {
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

	voter := domain.AnonymousVoter(tok.VoterHash)
	vote := &domain.Vote{
		ID:          uuid.New(),
		ElectionID:  election.ID,
		CandidateID: candidate.ID,
		Position:    position,
		Voter:       voter,
		ScopeKey:    election.VoteScopeKey(position, voter, candidate.ID),
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		VotedAt:     s.now(),
	}
	vote.Signature = s.signer.Sign(vote)
	return vote, nil
}

// commit writes votes and the token state as one atomic unit; a scope-key
// conflict aborts everything and surfaces as the expected double-vote error.
func (s *tokenService) commit(ctx context.Context, election *domain.Election, tok *domain.VotingToken, votes []*domain.Vote, meta ports.VoteMetadata) error {
	if err := s.tokenRepo.Redeem(ctx, tok, election.PositionNames(), votes); err != nil {
		if errors.Is(err, domain.ErrAlreadyVoted) {
			ev := domain.NewAuditEvent("double_vote_attempt", domain.SeverityWarning, map[string]any{
				"election_id": election.ID.String(),
				"via":         "token",
			})
			ev.IPAddress = meta.IPAddress
			_ = s.audit.Record(ctx, ev)
		}
		return err
	}

	ev := domain.NewAuditEvent("token_redeemed", domain.SeverityInfo, map[string]any{
		"election_id": election.ID.String(),
		"votes":       len(votes),
		"fully_used":  tok.Used,
	})
	ev.IPAddress = meta.IPAddress
	_ = s.audit.Record(ctx, ev)
	return nil
}

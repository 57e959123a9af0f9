package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/domain"
	"github.com/memberhall/elections/internal/core/ports"
)

// EligibilityEvaluator decides whether a member may vote for a position.
// Checks run in a fixed order and short-circuit on the first failure;
// "not eligible" is a normal outcome, never an error.
type EligibilityEvaluator struct {
	voteRepo ports.VoteRepository
	members  ports.MemberDirectory
	hasher   *VoterHasher
	now      func() time.Time
}

func NewEligibilityEvaluator(voteRepo ports.VoteRepository, members ports.MemberDirectory, hasher *VoterHasher) *EligibilityEvaluator {
	return &EligibilityEvaluator{
		voteRepo: voteRepo,
		members:  members,
		hasher:   hasher,
		now:      time.Now,
	}
}

// Evaluate runs the full check chain. Position may be empty for whole-ballot
// elections or for an election-wide check.
func (e *EligibilityEvaluator) Evaluate(ctx context.Context, election *domain.Election, voterID uuid.UUID, position string) (*domain.Eligibility, error) {
	now := e.now()

	if election.Status != domain.StatusOpen {
		return ineligible(fmt.Sprintf("election is %s, not open for voting", election.Status)), nil
	}
	if !election.WithinWindow(now) {
		return ineligible("election is outside its voting window"), nil
	}

	profile, err := e.members.Profile(ctx, voterID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve member profile: %w", err)
	}

	if election.EligibleVoters != nil {
		if !containsID(election.EligibleVoters, voterID) {
			return ineligible("not on the eligible voter list for this election"), nil
		}
	} else if !profile.Active {
		return ineligible("membership is not active"), nil
	}

	// A secretary-granted override replaces the tier and position checks
	// entirely, in either direction.
	if profile.VotingOverride != nil {
		if !*profile.VotingOverride {
			return ineligible("voting eligibility has been revoked for this member"), nil
		}
	} else {
		if res, err := e.checkTier(ctx, profile); err != nil {
			return nil, err
		} else if res != nil {
			return res, nil
		}
		if res := e.checkPosition(election, profile, voterID, position); res != nil {
			return res, nil
		}
	}

	return e.checkVoted(ctx, election, voterID, position)
}

func (e *EligibilityEvaluator) checkTier(ctx context.Context, profile *ports.MemberProfile) (*domain.Eligibility, error) {
	if !profile.TierCanVote {
		return ineligible("membership tier does not include voting rights"), nil
	}
	if profile.TierRequiresAttendance {
		pct, err := e.members.AttendancePercent(ctx, profile.ID, profile.TierLookbackMonths)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve attendance: %w", err)
		}
		if pct < profile.TierMinAttendancePct {
			return ineligible(fmt.Sprintf("attendance %.0f%% is below the %.0f%% required by the membership tier", pct, profile.TierMinAttendancePct)), nil
		}
	}
	return nil, nil
}

func (e *EligibilityEvaluator) checkPosition(election *domain.Election, profile *ports.MemberProfile, voterID uuid.UUID, position string) *domain.Eligibility {
	if position == "" {
		return nil
	}
	if allowed, ok := election.PositionEligibility[position]; ok && len(allowed) > 0 {
		if !containsString(allowed, profile.RoleType) {
			return ineligible(fmt.Sprintf("role %q may not vote for %s", profile.RoleType, position))
		}
	}
	if item := election.BallotItem(position); item != nil {
		if len(item.EligibleMemberTypes) > 0 && !containsString(item.EligibleMemberTypes, profile.MemberType) {
			return ineligible(fmt.Sprintf("member class %q may not vote on %s", profile.MemberType, item.Title))
		}
		if item.RequiresCheckIn && !election.IsAttendee(voterID) {
			return ineligible("this ballot item requires meeting check-in")
		}
	}
	return nil
}

func (e *EligibilityEvaluator) checkVoted(ctx context.Context, election *domain.Election, voterID uuid.UUID, position string) (*domain.Eligibility, error) {
	voter := e.voterRef(election, voterID)
	existing, err := e.voteRepo.ListActiveByVoter(ctx, election.ID, voter)
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing votes: %w", err)
	}

	counts := make(map[string]int)
	for _, v := range existing {
		counts[v.Position]++
	}

	limit := election.VotesPerPositionLimit()
	var voted, remaining []string
	for _, p := range election.PositionNames() {
		if counts[p] > 0 && (limit == 0 || counts[p] >= limit) {
			voted = append(voted, p)
		} else {
			remaining = append(remaining, p)
		}
	}

	out := &domain.Eligibility{
		Eligible:           true,
		HasVoted:           len(existing) > 0,
		PositionsVoted:     voted,
		PositionsRemaining: remaining,
	}

	// A single vote exhausts a non-positional election outright.
	if len(election.Positions) == 0 && len(existing) > 0 && limit != 0 && counts[""] >= limit {
		out.Eligible = false
		out.Reason = "already voted in this election"
		return out, nil
	}

	if position != "" && limit != 0 && counts[position] >= limit {
		out.Eligible = false
		out.Reason = fmt.Sprintf("already voted for %s", position)
		return out, nil
	}

	if position == "" && len(election.Positions) > 0 && len(remaining) == 0 {
		out.Eligible = false
		out.Reason = "already voted for every position"
	}
	return out, nil
}

// voterRef is the identity a vote is recorded under: the member id, or the
// salted hash for anonymous elections.
func (e *EligibilityEvaluator) voterRef(election *domain.Election, voterID uuid.UUID) domain.VoterRef {
	if election.AnonymousVoting {
		return domain.AnonymousVoter(e.hasher.Hash(voterID, election.ID, election.AnonymitySalt))
	}
	return domain.IdentifiedVoter(voterID)
}

func ineligible(reason string) *domain.Eligibility {
	return &domain.Eligibility{Eligible: false, Reason: reason}
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsString(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

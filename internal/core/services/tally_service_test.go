package services

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberhall/elections/internal/core/domain"
)

func makeCandidates(names ...string) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(names))
	for i, name := range names {
		out = append(out, domain.Candidate{
			ID:           uuid.New(),
			Name:         name,
			Accepted:     true,
			DisplayOrder: i,
		})
	}
	return out
}

func plainVote(electionID uuid.UUID, candidateID uuid.UUID, voter string) domain.Vote {
	return domain.Vote{
		ID:          uuid.New(),
		ElectionID:  electionID,
		CandidateID: candidateID,
		Voter:       domain.IdentifiedVoter(uuid.NewSHA1(uuid.NameSpaceOID, []byte(voter))),
		VotedAt:     testNow,
	}
}

func TestTallyMostVotes(t *testing.T) {
	tally := NewTallyService()
	election := &domain.Election{
		ID:               uuid.New(),
		VotingMethod:     domain.MethodSimpleMajority,
		VictoryCondition: domain.VictoryMostVotes,
	}
	cands := makeCandidates("Alice", "Bob")

	var votes []domain.Vote
	for i := 0; i < 3; i++ {
		votes = append(votes, plainVote(election.ID, cands[0].ID, fmt.Sprintf("a%d", i)))
	}
	votes = append(votes, plainVote(election.ID, cands[1].ID, "b0"))

	results := tally.Tally(election, cands, votes)

	require.Len(t, results.Overall.Results, 2)
	assert.Equal(t, "Alice", results.Overall.Results[0].Name)
	assert.Equal(t, 3, results.Overall.Results[0].VoteCount)
	assert.True(t, results.Overall.Results[0].IsWinner)
	assert.False(t, results.Overall.Results[1].IsWinner)
	assert.True(t, results.HasWinner())
	assert.Equal(t, 4, results.TotalVotes)
	assert.Equal(t, 4, results.DistinctVoters)
}

func TestTallyMostVotesTieMarksBothWinners(t *testing.T) {
	tally := NewTallyService()
	election := &domain.Election{
		ID:               uuid.New(),
		VotingMethod:     domain.MethodSimpleMajority,
		VictoryCondition: domain.VictoryMostVotes,
	}
	cands := makeCandidates("Alice", "Bob")

	votes := []domain.Vote{
		plainVote(election.ID, cands[0].ID, "v1"),
		plainVote(election.ID, cands[1].ID, "v2"),
	}

	results := tally.Tally(election, cands, votes)
	assert.True(t, results.Overall.Results[0].IsWinner)
	assert.True(t, results.Overall.Results[1].IsWinner)
}

func TestTallyNoVotesNoWinner(t *testing.T) {
	tally := NewTallyService()
	election := &domain.Election{
		ID:               uuid.New(),
		VotingMethod:     domain.MethodSimpleMajority,
		VictoryCondition: domain.VictoryMostVotes,
	}
	results := tally.Tally(election, makeCandidates("Alice"), nil)
	assert.False(t, results.HasWinner())
}

func TestTallyMajorityRequiresOverHalf(t *testing.T) {
	tally := NewTallyService()
	election := &domain.Election{
		ID:               uuid.New(),
		VotingMethod:     domain.MethodSimpleMajority,
		VictoryCondition: domain.VictoryMajority,
	}
	cands := makeCandidates("Alice", "Bob", "Carol")

	// 4 of 9 is a plurality but not a majority.
	var votes []domain.Vote
	for i := 0; i < 4; i++ {
		votes = append(votes, plainVote(election.ID, cands[0].ID, fmt.Sprintf("a%d", i)))
	}
	for i := 0; i < 3; i++ {
		votes = append(votes, plainVote(election.ID, cands[1].ID, fmt.Sprintf("b%d", i)))
	}
	for i := 0; i < 2; i++ {
		votes = append(votes, plainVote(election.ID, cands[2].ID, fmt.Sprintf("c%d", i)))
	}

	results := tally.Tally(election, cands, votes)
	assert.False(t, results.HasWinner())

	// One more ballot pushes Alice to 5 of 10.
	votes = append(votes, plainVote(election.ID, cands[0].ID, "a4"))
	results = tally.Tally(election, cands, votes)
	assert.False(t, results.HasWinner())

	votes = append(votes, plainVote(election.ID, cands[0].ID, "a5"))
	results = tally.Tally(election, cands, votes)
	assert.True(t, results.HasWinner())
	assert.Equal(t, "Alice", results.Overall.Results[0].Name)
	assert.True(t, results.Overall.Results[0].IsWinner)
}

func TestTallySupermajorityDefaultsTo67(t *testing.T) {
	tally := NewTallyService()
	election := &domain.Election{
		ID:               uuid.New(),
		VotingMethod:     domain.MethodSupermajority,
		VictoryCondition: domain.VictorySupermajority,
	}
	cands := makeCandidates("Motion")

	var votes []domain.Vote
	for i := 0; i < 2; i++ {
		votes = append(votes, plainVote(election.ID, cands[0].ID, fmt.Sprintf("y%d", i)))
	}
	results := tally.Tally(election, cands, votes)
	// 2 of 2 is 100%.
	assert.True(t, results.HasWinner())

	other := makeCandidates("Against")
	cands = append(cands, other[0])
	votes = append(votes, plainVote(election.ID, other[0].ID, "n0"))
	results = tally.Tally(election, cands, votes)
	// 2 of 3 is 66.7%, just under the 67% default.
	assert.False(t, results.HasWinner())
}

func TestTallyThresholdByCount(t *testing.T) {
	tally := NewTallyService()
	threshold := 3
	election := &domain.Election{
		ID:               uuid.New(),
		VotingMethod:     domain.MethodSimpleMajority,
		VictoryCondition: domain.VictoryThreshold,
		VictoryThreshold: &threshold,
	}
	cands := makeCandidates("Alice", "Bob")

	var votes []domain.Vote
	for i := 0; i < 3; i++ {
		votes = append(votes, plainVote(election.ID, cands[0].ID, fmt.Sprintf("a%d", i)))
	}
	votes = append(votes, plainVote(election.ID, cands[1].ID, "b0"))

	results := tally.Tally(election, cands, votes)
	assert.True(t, results.Overall.Results[0].IsWinner)
	assert.False(t, results.Overall.Results[1].IsWinner)
}

func TestTallyApprovalUsesDistinctVoterDenominator(t *testing.T) {
	tally := NewTallyService()
	election := &domain.Election{
		ID:               uuid.New(),
		VotingMethod:     domain.MethodApproval,
		VictoryCondition: domain.VictoryMostVotes,
	}
	cands := makeCandidates("Alice", "Bob")

	// Three voters; all approve Alice, two also approve Bob. Five ballots,
	// but percentages are out of three voters.
	var votes []domain.Vote
	for i := 0; i < 3; i++ {
		votes = append(votes, plainVote(election.ID, cands[0].ID, fmt.Sprintf("v%d", i)))
	}
	for i := 0; i < 2; i++ {
		votes = append(votes, plainVote(election.ID, cands[1].ID, fmt.Sprintf("v%d", i)))
	}

	results := tally.Tally(election, cands, votes)
	require.Len(t, results.Overall.Results, 2)
	assert.Equal(t, "Alice", results.Overall.Results[0].Name)
	assert.InDelta(t, 100.0, results.Overall.Results[0].Percentage, 0.01)
	assert.InDelta(t, 66.67, results.Overall.Results[1].Percentage, 0.01)
	assert.Equal(t, 3, results.DistinctVoters)
	assert.Equal(t, 5, results.TotalVotes)
}

func TestTallyIgnoresDeletedVotes(t *testing.T) {
	tally := NewTallyService()
	election := &domain.Election{
		ID:               uuid.New(),
		VotingMethod:     domain.MethodSimpleMajority,
		VictoryCondition: domain.VictoryMostVotes,
	}
	cands := makeCandidates("Alice")

	deleted := plainVote(election.ID, cands[0].ID, "gone")
	deleted.DeletedAt = &testNow

	results := tally.Tally(election, cands, []domain.Vote{deleted})
	assert.Equal(t, 0, results.TotalVotes)
	assert.False(t, results.HasWinner())
}

func rankedBallot(electionID uuid.UUID, voter string, ranked ...uuid.UUID) []domain.Vote {
	var out []domain.Vote
	for i, candidateID := range ranked {
		v := plainVote(electionID, candidateID, voter)
		v.Rank = i + 1
		out = append(out, v)
	}
	return out
}

func TestInstantRunoffTransfersEliminatedBallots(t *testing.T) {
	tally := NewTallyService()
	election := &domain.Election{
		ID:               uuid.New(),
		VotingMethod:     domain.MethodRankedChoice,
		VictoryCondition: domain.VictoryMajority,
	}
	cands := makeCandidates("Alice", "Bob", "Carol")
	alice, bob, carol := cands[0].ID, cands[1].ID, cands[2].ID

	// First preferences: Alice 8, Bob 7, Carol 5. Nobody holds a majority of
	// the 20 ballots, Carol is eliminated, and her voters all listed Bob
	// second, handing Bob 12 of 20.
	var votes []domain.Vote
	for i := 0; i < 8; i++ {
		votes = append(votes, rankedBallot(election.ID, fmt.Sprintf("a%d", i), alice, bob)...)
	}
	for i := 0; i < 7; i++ {
		votes = append(votes, rankedBallot(election.ID, fmt.Sprintf("b%d", i), bob, alice)...)
	}
	for i := 0; i < 5; i++ {
		votes = append(votes, rankedBallot(election.ID, fmt.Sprintf("c%d", i), carol, bob)...)
	}

	results := tally.Tally(election, cands, votes)

	require.True(t, results.HasWinner())
	require.Len(t, results.Overall.Rounds, 2)
	assert.Equal(t, []uuid.UUID{carol}, results.Overall.Rounds[0].Eliminated)
	assert.Equal(t, 12, results.Overall.Rounds[1].Counts[bob])

	winner := results.Overall.Results[0]
	assert.Equal(t, "Bob", winner.Name)
	assert.True(t, winner.IsWinner)
	assert.Equal(t, 12, winner.VoteCount)
}

func TestInstantRunoffImmediateMajority(t *testing.T) {
	tally := NewTallyService()
	election := &domain.Election{
		ID:               uuid.New(),
		VotingMethod:     domain.MethodRankedChoice,
		VictoryCondition: domain.VictoryMajority,
	}
	cands := makeCandidates("Alice", "Bob")
	alice, bob := cands[0].ID, cands[1].ID

	var votes []domain.Vote
	for i := 0; i < 3; i++ {
		votes = append(votes, rankedBallot(election.ID, fmt.Sprintf("a%d", i), alice, bob)...)
	}
	votes = append(votes, rankedBallot(election.ID, "b0", bob, alice)...)

	results := tally.Tally(election, cands, votes)
	require.Len(t, results.Overall.Rounds, 1)
	assert.Empty(t, results.Overall.Rounds[0].Eliminated)
	assert.True(t, results.Overall.Results[0].IsWinner)
	assert.Equal(t, "Alice", results.Overall.Results[0].Name)
}

func TestInstantRunoffUnrankedVotesSortLast(t *testing.T) {
	tally := NewTallyService()
	election := &domain.Election{
		ID:               uuid.New(),
		VotingMethod:     domain.MethodRankedChoice,
		VictoryCondition: domain.VictoryMajority,
	}
	cands := makeCandidates("Alice", "Bob")
	alice, bob := cands[0].ID, cands[1].ID

	// Voter ranks Bob explicitly and leaves Alice unranked; the explicit
	// rank must count first even though Alice's vote was recorded first.
	unranked := plainVote(election.ID, alice, "v1")
	explicit := plainVote(election.ID, bob, "v1")
	explicit.Rank = 1

	results := tally.Tally(election, cands, []domain.Vote{unranked, explicit})
	assert.Equal(t, 1, results.Overall.Rounds[0].Counts[bob])
	assert.Equal(t, 0, results.Overall.Rounds[0].Counts[alice])
}

func TestTallyPerPositionScoping(t *testing.T) {
	tally := NewTallyService()
	election := &domain.Election{
		ID:               uuid.New(),
		Positions:        []string{"president", "treasurer"},
		VotingMethod:     domain.MethodSimpleMajority,
		VictoryCondition: domain.VictoryMostVotes,
	}

	pres := makeCandidates("Alice")[0]
	pres.Position = "president"
	treas := makeCandidates("Bob")[0]
	treas.Position = "treasurer"
	cands := []domain.Candidate{pres, treas}

	v1 := plainVote(election.ID, pres.ID, "v1")
	v1.Position = "president"
	v2 := plainVote(election.ID, treas.ID, "v2")
	v2.Position = "treasurer"

	results := tally.Tally(election, cands, []domain.Vote{v1, v2})

	require.Len(t, results.ByPosition, 2)
	assert.Equal(t, "president", results.ByPosition[0].Position)
	assert.True(t, results.ByPosition[0].HasWinner)
	assert.Equal(t, "treasurer", results.ByPosition[1].Position)
	assert.True(t, results.ByPosition[1].HasWinner)
	assert.True(t, results.HasWinner())
}

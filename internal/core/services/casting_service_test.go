package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberhall/elections/internal/core/domain"
	"github.com/memberhall/elections/internal/core/ports"
)

func TestCastVote(t *testing.T) {
	f := newFixture()
	election := f.openElection(t)
	candidate := f.addCandidate(t, election, "Alice", "", true)
	voterID := uuid.New()

	vote, err := f.casting.CastVote(context.Background(), ports.CastVoteInput{
		ElectionID:  election.ID,
		VoterID:     voterID,
		CandidateID: candidate.ID,
		Metadata:    ports.VoteMetadata{IPAddress: "10.0.0.7", UserAgent: "test"},
	})
	require.NoError(t, err)

	assert.Equal(t, candidate.ID, vote.CandidateID)
	assert.Equal(t, testNow, vote.VotedAt)
	assert.Equal(t, election.ID.String()+"||id:"+voterID.String(), vote.ScopeKey)
	assert.True(t, f.signer.Verify(vote))

	id, ok := vote.Voter.MemberID()
	require.True(t, ok)
	assert.Equal(t, voterID, id)

	events := f.audit.byType("vote_cast")
	require.Len(t, events, 1)
	assert.Equal(t, domain.SeverityInfo, events[0].Severity)
	assert.Equal(t, "10.0.0.7", events[0].IPAddress)
	require.NotNil(t, events[0].UserID)
	assert.Equal(t, voterID, *events[0].UserID)
}

func TestCastVoteTwiceIsRejected(t *testing.T) {
	f := newFixture()
	election := f.openElection(t)
	alice := f.addCandidate(t, election, "Alice", "", true)
	bob := f.addCandidate(t, election, "Bob", "", true)
	voterID := uuid.New()

	f.castFor(t, election, voterID, alice.ID, "")

	// Eligibility catches the repeat before the store does.
	_, err := f.casting.CastVote(context.Background(), ports.CastVoteInput{
		ElectionID:  election.ID,
		VoterID:     voterID,
		CandidateID: bob.ID,
	})
	var ineligible *domain.IneligibleError
	require.ErrorAs(t, err, &ineligible)
	assert.Contains(t, ineligible.Reason, "already voted")
}

func TestCastVoteScopeConflictAuditsDoubleVoteAttempt(t *testing.T) {
	f := newFixture()
	election := f.openElection(t)
	alice := f.addCandidate(t, election, "Alice", "", true)
	voterID := uuid.New()
	voter := domain.IdentifiedVoter(voterID)

	// Simulate the race where two requests pass eligibility and the vote cap
	// concurrently: build first, then land the rival row, then write.
	vote, err := f.casting.buildVote(context.Background(), election, voter, alice.ID, "", 0, ports.VoteMetadata{})
	require.NoError(t, err)

	rival := &domain.Vote{
		ID:          uuid.New(),
		ElectionID:  election.ID,
		CandidateID: alice.ID,
		Voter:       voter,
		ScopeKey:    election.VoteScopeKey("", voter, alice.ID),
		VotedAt:     testNow,
	}
	require.NoError(t, f.store.Votes().Save(context.Background(), rival))

	_, err = f.casting.persist(context.Background(), election, vote, voterID)
	require.ErrorIs(t, err, domain.ErrAlreadyVoted)

	events := f.audit.byType("double_vote_attempt")
	require.Len(t, events, 1)
	assert.Equal(t, domain.SeverityWarning, events[0].Severity)
	require.NotNil(t, events[0].UserID)
	assert.Equal(t, voterID, *events[0].UserID)
}

func TestCastVoteAnonymousElectionHashesVoter(t *testing.T) {
	f := newFixture()
	election := f.openElection(t, func(e *domain.Election) {
		e.AnonymousVoting = true
	})
	candidate := f.addCandidate(t, election, "Alice", "", true)
	voterID := uuid.New()

	vote := f.castFor(t, election, voterID, candidate.ID, "")

	require.True(t, vote.Voter.Anonymous())
	hash, _ := vote.Voter.Hash()
	assert.Equal(t, f.hasher.Hash(voterID, election.ID, election.AnonymitySalt), hash)

	// The audit trail must not name the member.
	events := f.audit.byType("vote_cast")
	require.Len(t, events, 1)
	assert.Nil(t, events[0].UserID)

	// Same member, same election: the hash pins the scope key, so a second
	// ballot still collides.
	_, err := f.casting.CastVote(context.Background(), ports.CastVoteInput{
		ElectionID:  election.ID,
		VoterID:     voterID,
		CandidateID: candidate.ID,
	})
	var ineligible *domain.IneligibleError
	require.ErrorAs(t, err, &ineligible)
}

func TestCastVoteClosedElection(t *testing.T) {
	f := newFixture()
	election := f.openElection(t, func(e *domain.Election) {
		e.Status = domain.StatusClosed
	})
	candidate := f.addCandidate(t, election, "Alice", "", true)

	_, err := f.casting.CastVote(context.Background(), ports.CastVoteInput{
		ElectionID:  election.ID,
		VoterID:     uuid.New(),
		CandidateID: candidate.ID,
	})
	var ineligible *domain.IneligibleError
	require.ErrorAs(t, err, &ineligible)
	assert.Contains(t, ineligible.Reason, "closed")
}

func TestCastVoteCandidateValidation(t *testing.T) {
	f := newFixture()
	election := f.openElection(t, func(e *domain.Election) {
		e.Positions = []string{"president", "treasurer"}
	})
	other := f.openElection(t)
	foreign := f.addCandidate(t, other, "Eve", "", true)
	pending := f.addCandidate(t, election, "Pat", "president", false)
	pres := f.addCandidate(t, election, "Alice", "president", true)

	ctx := context.Background()

	_, err := f.casting.CastVote(ctx, ports.CastVoteInput{
		ElectionID:  election.ID,
		VoterID:     uuid.New(),
		CandidateID: foreign.ID,
		Position:    "president",
	})
	assert.ErrorIs(t, err, domain.ErrCandidateMismatch)

	_, err = f.casting.CastVote(ctx, ports.CastVoteInput{
		ElectionID:  election.ID,
		VoterID:     uuid.New(),
		CandidateID: pending.ID,
		Position:    "president",
	})
	assert.ErrorIs(t, err, domain.ErrCandidateNotAccepted)

	// Accepted, but running for a different position than the ballot names.
	_, err = f.casting.CastVote(ctx, ports.CastVoteInput{
		ElectionID:  election.ID,
		VoterID:     uuid.New(),
		CandidateID: pres.ID,
		Position:    "treasurer",
	})
	assert.ErrorIs(t, err, domain.ErrCandidateMismatch)
}

func TestCastVoteLimitStopsOvervoting(t *testing.T) {
	f := newFixture()
	election := f.openElection(t, func(e *domain.Election) {
		e.VotingMethod = domain.MethodApproval
		e.MaxVotesPerPosition = 2
	})
	a := f.addCandidate(t, election, "Alice", "", true)
	b := f.addCandidate(t, election, "Bob", "", true)
	c := f.addCandidate(t, election, "Carol", "", true)
	voterID := uuid.New()

	f.castFor(t, election, voterID, a.ID, "")
	f.castFor(t, election, voterID, b.ID, "")

	// The third approval trips the cap inside the build step even when the
	// eligibility read raced past it.
	_, err := f.casting.buildVote(context.Background(), election, domain.IdentifiedVoter(voterID), c.ID, "", 0, ports.VoteMetadata{})
	assert.ErrorIs(t, err, domain.ErrVoteLimitReached)
}

func TestCastVoteRejectsUncontestedPosition(t *testing.T) {
	f := newFixture()
	election := f.openElection(t, func(e *domain.Election) {
		e.Positions = []string{"president", "treasurer"}
	})
	pres := f.addCandidate(t, election, "Alice", "president", true)
	voterID := uuid.New()
	ctx := context.Background()

	f.castFor(t, election, voterID, pres.ID, "president")

	// An omitted position would mint a scope key the president ballot never
	// claimed, doubling the voter's weight for the same candidate.
	_, err := f.casting.CastVote(ctx, ports.CastVoteInput{
		ElectionID:  election.ID,
		VoterID:     voterID,
		CandidateID: pres.ID,
	})
	assert.ErrorIs(t, err, domain.ErrUnknownPosition)

	_, err = f.casting.CastVote(ctx, ports.CastVoteInput{
		ElectionID:  election.ID,
		VoterID:     voterID,
		CandidateID: pres.ID,
		Position:    "secretary",
	})
	assert.ErrorIs(t, err, domain.ErrUnknownPosition)

	votes, err := f.store.Votes().ListActive(ctx, election.ID)
	require.NoError(t, err)
	assert.Len(t, votes, 1)
}

func TestConcurrentCastsRecordExactlyOneVote(t *testing.T) {
	f := newFixture()
	election := f.openElection(t)
	candidate := f.addCandidate(t, election, "Alice", "", true)
	voterID := uuid.New()

	const attempts = 8
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.casting.CastVote(context.Background(), ports.CastVoteInput{
				ElectionID:  election.ID,
				VoterID:     voterID,
				CandidateID: candidate.ID,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		// Losers are turned away at whichever gate their interleaving hit.
		var ineligible *domain.IneligibleError
		if !errors.Is(err, domain.ErrAlreadyVoted) &&
			!errors.Is(err, domain.ErrVoteLimitReached) &&
			!errors.As(err, &ineligible) {
			t.Fatalf("unexpected cast error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)

	votes, err := f.store.Votes().ListActive(context.Background(), election.ID)
	require.NoError(t, err)
	assert.Len(t, votes, 1)
}

func proxyGrant(election *domain.Election, delegatorID, proxyID uuid.UUID) *domain.ProxyAuthorization {
	auth := domain.ProxyAuthorization{
		ID:           uuid.New(),
		DelegatorID:  delegatorID,
		ProxyID:      proxyID,
		ProxyType:    "general",
		GrantedBy:    delegatorID,
		AuthorizedAt: testNow,
	}
	election.ProxyAuthorizations = append(election.ProxyAuthorizations, auth)
	return &election.ProxyAuthorizations[len(election.ProxyAuthorizations)-1]
}

func TestCastProxyVote(t *testing.T) {
	f := newFixture()
	delegatorID, proxyID := uuid.New(), uuid.New()
	var auth *domain.ProxyAuthorization
	election := f.openElection(t, func(e *domain.Election) {
		auth = proxyGrant(e, delegatorID, proxyID)
	})
	candidate := f.addCandidate(t, election, "Alice", "", true)

	vote, err := f.casting.CastProxyVote(context.Background(), ports.CastProxyVoteInput{
		ElectionID:      election.ID,
		ProxyVoterID:    proxyID,
		CandidateID:     candidate.ID,
		AuthorizationID: auth.ID,
	})
	require.NoError(t, err)

	assert.True(t, vote.IsProxyVote)
	require.NotNil(t, vote.ProxyVoterID)
	assert.Equal(t, proxyID, *vote.ProxyVoterID)
	require.NotNil(t, vote.ProxyDelegatorID)
	assert.Equal(t, delegatorID, *vote.ProxyDelegatorID)
	require.NotNil(t, vote.ProxyAuthorizationID)
	assert.Equal(t, auth.ID, *vote.ProxyAuthorizationID)
	assert.True(t, f.signer.Verify(vote))

	// The ballot is recorded against the delegator, who can no longer vote
	// in person.
	id, ok := vote.Voter.MemberID()
	require.True(t, ok)
	assert.Equal(t, delegatorID, id)

	_, err = f.casting.CastVote(context.Background(), ports.CastVoteInput{
		ElectionID:  election.ID,
		VoterID:     delegatorID,
		CandidateID: candidate.ID,
	})
	var ineligible *domain.IneligibleError
	require.ErrorAs(t, err, &ineligible)
}

func TestCastProxyVoteAuthorizationChecks(t *testing.T) {
	f := newFixture()
	delegatorID, proxyID := uuid.New(), uuid.New()
	revoked := testNow.Add(-time.Hour)
	var active, dead *domain.ProxyAuthorization
	election := f.openElection(t, func(e *domain.Election) {
		active = proxyGrant(e, delegatorID, proxyID)
		dead = proxyGrant(e, uuid.New(), proxyID)
		dead.RevokedAt = &revoked
	})
	candidate := f.addCandidate(t, election, "Alice", "", true)
	ctx := context.Background()

	_, err := f.casting.CastProxyVote(ctx, ports.CastProxyVoteInput{
		ElectionID:      election.ID,
		ProxyVoterID:    proxyID,
		CandidateID:     candidate.ID,
		AuthorizationID: uuid.New(),
	})
	assert.ErrorIs(t, err, domain.ErrAuthorizationNotFound)

	_, err = f.casting.CastProxyVote(ctx, ports.CastProxyVoteInput{
		ElectionID:      election.ID,
		ProxyVoterID:    uuid.New(),
		CandidateID:     candidate.ID,
		AuthorizationID: active.ID,
	})
	assert.ErrorIs(t, err, domain.ErrNotAuthorizedProxy)

	_, err = f.casting.CastProxyVote(ctx, ports.CastProxyVoteInput{
		ElectionID:      election.ID,
		ProxyVoterID:    proxyID,
		CandidateID:     candidate.ID,
		AuthorizationID: dead.ID,
	})
	assert.ErrorIs(t, err, domain.ErrAuthorizationRevoked)
}

func TestCastProxyVoteChecksDelegatorEligibility(t *testing.T) {
	f := newFixture()
	delegatorID, proxyID := uuid.New(), uuid.New()
	var auth *domain.ProxyAuthorization
	election := f.openElection(t, func(e *domain.Election) {
		auth = proxyGrant(e, delegatorID, proxyID)
	})
	candidate := f.addCandidate(t, election, "Alice", "", true)

	f.dir.SetProfile(&ports.MemberProfile{ID: delegatorID, Active: false})

	_, err := f.casting.CastProxyVote(context.Background(), ports.CastProxyVoteInput{
		ElectionID:      election.ID,
		ProxyVoterID:    proxyID,
		CandidateID:     candidate.ID,
		AuthorizationID: auth.ID,
	})
	var ineligible *domain.IneligibleError
	require.ErrorAs(t, err, &ineligible)
	assert.Contains(t, ineligible.Reason, "not active")
}

func TestDeleteVote(t *testing.T) {
	f := newFixture()
	election := f.openElection(t)
	candidate := f.addCandidate(t, election, "Alice", "", true)
	vote := f.castFor(t, election, uuid.New(), candidate.ID, "")
	adminID := uuid.New()

	ctx := context.Background()
	require.NoError(t, f.casting.DeleteVote(ctx, vote.ID, adminID, "cast in error"))

	active, err := f.store.Votes().ListActive(ctx, election.ID)
	require.NoError(t, err)
	assert.Empty(t, active)

	deleted, err := f.store.Votes().ListDeleted(ctx, election.ID)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, "cast in error", deleted[0].DeletionReason)

	events := f.audit.byType("vote_deleted")
	require.Len(t, events, 1)
	assert.Equal(t, domain.SeverityHigh, events[0].Severity)
	require.NotNil(t, events[0].UserID)
	assert.Equal(t, adminID, *events[0].UserID)

	assert.ErrorIs(t, f.casting.DeleteVote(ctx, uuid.New(), adminID, "x"), domain.ErrVoteNotFound)
}

func TestVoteSignerDetectsTampering(t *testing.T) {
	signer := NewVoteSigner("k1")
	vote := &domain.Vote{
		ID:          uuid.New(),
		ElectionID:  uuid.New(),
		CandidateID: uuid.New(),
		Voter:       domain.IdentifiedVoter(uuid.New()),
		VotedAt:     testNow,
	}
	vote.Signature = signer.Sign(vote)
	require.True(t, signer.Verify(vote))

	tampered := *vote
	tampered.CandidateID = uuid.New()
	assert.False(t, signer.Verify(&tampered))

	assert.False(t, NewVoteSigner("k2").Verify(vote), "signature must be bound to the secret")

	unsigned := *vote
	unsigned.Signature = ""
	assert.False(t, signer.Verify(&unsigned))
}

func TestVoterHasherIsScopedPerElection(t *testing.T) {
	h := NewVoterHasher()
	member := uuid.New()
	e1, e2 := uuid.New(), uuid.New()

	assert.Equal(t, h.Hash(member, e1, "salt"), h.Hash(member, e1, "salt"))
	assert.NotEqual(t, h.Hash(member, e1, "salt"), h.Hash(member, e2, "salt"))
	assert.NotEqual(t, h.Hash(member, e1, "salt"), h.Hash(member, e1, "other"))
	assert.NotEqual(t, h.Hash(member, e1, "salt"), h.Hash(uuid.New(), e1, "salt"))
}

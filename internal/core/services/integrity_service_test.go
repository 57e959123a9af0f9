package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberhall/elections/internal/core/domain"
	"github.com/memberhall/elections/internal/core/ports"
)

// rawVote writes a vote straight into the store, bypassing the casting
// pipeline, so tests control the signature.
func (f *fixture) rawVote(t *testing.T, election *domain.Election, candidateID uuid.UUID, signature string) *domain.Vote {
	t.Helper()
	voter := domain.IdentifiedVoter(uuid.New())
	vote := &domain.Vote{
		ID:          uuid.New(),
		ElectionID:  election.ID,
		CandidateID: candidateID,
		Voter:       voter,
		ScopeKey:    election.VoteScopeKey("", voter, candidateID),
		VotedAt:     testNow,
		Signature:   signature,
	}
	require.NoError(t, f.store.Votes().Save(context.Background(), vote))
	return vote
}

func TestVerifySignaturesClean(t *testing.T) {
	f := newFixture()
	election := f.openElection(t)
	candidate := f.addCandidate(t, election, "Alice", "", true)
	f.castFor(t, election, uuid.New(), candidate.ID, "")
	f.castFor(t, election, uuid.New(), candidate.ID, "")

	report, err := f.integrity.VerifySignatures(context.Background(), election.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Valid)
	assert.True(t, report.Clean())
	assert.Empty(t, f.audit.byType("vote_signature_mismatch"))
}

func TestVerifySignaturesFlagsTampering(t *testing.T) {
	f := newFixture()
	election := f.openElection(t)
	candidate := f.addCandidate(t, election, "Alice", "", true)

	f.castFor(t, election, uuid.New(), candidate.ID, "")
	tampered := f.rawVote(t, election, candidate.ID, "deadbeef")
	f.rawVote(t, election, candidate.ID, "")

	report, err := f.integrity.VerifySignatures(context.Background(), election.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Valid)
	assert.Equal(t, 1, report.Unsigned)
	assert.Equal(t, []uuid.UUID{tampered.ID}, report.TamperedIDs)
	assert.False(t, report.Clean())

	events := f.audit.byType("vote_signature_mismatch")
	require.Len(t, events, 1)
	assert.Equal(t, domain.SeverityCritical, events[0].Severity)
}

func TestForensicsReport(t *testing.T) {
	f := newFixture()
	delegatorID, proxyID := uuid.New(), uuid.New()
	var auth *domain.ProxyAuthorization
	election := f.openElection(t, func(e *domain.Election) {
		auth = proxyGrant(e, delegatorID, proxyID)
	})
	candidate := f.addCandidate(t, election, "Alice", "", true)
	ctx := context.Background()

	// Six ballots from one address pushes it over the suspicion threshold.
	for i := 0; i < 6; i++ {
		_, err := f.casting.CastVote(ctx, ports.CastVoteInput{
			ElectionID:  election.ID,
			VoterID:     uuid.New(),
			CandidateID: candidate.ID,
			Metadata:    ports.VoteMetadata{IPAddress: "203.0.113.9"},
		})
		require.NoError(t, err)
	}
	_, err := f.casting.CastVote(ctx, ports.CastVoteInput{
		ElectionID:  election.ID,
		VoterID:     uuid.New(),
		CandidateID: candidate.ID,
		Metadata:    ports.VoteMetadata{IPAddress: "198.51.100.2"},
	})
	require.NoError(t, err)

	_, err = f.casting.CastProxyVote(ctx, ports.CastProxyVoteInput{
		ElectionID:      election.ID,
		ProxyVoterID:    proxyID,
		CandidateID:     candidate.ID,
		AuthorizationID: auth.ID,
	})
	require.NoError(t, err)

	removed := f.castFor(t, election, uuid.New(), candidate.ID, "")
	adminID := uuid.New()
	require.NoError(t, f.casting.DeleteVote(ctx, removed.ID, adminID, "duplicate entry"))

	_, err = f.tokens.Issue(ctx, election.ID, uuid.New())
	require.NoError(t, err)

	report, err := f.integrity.Forensics(ctx, election.ID)
	require.NoError(t, err)

	assert.True(t, report.Signatures.Clean())
	assert.Equal(t, 6, report.VotesByIP["203.0.113.9"])
	assert.Equal(t, []string{"203.0.113.9"}, report.SuspiciousIPs)
	assert.Equal(t, 8, report.HourlyTimeline["2026-03-10T12"], "deleted votes drop out of the timeline")

	require.Len(t, report.ProxyVotes, 1)
	assert.Equal(t, auth.ID, report.ProxyVotes[0].AuthorizationID)
	assert.Equal(t, proxyID, report.ProxyVotes[0].ProxyVoterID)
	assert.Equal(t, 1, report.ProxyVotes[0].Votes)

	require.Len(t, report.DeletedVotes, 1)
	assert.Equal(t, removed.ID, report.DeletedVotes[0].VoteID)
	assert.Equal(t, "duplicate entry", report.DeletedVotes[0].Reason)
	require.NotNil(t, report.DeletedVotes[0].DeletedBy)
	assert.Equal(t, adminID, *report.DeletedVotes[0].DeletedBy)

	assert.Equal(t, 1, report.TokensIssued)
	assert.Equal(t, 0, report.TokensUsed)
}

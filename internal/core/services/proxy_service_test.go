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

func TestGrantProxy(t *testing.T) {
	f := newFixture()
	election := f.openElection(t)
	delegatorID, proxyID, secretaryID := uuid.New(), uuid.New(), uuid.New()

	auth, err := f.proxies.Grant(context.Background(), ports.GrantProxyInput{
		ElectionID:  election.ID,
		DelegatorID: delegatorID,
		ProxyID:     proxyID,
		ProxyType:   "general",
		Reason:      "traveling",
		GrantedBy:   secretaryID,
	})
	require.NoError(t, err)
	assert.Equal(t, delegatorID, auth.DelegatorID)
	assert.Equal(t, proxyID, auth.ProxyID)
	assert.Equal(t, testNow, auth.AuthorizedAt)
	assert.Nil(t, auth.RevokedAt)

	stored, err := f.store.Elections().GetByID(context.Background(), election.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Authorization(auth.ID))

	events := f.audit.byType("proxy_granted")
	require.Len(t, events, 1)
	require.NotNil(t, events[0].UserID)
	assert.Equal(t, secretaryID, *events[0].UserID)
}

func TestGrantProxyRejectsSelfDelegation(t *testing.T) {
	f := newFixture()
	election := f.openElection(t)
	memberID := uuid.New()

	_, err := f.proxies.Grant(context.Background(), ports.GrantProxyInput{
		ElectionID:  election.ID,
		DelegatorID: memberID,
		ProxyID:     memberID,
		GrantedBy:   memberID,
	})
	assert.ErrorIs(t, err, domain.ErrSelfProxy)
}

func TestGrantProxyOnePerDelegator(t *testing.T) {
	f := newFixture()
	election := f.openElection(t)
	delegatorID := uuid.New()
	ctx := context.Background()

	first, err := f.proxies.Grant(ctx, ports.GrantProxyInput{
		ElectionID:  election.ID,
		DelegatorID: delegatorID,
		ProxyID:     uuid.New(),
		GrantedBy:   delegatorID,
	})
	require.NoError(t, err)

	_, err = f.proxies.Grant(ctx, ports.GrantProxyInput{
		ElectionID:  election.ID,
		DelegatorID: delegatorID,
		ProxyID:     uuid.New(),
		GrantedBy:   delegatorID,
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateAuthorization)

	// Revoking the active grant frees the delegator to issue a new one.
	require.NoError(t, f.proxies.Revoke(ctx, election.ID, first.ID, delegatorID))
	_, err = f.proxies.Grant(ctx, ports.GrantProxyInput{
		ElectionID:  election.ID,
		DelegatorID: delegatorID,
		ProxyID:     uuid.New(),
		GrantedBy:   delegatorID,
	})
	assert.NoError(t, err)
}

func TestGrantProxyHonorsOrgSetting(t *testing.T) {
	f := newFixture()
	election := f.openElection(t)
	f.dir.SetOrgSettings(ports.OrgSettings{ProxyVotingEnabled: false})

	_, err := f.proxies.Grant(context.Background(), ports.GrantProxyInput{
		ElectionID:  election.ID,
		DelegatorID: uuid.New(),
		ProxyID:     uuid.New(),
		GrantedBy:   uuid.New(),
	})
	assert.ErrorIs(t, err, domain.ErrProxyVotingDisabled)
}

func TestRevokeProxy(t *testing.T) {
	f := newFixture()
	election := f.openElection(t)
	delegatorID := uuid.New()
	ctx := context.Background()

	auth, err := f.proxies.Grant(ctx, ports.GrantProxyInput{
		ElectionID:  election.ID,
		DelegatorID: delegatorID,
		ProxyID:     uuid.New(),
		GrantedBy:   delegatorID,
	})
	require.NoError(t, err)

	require.NoError(t, f.proxies.Revoke(ctx, election.ID, auth.ID, delegatorID))
	stored, err := f.store.Elections().GetByID(ctx, election.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.Authorization(auth.ID).RevokedAt)

	assert.ErrorIs(t, f.proxies.Revoke(ctx, election.ID, auth.ID, delegatorID), domain.ErrAuthorizationRevoked)
	assert.ErrorIs(t, f.proxies.Revoke(ctx, election.ID, uuid.New(), delegatorID), domain.ErrAuthorizationNotFound)
	assert.Len(t, f.audit.byType("proxy_revoked"), 1)
}

func TestRevokeProxyBlockedAfterUse(t *testing.T) {
	f := newFixture()
	election := f.openElection(t)
	candidate := f.addCandidate(t, election, "Alice", "", true)
	delegatorID, proxyID := uuid.New(), uuid.New()
	ctx := context.Background()

	auth, err := f.proxies.Grant(ctx, ports.GrantProxyInput{
		ElectionID:  election.ID,
		DelegatorID: delegatorID,
		ProxyID:     proxyID,
		GrantedBy:   delegatorID,
	})
	require.NoError(t, err)

	_, err = f.casting.CastProxyVote(ctx, ports.CastProxyVoteInput{
		ElectionID:      election.ID,
		ProxyVoterID:    proxyID,
		CandidateID:     candidate.ID,
		AuthorizationID: auth.ID,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, f.proxies.Revoke(ctx, election.ID, auth.ID, delegatorID), domain.ErrAuthorizationUsed)
}

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/memberhall/elections/internal/adapters/repository/memory"
	"github.com/memberhall/elections/internal/core/domain"
	"github.com/memberhall/elections/internal/core/ports"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func frozenNow() time.Time { return testNow }

// captureSink is safe for concurrent recording so tests can race real
// goroutines against the services.
type captureSink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (c *captureSink) Record(_ context.Context, event domain.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureSink) byType(eventType string) []domain.AuditEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.AuditEvent
	for _, e := range c.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type captureNotifier struct {
	mu      sync.Mutex
	ballots []ports.BallotInvite
	alerts  []string
}

func (c *captureNotifier) SendBallots(_ context.Context, _ *domain.Election, invites []ports.BallotInvite) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ballots = append(c.ballots, invites...)
	return nil
}

func (c *captureNotifier) Alert(_ context.Context, _ *domain.Election, subject, _ string, _ domain.Severity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, subject)
	return nil
}

type fixture struct {
	store    *memory.Store
	dir      *memory.Directory
	audit    *captureSink
	notifier *captureNotifier
	hasher   *VoterHasher
	signer   *VoteSigner

	eligibility *EligibilityEvaluator
	casting     *castingService
	lifecycle   *lifecycleService
	tokens      *tokenService
	proxies     *proxyService
	elections   *electionService
	integrity   ports.IntegrityService
}

func newFixture() *fixture {
	store := memory.NewStore()
	dir := memory.NewDirectory()
	sink := &captureSink{}
	notifier := &captureNotifier{}
	hasher := NewVoterHasher()
	signer := NewVoteSigner("test-signing-secret")

	eligibility := &EligibilityEvaluator{
		voteRepo: store.Votes(),
		members:  dir,
		hasher:   hasher,
		now:      frozenNow,
	}

	return &fixture{
		store:       store,
		dir:         dir,
		audit:       sink,
		notifier:    notifier,
		hasher:      hasher,
		signer:      signer,
		eligibility: eligibility,
		casting: &castingService{
			electionRepo: store.Elections(),
			voteRepo:     store.Votes(),
			eligibility:  eligibility,
			hasher:       hasher,
			signer:       signer,
			audit:        sink,
			now:          frozenNow,
		},
		lifecycle: &lifecycleService{
			electionRepo: store.Elections(),
			voteRepo:     store.Votes(),
			tokenRepo:    store.Tokens(),
			tally:        NewTallyService(),
			audit:        sink,
			notifier:     notifier,
			now:          frozenNow,
		},
		tokens: &tokenService{
			electionRepo: store.Elections(),
			tokenRepo:    store.Tokens(),
			members:      dir,
			notifier:     notifier,
			hasher:       hasher,
			signer:       signer,
			audit:        sink,
			now:          frozenNow,
		},
		proxies: &proxyService{
			electionRepo: store.Elections(),
			voteRepo:     store.Votes(),
			members:      dir,
			audit:        sink,
			notifier:     notifier,
			now:          frozenNow,
		},
		elections: &electionService{
			repo:  store.Elections(),
			audit: sink,
			now:   frozenNow,
		},
		integrity: NewIntegrityService(store.Elections(), store.Votes(), store.Tokens(), signer, sink),
	}
}

// openElection persists a minimal open election; callers adjust fields via
// the mutators before it is saved.
func (f *fixture) openElection(t *testing.T, mutate ...func(*domain.Election)) *domain.Election {
	t.Helper()
	election := &domain.Election{
		ID:               uuid.New(),
		OrganizationID:   uuid.New(),
		Title:            "Board Election",
		Status:           domain.StatusOpen,
		StartDate:        testNow.Add(-24 * time.Hour),
		EndDate:          testNow.Add(24 * time.Hour),
		VotingMethod:     domain.MethodSimpleMajority,
		VictoryCondition: domain.VictoryMostVotes,
		AnonymitySalt:    "fixture-salt",
		CreatedBy:        uuid.New(),
		CreatedAt:        testNow.Add(-48 * time.Hour),
	}
	for _, m := range mutate {
		m(election)
	}
	require.NoError(t, f.store.Elections().Save(context.Background(), election))
	return election
}

func (f *fixture) addCandidate(t *testing.T, election *domain.Election, name, position string, accepted bool) *domain.Candidate {
	t.Helper()
	candidate := &domain.Candidate{
		ID:         uuid.New(),
		ElectionID: election.ID,
		Name:       name,
		Position:   position,
		Accepted:   accepted,
		CreatedAt:  testNow,
	}
	require.NoError(t, f.store.Elections().SaveCandidate(context.Background(), candidate))
	return candidate
}

func (f *fixture) castFor(t *testing.T, election *domain.Election, voterID uuid.UUID, candidateID uuid.UUID, position string) *domain.Vote {
	t.Helper()
	vote, err := f.casting.CastVote(context.Background(), ports.CastVoteInput{
		ElectionID:  election.ID,
		VoterID:     voterID,
		CandidateID: candidateID,
		Position:    position,
	})
	require.NoError(t, err)
	return vote
}

package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/domain"
)

type ElectionRepository interface {
	Save(ctx context.Context, election *domain.Election) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Election, error)
	Update(ctx context.Context, election *domain.Election) error
	Delete(ctx context.Context, id uuid.UUID) error

	SaveCandidate(ctx context.Context, candidate *domain.Candidate) error
	UpdateCandidate(ctx context.Context, candidate *domain.Candidate) error
	GetCandidate(ctx context.Context, id uuid.UUID) (*domain.Candidate, error)
	ListCandidates(ctx context.Context, electionID uuid.UUID) ([]domain.Candidate, error)

	// EnsureSynthesizedCandidate upserts a shared ballot-choice row, keyed on
	// (election, position, name), and returns the canonical record.
	EnsureSynthesizedCandidate(ctx context.Context, candidate *domain.Candidate) (*domain.Candidate, error)

	// CreateRunoff persists the runoff election and its pre-accepted
	// candidates in one transaction.
	CreateRunoff(ctx context.Context, runoff *domain.Election, candidates []domain.Candidate) error
}

type CreateElectionInput struct {
	OrganizationID            uuid.UUID
	Title                     string
	Description               string
	StartDate                 time.Time
	EndDate                   time.Time
	Positions                 []string
	VotingMethod              domain.VotingMethod
	VictoryCondition          domain.VictoryCondition
	VictoryThreshold          *int
	VictoryPercentage         *float64
	AnonymousVoting           bool
	MaxVotesPerPosition       int
	EligibleVoters            []uuid.UUID
	PositionEligibility       map[string][]string
	BallotItems               []domain.BallotItem
	ResultsVisibleImmediately bool
	AllowWriteIns             bool
	EnableRunoffs             bool
	RunoffType                domain.RunoffType
	MaxRunoffRounds           int
	CreatedBy                 uuid.UUID
}

type NominateInput struct {
	ElectionID   uuid.UUID
	MemberID     *uuid.UUID
	Name         string
	Position     string
	IsWriteIn    bool
	DisplayOrder int
}

type ElectionService interface {
	Create(ctx context.Context, input CreateElectionInput) (*domain.Election, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Election, error)
	Nominate(ctx context.Context, input NominateInput) (*domain.Candidate, error)
	AcceptNomination(ctx context.Context, electionID, candidateID uuid.UUID) (*domain.Candidate, error)
	Candidates(ctx context.Context, electionID uuid.UUID) ([]domain.Candidate, error)
	CheckIn(ctx context.Context, electionID, memberID uuid.UUID) error
}

// CloseOutcome reports a close transition. Runoff creation failures are
// carried in RunoffError and never roll the close back.
type CloseOutcome struct {
	Election    *domain.Election
	Results     *domain.ElectionResults
	Runoff      *domain.Election
	RunoffError string
}

type LifecycleService interface {
	Open(ctx context.Context, electionID, actorID uuid.UUID) (*domain.Election, error)
	Close(ctx context.Context, electionID, actorID uuid.UUID) (*CloseOutcome, error)
	Rollback(ctx context.Context, electionID, actorID uuid.UUID, reason string) (*domain.Election, error)
	Delete(ctx context.Context, electionID, actorID uuid.UUID) error
	DestroySalt(ctx context.Context, electionID, actorID uuid.UUID) error
	Results(ctx context.Context, electionID uuid.UUID) (*domain.ElectionResults, error)
	Stats(ctx context.Context, electionID uuid.UUID) (*domain.ElectionStats, error)
}

package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/domain"
	"github.com/memberhall/elections/internal/core/ports"
)

type electionService struct {
	repo  ports.ElectionRepository
	audit ports.AuditSink
	now   func() time.Time
}

func NewElectionService(repo ports.ElectionRepository, audit ports.AuditSink) ports.ElectionService {
	return &electionService{repo: repo, audit: audit, now: time.Now}
}

func (s *electionService) Create(ctx context.Context, input ports.CreateElectionInput) (*domain.Election, error) {
	if input.Title == "" {
		return nil, errors.New("title is required")
	}
	if !input.EndDate.After(input.StartDate) {
		return nil, errors.New("end date must be after start date")
	}
	switch input.VotingMethod {
	case domain.MethodSimpleMajority, domain.MethodApproval, domain.MethodSupermajority, domain.MethodRankedChoice:
	default:
		return nil, errors.New("unknown voting method")
	}
	switch input.VictoryCondition {
	case domain.VictoryMostVotes, domain.VictoryMajority, domain.VictorySupermajority, domain.VictoryThreshold:
	case "":
		input.VictoryCondition = defaultVictoryCondition(input.VotingMethod)
	default:
		return nil, errors.New("unknown victory condition")
	}
	if input.EnableRunoffs {
		switch input.RunoffType {
		case domain.RunoffTopTwo, domain.RunoffEliminateLowest:
		default:
			return nil, errors.New("unknown runoff type")
		}
		if input.MaxRunoffRounds <= 0 {
			input.MaxRunoffRounds = 1
		}
	}

	// Every election gets a salt so voting tokens can bind a voter hash even
	// when direct votes are recorded by name.
	salt, err := randomString(24)
	if err != nil {
		return nil, err
	}

	now := s.now()
	election := &domain.Election{
		ID:                        uuid.New(),
		OrganizationID:            input.OrganizationID,
		Title:                     input.Title,
		Description:               input.Description,
		Status:                    domain.StatusDraft,
		StartDate:                 input.StartDate,
		EndDate:                   input.EndDate,
		Positions:                 input.Positions,
		VotingMethod:              input.VotingMethod,
		VictoryCondition:          input.VictoryCondition,
		VictoryThreshold:          input.VictoryThreshold,
		VictoryPercentage:         input.VictoryPercentage,
		AnonymousVoting:           input.AnonymousVoting,
		AnonymitySalt:             salt,
		MaxVotesPerPosition:       input.MaxVotesPerPosition,
		EligibleVoters:            input.EligibleVoters,
		PositionEligibility:       input.PositionEligibility,
		BallotItems:               input.BallotItems,
		ResultsVisibleImmediately: input.ResultsVisibleImmediately,
		AllowWriteIns:             input.AllowWriteIns,
		EnableRunoffs:             input.EnableRunoffs,
		RunoffType:                input.RunoffType,
		MaxRunoffRounds:           input.MaxRunoffRounds,
		CreatedBy:                 input.CreatedBy,
		CreatedAt:                 now,
	}
	if err := s.repo.Save(ctx, election); err != nil {
		return nil, err
	}

	createdBy := input.CreatedBy
	ev := domain.NewAuditEvent("election_created", domain.SeverityInfo, map[string]any{
		"election_id":   election.ID.String(),
		"voting_method": string(election.VotingMethod),
		"positions":     len(election.Positions),
	})
	ev.UserID = &createdBy
	_ = s.audit.Record(ctx, ev)
	return election, nil
}

func (s *electionService) Get(ctx context.Context, id uuid.UUID) (*domain.Election, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *electionService) Nominate(ctx context.Context, input ports.NominateInput) (*domain.Candidate, error) {
	election, err := s.repo.GetByID(ctx, input.ElectionID)
	if err != nil {
		return nil, err
	}
	if election.Status == domain.StatusClosed {
		return nil, domain.ErrElectionNotOpen
	}
	if input.Position != "" && !election.HasPosition(input.Position) {
		return nil, domain.ErrUnknownPosition
	}
	if input.IsWriteIn && !election.AllowWriteIns {
		return nil, domain.ErrWriteInsClosed
	}
	if input.Name == "" {
		return nil, errors.New("candidate name is required")
	}

	candidate := &domain.Candidate{
		ID:           uuid.New(),
		ElectionID:   election.ID,
		MemberID:     input.MemberID,
		Name:         input.Name,
		Position:     input.Position,
		IsWriteIn:    input.IsWriteIn,
		DisplayOrder: input.DisplayOrder,
		CreatedAt:    s.now(),
	}
	if err := s.repo.SaveCandidate(ctx, candidate); err != nil {
		return nil, err
	}
	return candidate, nil
}

func (s *electionService) AcceptNomination(ctx context.Context, electionID, candidateID uuid.UUID) (*domain.Candidate, error) {
	candidate, err := s.repo.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if candidate.ElectionID != electionID {
		return nil, domain.ErrCandidateMismatch
	}
	if candidate.Accepted {
		return candidate, nil
	}
	candidate.Accepted = true
	if err := s.repo.UpdateCandidate(ctx, candidate); err != nil {
		return nil, err
	}
	return candidate, nil
}

func (s *electionService) Candidates(ctx context.Context, electionID uuid.UUID) ([]domain.Candidate, error) {
	return s.repo.ListCandidates(ctx, electionID)
}

func (s *electionService) CheckIn(ctx context.Context, electionID, memberID uuid.UUID) error {
	election, err := s.repo.GetByID(ctx, electionID)
	if err != nil {
		return err
	}
	if election.IsAttendee(memberID) {
		return nil
	}
	election.Attendees = append(election.Attendees, memberID)
	return s.repo.Update(ctx, election)
}

func defaultVictoryCondition(method domain.VotingMethod) domain.VictoryCondition {
	switch method {
	case domain.MethodSupermajority:
		return domain.VictorySupermajority
	default:
		return domain.VictoryMostVotes
	}
}

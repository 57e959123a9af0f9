package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/domain"
	"github.com/memberhall/elections/internal/core/ports"
)

// lifecycleService drives the DRAFT -> OPEN -> CLOSED state machine, the
// rollback edges, the results-visibility gate, and runoff spawning.
type lifecycleService struct {
	electionRepo ports.ElectionRepository
	voteRepo     ports.VoteRepository
	tokenRepo    ports.TokenRepository
	tally        ports.TallyService
	audit        ports.AuditSink
	notifier     ports.Notifier
	now          func() time.Time
}

func NewLifecycleService(
	electionRepo ports.ElectionRepository,
	voteRepo ports.VoteRepository,
	tokenRepo ports.TokenRepository,
	tally ports.TallyService,
	audit ports.AuditSink,
	notifier ports.Notifier,
) ports.LifecycleService {
	return &lifecycleService{
		electionRepo: electionRepo,
		voteRepo:     voteRepo,
		tokenRepo:    tokenRepo,
		tally:        tally,
		audit:        audit,
		notifier:     notifier,
		now:          time.Now,
	}
}

func (s *lifecycleService) Open(ctx context.Context, electionID, actorID uuid.UUID) (*domain.Election, error) {
	election, err := s.electionRepo.GetByID(ctx, electionID)
	if err != nil {
		return nil, err
	}
	if election.Status != domain.StatusDraft {
		return nil, domain.ErrInvalidTransition
	}

	candidates, err := s.electionRepo.ListCandidates(ctx, electionID)
	if err != nil {
		return nil, err
	}
	accepted := false
	for _, c := range candidates {
		if c.Accepted {
			accepted = true
			break
		}
	}
	if !accepted {
		return nil, domain.ErrNoAcceptedCandidates
	}

	election.Status = domain.StatusOpen
	if err := s.electionRepo.Update(ctx, election); err != nil {
		return nil, err
	}

	s.record(ctx, "election_opened", domain.SeverityInfo, election, actorID, nil)
	return election, nil
}

func (s *lifecycleService) Close(ctx context.Context, electionID, actorID uuid.UUID) (*ports.CloseOutcome, error) {
	election, err := s.electionRepo.GetByID(ctx, electionID)
	if err != nil {
		return nil, err
	}
	if election.Status == domain.StatusClosed {
		return &ports.CloseOutcome{Election: election}, nil
	}
	if election.Status != domain.StatusOpen {
		return nil, domain.ErrInvalidTransition
	}

	election.Status = domain.StatusClosed
	if err := s.electionRepo.Update(ctx, election); err != nil {
		return nil, err
	}
	s.record(ctx, "election_closed", domain.SeverityInfo, election, actorID, nil)

	outcome := &ports.CloseOutcome{Election: election}

	candidates, err := s.electionRepo.ListCandidates(ctx, electionID)
	if err != nil {
		outcome.RunoffError = fmt.Sprintf("failed to load candidates for runoff check: %v", err)
		return outcome, nil
	}
	votes, err := s.voteRepo.ListActive(ctx, electionID)
	if err != nil {
		outcome.RunoffError = fmt.Sprintf("failed to load votes for runoff check: %v", err)
		return outcome, nil
	}
	outcome.Results = s.tally.Tally(election, candidates, votes)

	// Runoff creation runs after the close has committed; its failure is
	// reported, never treated as fatal to the close itself.
	if election.EnableRunoffs && election.RunoffRound < election.MaxRunoffRounds && !outcome.Results.HasWinner() {
		runoff, err := s.spawnRunoff(ctx, election, candidates, outcome.Results, actorID)
		if err != nil {
			outcome.RunoffError = err.Error()
			s.record(ctx, "runoff_creation_failed", domain.SeverityHigh, election, actorID, map[string]any{
				"error": err.Error(),
			})
		} else {
			outcome.Runoff = runoff
		}
	}

	return outcome, nil
}

func (s *lifecycleService) Rollback(ctx context.Context, electionID, actorID uuid.UUID, reason string) (*domain.Election, error) {
	election, err := s.electionRepo.GetByID(ctx, electionID)
	if err != nil {
		return nil, err
	}

	var to domain.ElectionStatus
	switch election.Status {
	case domain.StatusClosed:
		to = domain.StatusOpen
	case domain.StatusOpen:
		to = domain.StatusDraft
	default:
		return nil, domain.ErrInvalidTransition
	}

	from := election.Status
	election.RollbackHistory = append(election.RollbackHistory, domain.RollbackRecord{
		Timestamp:   s.now(),
		PerformedBy: actorID,
		FromStatus:  from,
		ToStatus:    to,
		Reason:      reason,
	})
	election.Status = to
	if err := s.electionRepo.Update(ctx, election); err != nil {
		return nil, err
	}

	s.record(ctx, "election_rolled_back", domain.SeverityHigh, election, actorID, map[string]any{
		"from_status": string(from),
		"to_status":   string(to),
		"reason":      reason,
	})
	_ = s.notifier.Alert(ctx, election, "Election rolled back",
		fmt.Sprintf("Election %q was rolled back from %s to %s: %s", election.Title, from, to, reason),
		domain.SeverityHigh)

	return election, nil
}

func (s *lifecycleService) Delete(ctx context.Context, electionID, actorID uuid.UUID) error {
	election, err := s.electionRepo.GetByID(ctx, electionID)
	if err != nil {
		return err
	}

	count, err := s.voteRepo.CountActive(ctx, electionID)
	if err != nil {
		return err
	}
	if count > 0 {
		s.record(ctx, "election_delete_blocked", domain.SeverityCritical, election, actorID, map[string]any{
			"active_votes": count,
		})
		_ = s.notifier.Alert(ctx, election, "Election deletion blocked",
			fmt.Sprintf("Deletion of election %q was blocked: %d votes are on record", election.Title, count),
			domain.SeverityCritical)
		return domain.ErrElectionHasVotes
	}

	if err := s.electionRepo.Delete(ctx, electionID); err != nil {
		return err
	}
	s.record(ctx, "election_deleted", domain.SeverityHigh, election, actorID, nil)
	return nil
}

// DestroySalt wipes the anonymity salt of a closed election, making voter
// de-anonymization permanent.
func (s *lifecycleService) DestroySalt(ctx context.Context, electionID, actorID uuid.UUID) error {
	election, err := s.electionRepo.GetByID(ctx, electionID)
	if err != nil {
		return err
	}
	if election.Status != domain.StatusClosed {
		return domain.ErrElectionNotClosed
	}
	election.AnonymitySalt = ""
	if err := s.electionRepo.Update(ctx, election); err != nil {
		return err
	}
	s.record(ctx, "anonymity_salt_destroyed", domain.SeverityHigh, election, actorID, nil)
	return nil
}

func (s *lifecycleService) Results(ctx context.Context, electionID uuid.UUID) (*domain.ElectionResults, error) {
	election, err := s.electionRepo.GetByID(ctx, electionID)
	if err != nil {
		return nil, err
	}
	if !election.ResultsVisible(s.now()) {
		return nil, domain.ErrResultsNotVisible
	}

	candidates, err := s.electionRepo.ListCandidates(ctx, electionID)
	if err != nil {
		return nil, err
	}
	votes, err := s.voteRepo.ListActive(ctx, electionID)
	if err != nil {
		return nil, err
	}
	return s.tally.Tally(election, candidates, votes), nil
}

func (s *lifecycleService) Stats(ctx context.Context, electionID uuid.UUID) (*domain.ElectionStats, error) {
	election, err := s.electionRepo.GetByID(ctx, electionID)
	if err != nil {
		return nil, err
	}
	issued, used, err := s.tokenRepo.Counts(ctx, electionID)
	if err != nil {
		return nil, err
	}
	votes, err := s.voteRepo.ListActive(ctx, electionID)
	if err != nil {
		return nil, err
	}

	stats := &domain.ElectionStats{
		ElectionID:     election.ID,
		Status:         election.Status,
		TokensIssued:   issued,
		TokensUsed:     used,
		VotesReceived:  len(votes),
		DistinctVoters: distinctVoters(votes),
	}
	if issued > 0 {
		stats.TurnoutPercent = float64(used) / float64(issued) * 100
	}
	return stats, nil
}

// spawnRunoff creates the child election in DRAFT with the advancing
// candidates pre-accepted, inheriting the parent's configuration.
func (s *lifecycleService) spawnRunoff(ctx context.Context, parent *domain.Election, candidates []domain.Candidate, results *domain.ElectionResults, actorID uuid.UUID) (*domain.Election, error) {
	salt := ""
	if parent.AnonymousVoting {
		var err error
		salt, err = randomString(24)
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	parentID := parent.ID
	runoff := &domain.Election{
		ID:                  uuid.New(),
		OrganizationID:      parent.OrganizationID,
		Title:               fmt.Sprintf("%s (runoff %d)", parent.Title, parent.RunoffRound+1),
		Status:              domain.StatusDraft,
		StartDate:           now,
		EndDate:             now.Add(parent.EndDate.Sub(parent.StartDate)),
		VotingMethod:        parent.VotingMethod,
		VictoryCondition:    parent.VictoryCondition,
		VictoryThreshold:    parent.VictoryThreshold,
		VictoryPercentage:   parent.VictoryPercentage,
		AnonymousVoting:     parent.AnonymousVoting,
		AnonymitySalt:       salt,
		MaxVotesPerPosition: parent.MaxVotesPerPosition,
		EligibleVoters:      parent.EligibleVoters,
		PositionEligibility: parent.PositionEligibility,
		AllowWriteIns:       false,
		IsRunoff:            true,
		ParentElectionID:    &parentID,
		RunoffRound:         parent.RunoffRound + 1,
		EnableRunoffs:       parent.EnableRunoffs,
		RunoffType:          parent.RunoffType,
		MaxRunoffRounds:     parent.MaxRunoffRounds,
		CreatedBy:           actorID,
		CreatedAt:           now,
	}

	var advancing []domain.Candidate
	if len(parent.Positions) == 0 {
		adv, err := s.advancing(parent, candidates, results.Overall, "")
		if err != nil {
			return nil, err
		}
		advancing = adv
	} else {
		for _, pr := range results.ByPosition {
			if pr.HasWinner {
				continue
			}
			runoff.Positions = append(runoff.Positions, pr.Position)
			adv, err := s.advancing(parent, candidates, pr, pr.Position)
			if err != nil {
				return nil, err
			}
			advancing = append(advancing, adv...)
		}
	}
	if len(advancing) < 2 {
		return nil, fmt.Errorf("not enough candidates advance to a runoff")
	}

	runoffCandidates := make([]domain.Candidate, 0, len(advancing))
	for i, c := range advancing {
		memberID := c.MemberID
		runoffCandidates = append(runoffCandidates, domain.Candidate{
			ID:           uuid.New(),
			ElectionID:   runoff.ID,
			MemberID:     memberID,
			Name:         c.Name,
			Position:     c.Position,
			Accepted:     true,
			DisplayOrder: i,
			CreatedAt:    now,
		})
	}

	if err := s.electionRepo.CreateRunoff(ctx, runoff, runoffCandidates); err != nil {
		return nil, fmt.Errorf("failed to create runoff election: %w", err)
	}

	s.record(ctx, "runoff_created", domain.SeverityInfo, runoff, actorID, map[string]any{
		"parent_election_id": parent.ID.String(),
		"runoff_round":       runoff.RunoffRound,
		"candidates":         len(runoffCandidates),
	})
	return runoff, nil
}

// advancing ranks the remaining accepted candidates of one scope by vote
// count and selects the set that moves on per the runoff type.
func (s *lifecycleService) advancing(parent *domain.Election, candidates []domain.Candidate, pr domain.PositionResult, position string) ([]domain.Candidate, error) {
	accepted := make(map[uuid.UUID]domain.Candidate)
	for _, c := range candidates {
		if c.Accepted && c.Position == position {
			accepted[c.ID] = c
		}
	}

	ranked := make([]domain.CandidateResult, 0, len(pr.Results))
	for _, r := range pr.Results {
		if _, ok := accepted[r.CandidateID]; ok {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].VoteCount != ranked[j].VoteCount {
			return ranked[i].VoteCount > ranked[j].VoteCount
		}
		return ranked[i].CandidateID.String() < ranked[j].CandidateID.String()
	})

	keep := len(ranked)
	switch parent.RunoffType {
	case domain.RunoffTopTwo:
		if keep > 2 {
			keep = 2
		}
	case domain.RunoffEliminateLowest:
		if keep > 1 {
			keep--
		}
	default:
		return nil, fmt.Errorf("unknown runoff type %q", parent.RunoffType)
	}

	out := make([]domain.Candidate, 0, keep)
	for _, r := range ranked[:keep] {
		out = append(out, accepted[r.CandidateID])
	}
	return out, nil
}

func (s *lifecycleService) record(ctx context.Context, eventType string, severity domain.Severity, election *domain.Election, actorID uuid.UUID, extra map[string]any) {
	data := map[string]any{
		"election_id": election.ID.String(),
		"status":      string(election.Status),
	}
	for k, v := range extra {
		data[k] = v
	}
	ev := domain.NewAuditEvent(eventType, severity, data)
	if actorID != uuid.Nil {
		id := actorID
		ev.UserID = &id
	}
	_ = s.audit.Record(ctx, ev)
}

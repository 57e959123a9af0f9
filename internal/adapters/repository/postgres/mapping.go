package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/domain"
)

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func electionArgs(e *domain.Election) ([]any, error) {
	positions, err := json.Marshal(stringsOrEmpty(e.Positions))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal positions: %w", err)
	}
	eligible, err := marshalNullable(e.EligibleVoters)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal eligible voters: %w", err)
	}
	posElig, err := json.Marshal(mapOrEmpty(e.PositionEligibility))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal position eligibility: %w", err)
	}
	items, err := json.Marshal(itemsOrEmpty(e.BallotItems))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ballot items: %w", err)
	}
	attendees, err := json.Marshal(idsOrEmpty(e.Attendees))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal attendees: %w", err)
	}
	proxies, err := json.Marshal(proxiesOrEmpty(e.ProxyAuthorizations))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal proxy authorizations: %w", err)
	}
	rollbacks, err := json.Marshal(rollbacksOrEmpty(e.RollbackHistory))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rollback history: %w", err)
	}

	return []any{
		e.ID, e.OrganizationID, e.Title, e.Description, e.Status,
		e.StartDate, e.EndDate, positions, e.VotingMethod,
		e.VictoryCondition, e.VictoryThreshold, e.VictoryPercentage,
		e.AnonymousVoting, e.AnonymitySalt, e.MaxVotesPerPosition, eligible,
		posElig, items, attendees, e.ResultsVisibleImmediately,
		e.AllowWriteIns, e.IsRunoff, e.ParentElectionID, e.RunoffRound,
		e.EnableRunoffs, string(e.RunoffType), e.MaxRunoffRounds, proxies,
		rollbacks, e.CreatedBy, e.CreatedAt,
	}, nil
}

func scanElection(row rowScanner) (*domain.Election, error) {
	var (
		e          domain.Election
		positions  []byte
		eligible   []byte
		posElig    []byte
		items      []byte
		attendees  []byte
		proxies    []byte
		rollbacks  []byte
		runoffType string
	)
	err := row.Scan(
		&e.ID, &e.OrganizationID, &e.Title, &e.Description, &e.Status,
		&e.StartDate, &e.EndDate, &positions, &e.VotingMethod,
		&e.VictoryCondition, &e.VictoryThreshold, &e.VictoryPercentage,
		&e.AnonymousVoting, &e.AnonymitySalt, &e.MaxVotesPerPosition,
		&eligible, &posElig, &items, &attendees,
		&e.ResultsVisibleImmediately, &e.AllowWriteIns, &e.IsRunoff,
		&e.ParentElectionID, &e.RunoffRound, &e.EnableRunoffs, &runoffType,
		&e.MaxRunoffRounds, &proxies, &rollbacks, &e.CreatedBy, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.RunoffType = domain.RunoffType(runoffType)

	if err := json.Unmarshal(positions, &e.Positions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal positions: %w", err)
	}
	if eligible != nil {
		if err := json.Unmarshal(eligible, &e.EligibleVoters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal eligible voters: %w", err)
		}
	}
	if err := json.Unmarshal(posElig, &e.PositionEligibility); err != nil {
		return nil, fmt.Errorf("failed to unmarshal position eligibility: %w", err)
	}
	if err := json.Unmarshal(items, &e.BallotItems); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ballot items: %w", err)
	}
	if err := json.Unmarshal(attendees, &e.Attendees); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attendees: %w", err)
	}
	if err := json.Unmarshal(proxies, &e.ProxyAuthorizations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal proxy authorizations: %w", err)
	}
	if err := json.Unmarshal(rollbacks, &e.RollbackHistory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rollback history: %w", err)
	}
	if len(e.Positions) == 0 {
		e.Positions = nil
	}
	if len(e.Attendees) == 0 {
		e.Attendees = nil
	}
	return &e, nil
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func idsOrEmpty(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

func mapOrEmpty(m map[string][]string) map[string][]string {
	if m == nil {
		return map[string][]string{}
	}
	return m
}

func itemsOrEmpty(items []domain.BallotItem) []domain.BallotItem {
	if items == nil {
		return []domain.BallotItem{}
	}
	return items
}

func proxiesOrEmpty(ps []domain.ProxyAuthorization) []domain.ProxyAuthorization {
	if ps == nil {
		return []domain.ProxyAuthorization{}
	}
	return ps
}

func rollbacksOrEmpty(rs []domain.RollbackRecord) []domain.RollbackRecord {
	if rs == nil {
		return []domain.RollbackRecord{}
	}
	return rs
}

// marshalNullable keeps the SQL column NULL when the slice itself is nil, so
// "no allow-list" and "empty allow-list" stay distinguishable.
func marshalNullable(ids []uuid.UUID) ([]byte, error) {
	if ids == nil {
		return nil, nil
	}
	return json.Marshal(ids)
}

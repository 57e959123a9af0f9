package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/domain"
	"github.com/memberhall/elections/internal/core/ports"
)

type electionRepository struct {
	db *sql.DB
}

func NewElectionRepository(db *sql.DB) ports.ElectionRepository {
	return &electionRepository{db: db}
}

const electionColumns = `
	id, organization_id, title, description, status, start_date, end_date,
	positions, voting_method, victory_condition, victory_threshold,
	victory_percentage, anonymous_voting, anonymity_salt,
	max_votes_per_position, eligible_voters, position_eligibility,
	ballot_items, attendees, results_visible_immediately, allow_write_ins,
	is_runoff, parent_election_id, runoff_round, enable_runoffs, runoff_type,
	max_runoff_rounds, proxy_authorizations, rollback_history, created_by,
	created_at`

func (r *electionRepository) Save(ctx context.Context, e *domain.Election) error {
	query := `
		INSERT INTO elections (` + electionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26,
		        $27, $28, $29, $30, $31)
	`
	args, err := electionArgs(e)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert election: %w", err)
	}
	return nil
}

func (r *electionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Election, error) {
	query := `SELECT ` + electionColumns + ` FROM elections WHERE id = $1`
	e, err := scanElection(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrElectionNotFound
		}
		return nil, fmt.Errorf("failed to get election: %w", err)
	}
	return e, nil
}

func (r *electionRepository) Update(ctx context.Context, e *domain.Election) error {
	query := `
		UPDATE elections SET
			title = $2, description = $3, status = $4, start_date = $5,
			end_date = $6, positions = $7, victory_threshold = $8,
			victory_percentage = $9, anonymity_salt = $10,
			max_votes_per_position = $11, eligible_voters = $12,
			position_eligibility = $13, ballot_items = $14, attendees = $15,
			results_visible_immediately = $16, allow_write_ins = $17,
			proxy_authorizations = $18, rollback_history = $19
		WHERE id = $1
	`
	positions, err := json.Marshal(stringsOrEmpty(e.Positions))
	if err != nil {
		return fmt.Errorf("failed to marshal positions: %w", err)
	}
	eligible, err := marshalNullable(e.EligibleVoters)
	if err != nil {
		return fmt.Errorf("failed to marshal eligible voters: %w", err)
	}
	posElig, err := json.Marshal(mapOrEmpty(e.PositionEligibility))
	if err != nil {
		return fmt.Errorf("failed to marshal position eligibility: %w", err)
	}
	items, err := json.Marshal(itemsOrEmpty(e.BallotItems))
	if err != nil {
		return fmt.Errorf("failed to marshal ballot items: %w", err)
	}
	attendees, err := json.Marshal(idsOrEmpty(e.Attendees))
	if err != nil {
		return fmt.Errorf("failed to marshal attendees: %w", err)
	}
	proxies, err := json.Marshal(proxiesOrEmpty(e.ProxyAuthorizations))
	if err != nil {
		return fmt.Errorf("failed to marshal proxy authorizations: %w", err)
	}
	rollbacks, err := json.Marshal(rollbacksOrEmpty(e.RollbackHistory))
	if err != nil {
		return fmt.Errorf("failed to marshal rollback history: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query,
		e.ID, e.Title, e.Description, e.Status, e.StartDate, e.EndDate,
		positions, e.VictoryThreshold, e.VictoryPercentage, e.AnonymitySalt,
		e.MaxVotesPerPosition, eligible, posElig, items, attendees,
		e.ResultsVisibleImmediately, e.AllowWriteIns, proxies, rollbacks,
	)
	if err != nil {
		return fmt.Errorf("failed to update election: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrElectionNotFound
	}
	return nil
}

func (r *electionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM elections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete election: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrElectionNotFound
	}
	return nil
}

const candidateColumns = `
	id, election_id, member_id, name, position, accepted, is_write_in,
	synthesized, display_order, created_at`

func (r *electionRepository) SaveCandidate(ctx context.Context, c *domain.Candidate) error {
	query := `
		INSERT INTO candidates (` + candidateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.ElectionID, c.MemberID, c.Name, c.Position, c.Accepted,
		c.IsWriteIn, c.Synthesized, c.DisplayOrder, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert candidate: %w", err)
	}
	return nil
}

func (r *electionRepository) UpdateCandidate(ctx context.Context, c *domain.Candidate) error {
	query := `
		UPDATE candidates SET accepted = $2, display_order = $3
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, c.ID, c.Accepted, c.DisplayOrder)
	if err != nil {
		return fmt.Errorf("failed to update candidate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrCandidateNotFound
	}
	return nil
}

func (r *electionRepository) GetCandidate(ctx context.Context, id uuid.UUID) (*domain.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE id = $1`
	var c domain.Candidate
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.ElectionID, &c.MemberID, &c.Name, &c.Position, &c.Accepted,
		&c.IsWriteIn, &c.Synthesized, &c.DisplayOrder, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrCandidateNotFound
		}
		return nil, fmt.Errorf("failed to get candidate: %w", err)
	}
	return &c, nil
}

func (r *electionRepository) ListCandidates(ctx context.Context, electionID uuid.UUID) ([]domain.Candidate, error) {
	query := `
		SELECT ` + candidateColumns + ` FROM candidates
		WHERE election_id = $1
		ORDER BY display_order, id
	`
	rows, err := r.db.QueryContext(ctx, query, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	var out []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(
			&c.ID, &c.ElectionID, &c.MemberID, &c.Name, &c.Position,
			&c.Accepted, &c.IsWriteIn, &c.Synthesized, &c.DisplayOrder,
			&c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *electionRepository) EnsureSynthesizedCandidate(ctx context.Context, c *domain.Candidate) (*domain.Candidate, error) {
	insert := `
		INSERT INTO candidates (` + candidateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $9)
		ON CONFLICT (election_id, position, lower(name)) WHERE synthesized
		DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, insert,
		c.ID, c.ElectionID, c.MemberID, c.Name, c.Position, c.Accepted,
		c.IsWriteIn, c.DisplayOrder, c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert ballot choice: %w", err)
	}

	query := `
		SELECT ` + candidateColumns + ` FROM candidates
		WHERE election_id = $1 AND position = $2 AND lower(name) = lower($3)
		  AND synthesized
	`
	var out domain.Candidate
	err = r.db.QueryRowContext(ctx, query, c.ElectionID, c.Position, c.Name).Scan(
		&out.ID, &out.ElectionID, &out.MemberID, &out.Name, &out.Position,
		&out.Accepted, &out.IsWriteIn, &out.Synthesized, &out.DisplayOrder,
		&out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read back ballot choice: %w", err)
	}
	return &out, nil
}

func (r *electionRepository) CreateRunoff(ctx context.Context, runoff *domain.Election, candidates []domain.Candidate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO elections (` + electionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26,
		        $27, $28, $29, $30, $31)
	`
	args, err := electionArgs(runoff)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert runoff election: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candidates (`+candidateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare candidate statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range candidates {
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.ElectionID, c.MemberID, c.Name, c.Position, c.Accepted,
			c.IsWriteIn, c.Synthesized, c.DisplayOrder, c.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert runoff candidate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit runoff transaction: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/memberhall/elections/internal/core/domain"
	"github.com/memberhall/elections/internal/core/ports"
)

const uniqueViolation = "23505"

type voteRepository struct {
	db *sql.DB
}

func NewVoteRepository(db *sql.DB) ports.VoteRepository {
	return &voteRepository{db: db}
}

const voteColumns = `
	id, election_id, candidate_id, position, voter_id, voter_hash, scope_key,
	vote_rank, ip_address, user_agent, voted_at, vote_signature,
	is_proxy_vote, proxy_voter_id, proxy_delegator_id, proxy_authorization_id,
	deleted_at, deleted_by, deletion_reason`

const insertVote = `
	INSERT INTO votes (` + voteColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
	        $15, $16, $17, $18, $19)
`

func (r *voteRepository) Save(ctx context.Context, vote *domain.Vote) error {
	if _, err := r.db.ExecContext(ctx, insertVote, voteArgs(vote)...); err != nil {
		if isScopeConflict(err) {
			return domain.ErrAlreadyVoted
		}
		return fmt.Errorf("failed to insert vote: %w", err)
	}
	return nil
}

func (r *voteRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Vote, error) {
	query := `SELECT ` + voteColumns + ` FROM votes WHERE id = $1`
	v, err := scanVote(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrVoteNotFound
		}
		return nil, fmt.Errorf("failed to get vote: %w", err)
	}
	return v, nil
}

func (r *voteRepository) ListActive(ctx context.Context, electionID uuid.UUID) ([]domain.Vote, error) {
	query := `
		SELECT ` + voteColumns + ` FROM votes
		WHERE election_id = $1 AND deleted_at IS NULL
		ORDER BY voted_at, id
	`
	return r.list(ctx, query, electionID)
}

func (r *voteRepository) ListActiveByVoter(ctx context.Context, electionID uuid.UUID, voter domain.VoterRef) ([]domain.Vote, error) {
	if hash, ok := voter.Hash(); ok {
		query := `
			SELECT ` + voteColumns + ` FROM votes
			WHERE election_id = $1 AND voter_hash = $2 AND deleted_at IS NULL
			ORDER BY voted_at, id
		`
		return r.list(ctx, query, electionID, hash)
	}
	id, _ := voter.MemberID()
	query := `
		SELECT ` + voteColumns + ` FROM votes
		WHERE election_id = $1 AND voter_id = $2 AND deleted_at IS NULL
		ORDER BY voted_at, id
	`
	return r.list(ctx, query, electionID, id)
}

func (r *voteRepository) ListDeleted(ctx context.Context, electionID uuid.UUID) ([]domain.Vote, error) {
	query := `
		SELECT ` + voteColumns + ` FROM votes
		WHERE election_id = $1 AND deleted_at IS NOT NULL
		ORDER BY deleted_at, id
	`
	return r.list(ctx, query, electionID)
}

func (r *voteRepository) SoftDelete(ctx context.Context, id, deletedBy uuid.UUID, reason string) error {
	query := `
		UPDATE votes
		SET deleted_at = NOW(), deleted_by = $2, deletion_reason = $3
		WHERE id = $1 AND deleted_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, deletedBy, reason)
	if err != nil {
		return fmt.Errorf("failed to soft-delete vote: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrVoteNotFound
	}
	return nil
}

func (r *voteRepository) HasProxyVote(ctx context.Context, electionID, authorizationID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM votes
			WHERE election_id = $1 AND proxy_authorization_id = $2
			  AND deleted_at IS NULL
		)
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, electionID, authorizationID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check proxy vote: %w", err)
	}
	return exists, nil
}

func (r *voteRepository) CountActive(ctx context.Context, electionID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM votes WHERE election_id = $1 AND deleted_at IS NULL`
	var n int
	if err := r.db.QueryRowContext(ctx, query, electionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count votes: %w", err)
	}
	return n, nil
}

func (r *voteRepository) list(ctx context.Context, query string, args ...any) ([]domain.Vote, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list votes: %w", err)
	}
	defer rows.Close()

	var out []domain.Vote
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vote: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func voteArgs(v *domain.Vote) []any {
	var voterID *uuid.UUID
	var voterHash *string
	if hash, ok := v.Voter.Hash(); ok {
		voterHash = &hash
	} else if id, ok := v.Voter.MemberID(); ok {
		voterID = &id
	}
	return []any{
		v.ID, v.ElectionID, v.CandidateID, v.Position, voterID, voterHash,
		v.ScopeKey, v.Rank, v.IPAddress, v.UserAgent, v.VotedAt, v.Signature,
		v.IsProxyVote, v.ProxyVoterID, v.ProxyDelegatorID,
		v.ProxyAuthorizationID, v.DeletedAt, v.DeletedBy, v.DeletionReason,
	}
}

func scanVote(row rowScanner) (*domain.Vote, error) {
	var (
		v         domain.Vote
		voterID   *uuid.UUID
		voterHash sql.NullString
		deletedAt sql.NullTime
	)
	err := row.Scan(
		&v.ID, &v.ElectionID, &v.CandidateID, &v.Position, &voterID,
		&voterHash, &v.ScopeKey, &v.Rank, &v.IPAddress, &v.UserAgent,
		&v.VotedAt, &v.Signature, &v.IsProxyVote, &v.ProxyVoterID,
		&v.ProxyDelegatorID, &v.ProxyAuthorizationID, &deletedAt,
		&v.DeletedBy, &v.DeletionReason,
	)
	if err != nil {
		return nil, err
	}
	if voterHash.Valid {
		v.Voter = domain.AnonymousVoter(voterHash.String)
	} else if voterID != nil {
		v.Voter = domain.IdentifiedVoter(*voterID)
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		v.DeletedAt = &t
	}
	return &v, nil
}

// isScopeConflict recognizes the unique_violation raised by
// uniq_active_vote_scope when a second active vote lands on the same key.
func isScopeConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == uniqueViolation && pqErr.Constraint == "uniq_active_vote_scope"
}

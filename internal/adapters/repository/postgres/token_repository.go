package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/domain"
	"github.com/memberhall/elections/internal/core/ports"
)

type tokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) ports.TokenRepository {
	return &tokenRepository{db: db}
}

const tokenColumns = `
	id, token, election_id, voter_hash, expires_at, used, used_at,
	first_accessed_at, access_count, positions_voted, created_at`

func (r *tokenRepository) Save(ctx context.Context, token *domain.VotingToken) error {
	query := `
		INSERT INTO voting_tokens (` + tokenColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	positions, err := json.Marshal(stringsOrEmpty(token.PositionsVoted))
	if err != nil {
		return fmt.Errorf("failed to marshal voted positions: %w", err)
	}
	_, err = r.db.ExecContext(ctx, query,
		token.ID, token.Token, token.ElectionID, token.VoterHash,
		token.ExpiresAt, token.Used, token.UsedAt, token.FirstAccessedAt,
		token.AccessCount, positions, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert voting token: %w", err)
	}
	return nil
}

func (r *tokenRepository) GetByToken(ctx context.Context, token string) (*domain.VotingToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM voting_tokens WHERE token = $1`
	return r.get(ctx, query, token)
}

func (r *tokenRepository) GetByVoterHash(ctx context.Context, electionID uuid.UUID, voterHash string) (*domain.VotingToken, error) {
	query := `
		SELECT ` + tokenColumns + ` FROM voting_tokens
		WHERE election_id = $1 AND voter_hash = $2
	`
	return r.get(ctx, query, electionID, voterHash)
}

func (r *tokenRepository) RecordAccess(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE voting_tokens
		SET access_count = access_count + 1,
		    first_accessed_at = COALESCE(first_accessed_at, $2)
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to record token access: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

func (r *tokenRepository) Redeem(ctx context.Context, token *domain.VotingToken, positionNames []string, votes []*domain.Vote) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the token row so concurrent redemptions serialize. The voted
	// positions are re-read under the lock rather than trusted from the
	// caller's snapshot, which may predate a parallel redemption.
	var (
		positionsRaw []byte
		alreadyUsed  bool
	)
	err = tx.QueryRowContext(ctx, `
		SELECT positions_voted, used FROM voting_tokens WHERE id = $1 FOR UPDATE
	`, token.ID).Scan(&positionsRaw, &alreadyUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock voting token: %w", err)
	}
	if alreadyUsed {
		return domain.ErrTokenUsed
	}

	var merged []string
	if err := json.Unmarshal(positionsRaw, &merged); err != nil {
		return fmt.Errorf("failed to unmarshal voted positions: %w", err)
	}
	for _, v := range votes {
		for _, p := range merged {
			if p == v.Position {
				return domain.ErrAlreadyVoted
			}
		}
		merged = append(merged, v.Position)
	}

	for _, v := range votes {
		if _, err := tx.ExecContext(ctx, insertVote, voteArgs(v)...); err != nil {
			if isScopeConflict(err) {
				return domain.ErrAlreadyVoted
			}
			return fmt.Errorf("failed to insert token vote: %w", err)
		}
	}

	used, usedAt := token.Used, token.UsedAt
	if !used {
		covered := domain.VotingToken{PositionsVoted: merged}
		if covered.CoversAll(positionNames) {
			used = true
			now := time.Now()
			usedAt = &now
		}
	}

	positions, err := json.Marshal(stringsOrEmpty(merged))
	if err != nil {
		return fmt.Errorf("failed to marshal voted positions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE voting_tokens
		SET used = $2, used_at = $3, positions_voted = $4
		WHERE id = $1
	`, token.ID, used, usedAt, positions); err != nil {
		return fmt.Errorf("failed to update voting token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit token redemption: %w", err)
	}
	token.PositionsVoted = merged
	token.Used = used
	token.UsedAt = usedAt
	return nil
}

func (r *tokenRepository) Counts(ctx context.Context, electionID uuid.UUID) (int, int, error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE used)
		FROM voting_tokens WHERE election_id = $1
	`
	var issued, used int
	if err := r.db.QueryRowContext(ctx, query, electionID).Scan(&issued, &used); err != nil {
		return 0, 0, fmt.Errorf("failed to count voting tokens: %w", err)
	}
	return issued, used, nil
}

func (r *tokenRepository) get(ctx context.Context, query string, args ...any) (*domain.VotingToken, error) {
	var (
		t         domain.VotingToken
		positions []byte
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&t.ID, &t.Token, &t.ElectionID, &t.VoterHash, &t.ExpiresAt, &t.Used,
		&t.UsedAt, &t.FirstAccessedAt, &t.AccessCount, &positions,
		&t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get voting token: %w", err)
	}
	if err := json.Unmarshal(positions, &t.PositionsVoted); err != nil {
		return nil, fmt.Errorf("failed to unmarshal voted positions: %w", err)
	}
	if len(t.PositionsVoted) == 0 {
		t.PositionsVoted = nil
	}
	return &t, nil
}

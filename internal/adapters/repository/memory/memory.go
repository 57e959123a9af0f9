// Package memory is a mutex-guarded record store honoring the same port
// contracts as the postgres adapters, including the active-vote scope-key
// uniqueness constraint. It backs unit tests and local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/domain"
	"github.com/memberhall/elections/internal/core/ports"
)

type Store struct {
	mu sync.Mutex

	elections  map[uuid.UUID]*domain.Election
	candidates map[uuid.UUID]*domain.Candidate
	votes      map[uuid.UUID]*domain.Vote
	tokens     map[uuid.UUID]*domain.VotingToken

	// scopeIndex holds the scope key of every active vote.
	scopeIndex map[string]uuid.UUID
	tokenIndex map[string]uuid.UUID
}

func NewStore() *Store {
	return &Store{
		elections:  make(map[uuid.UUID]*domain.Election),
		candidates: make(map[uuid.UUID]*domain.Candidate),
		votes:      make(map[uuid.UUID]*domain.Vote),
		tokens:     make(map[uuid.UUID]*domain.VotingToken),
		scopeIndex: make(map[string]uuid.UUID),
		tokenIndex: make(map[string]uuid.UUID),
	}
}

func (s *Store) Elections() ports.ElectionRepository { return &electionRepo{s} }
func (s *Store) Votes() ports.VoteRepository         { return &voteRepo{s} }
func (s *Store) Tokens() ports.TokenRepository       { return &tokenRepo{s} }

type electionRepo struct{ s *Store }

func (r *electionRepo) Save(_ context.Context, e *domain.Election) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *e
	r.s.elections[e.ID] = &cp
	return nil
}

func (r *electionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Election, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.elections[id]
	if !ok {
		return nil, domain.ErrElectionNotFound
	}
	cp := *e
	cp.ProxyAuthorizations = append([]domain.ProxyAuthorization(nil), e.ProxyAuthorizations...)
	cp.RollbackHistory = append([]domain.RollbackRecord(nil), e.RollbackHistory...)
	cp.Attendees = append([]uuid.UUID(nil), e.Attendees...)
	return &cp, nil
}

func (r *electionRepo) Update(_ context.Context, e *domain.Election) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.elections[e.ID]; !ok {
		return domain.ErrElectionNotFound
	}
	cp := *e
	r.s.elections[e.ID] = &cp
	return nil
}

func (r *electionRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.elections[id]; !ok {
		return domain.ErrElectionNotFound
	}
	delete(r.s.elections, id)
	return nil
}

func (r *electionRepo) SaveCandidate(_ context.Context, c *domain.Candidate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *c
	r.s.candidates[c.ID] = &cp
	return nil
}

func (r *electionRepo) UpdateCandidate(_ context.Context, c *domain.Candidate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.candidates[c.ID]; !ok {
		return domain.ErrCandidateNotFound
	}
	cp := *c
	r.s.candidates[c.ID] = &cp
	return nil
}

func (r *electionRepo) GetCandidate(_ context.Context, id uuid.UUID) (*domain.Candidate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.candidates[id]
	if !ok {
		return nil, domain.ErrCandidateNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *electionRepo) ListCandidates(_ context.Context, electionID uuid.UUID) ([]domain.Candidate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Candidate
	for _, c := range r.s.candidates {
		if c.ElectionID == electionID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *electionRepo) EnsureSynthesizedCandidate(_ context.Context, c *domain.Candidate) (*domain.Candidate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.candidates {
		if existing.Synthesized &&
			existing.ElectionID == c.ElectionID &&
			existing.Position == c.Position &&
			strings.EqualFold(existing.Name, c.Name) {
			cp := *existing
			return &cp, nil
		}
	}
	cp := *c
	r.s.candidates[c.ID] = &cp
	out := cp
	return &out, nil
}

func (r *electionRepo) CreateRunoff(_ context.Context, runoff *domain.Election, candidates []domain.Candidate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *runoff
	r.s.elections[runoff.ID] = &cp
	for i := range candidates {
		c := candidates[i]
		r.s.candidates[c.ID] = &c
	}
	return nil
}

type voteRepo struct{ s *Store }

func (r *voteRepo) Save(_ context.Context, v *domain.Vote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.insertVoteLocked(v)
}

// insertVoteLocked enforces the scope-key constraint; callers hold the lock.
func (s *Store) insertVoteLocked(v *domain.Vote) error {
	if _, taken := s.scopeIndex[v.ScopeKey]; taken {
		return domain.ErrAlreadyVoted
	}
	cp := *v
	s.votes[v.ID] = &cp
	s.scopeIndex[v.ScopeKey] = v.ID
	return nil
}

func (r *voteRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Vote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.votes[id]
	if !ok {
		return nil, domain.ErrVoteNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *voteRepo) ListActive(_ context.Context, electionID uuid.UUID) ([]domain.Vote, error) {
	return r.list(electionID, true)
}

func (r *voteRepo) ListDeleted(_ context.Context, electionID uuid.UUID) ([]domain.Vote, error) {
	return r.list(electionID, false)
}

func (r *voteRepo) list(electionID uuid.UUID, active bool) ([]domain.Vote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Vote
	for _, v := range r.s.votes {
		if v.ElectionID == electionID && v.Active() == active {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *voteRepo) ListActiveByVoter(_ context.Context, electionID uuid.UUID, voter domain.VoterRef) ([]domain.Vote, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Vote
	for _, v := range r.s.votes {
		if v.ElectionID == electionID && v.Active() && v.Voter.Key() == voter.Key() {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (r *voteRepo) SoftDelete(_ context.Context, id, deletedBy uuid.UUID, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.votes[id]
	if !ok {
		return domain.ErrVoteNotFound
	}
	if v.DeletedAt != nil {
		return nil
	}
	now := time.Now()
	by := deletedBy
	v.DeletedAt = &now
	v.DeletedBy = &by
	v.DeletionReason = reason
	delete(r.s.scopeIndex, v.ScopeKey)
	return nil
}

func (r *voteRepo) HasProxyVote(_ context.Context, electionID, authorizationID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.votes {
		if v.ElectionID == electionID && v.Active() &&
			v.ProxyAuthorizationID != nil && *v.ProxyAuthorizationID == authorizationID {
			return true, nil
		}
	}
	return false, nil
}

func (r *voteRepo) CountActive(_ context.Context, electionID uuid.UUID) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, v := range r.s.votes {
		if v.ElectionID == electionID && v.Active() {
			count++
		}
	}
	return count, nil
}

type tokenRepo struct{ s *Store }

func (r *tokenRepo) Save(_ context.Context, t *domain.VotingToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *t
	r.s.tokens[t.ID] = &cp
	r.s.tokenIndex[t.Token] = t.ID
	return nil
}

func (r *tokenRepo) GetByToken(_ context.Context, token string) (*domain.VotingToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.tokenIndex[token]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	cp := *r.s.tokens[id]
	cp.PositionsVoted = append([]string(nil), r.s.tokens[id].PositionsVoted...)
	return &cp, nil
}

func (r *tokenRepo) GetByVoterHash(_ context.Context, electionID uuid.UUID, voterHash string) (*domain.VotingToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tokens {
		if t.ElectionID == electionID && t.VoterHash == voterHash {
			cp := *t
			cp.PositionsVoted = append([]string(nil), t.PositionsVoted...)
			return &cp, nil
		}
	}
	return nil, domain.ErrTokenNotFound
}

func (r *tokenRepo) RecordAccess(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tokens[id]
	if !ok {
		return domain.ErrTokenNotFound
	}
	if t.FirstAccessedAt == nil {
		ts := at
		t.FirstAccessedAt = &ts
	}
	t.AccessCount++
	return nil
}

// Redeem commits votes and the token update atomically: positions and scope
// keys are checked in full before the first insert, so a conflict leaves
// nothing behind. Voted positions are merged from the stored token, not the
// caller's snapshot.
func (r *tokenRepo) Redeem(_ context.Context, tok *domain.VotingToken, positions []string, votes []*domain.Vote) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tokens[tok.ID]
	if !ok {
		return domain.ErrTokenNotFound
	}
	if stored.Used {
		return domain.ErrTokenUsed
	}

	merged := append([]string(nil), stored.PositionsVoted...)
	for _, v := range votes {
		for _, p := range merged {
			if p == v.Position {
				return domain.ErrAlreadyVoted
			}
		}
		merged = append(merged, v.Position)
	}

	seen := make(map[string]struct{}, len(votes))
	for _, v := range votes {
		if _, taken := r.s.scopeIndex[v.ScopeKey]; taken {
			return domain.ErrAlreadyVoted
		}
		if _, dup := seen[v.ScopeKey]; dup {
			return domain.ErrAlreadyVoted
		}
		seen[v.ScopeKey] = struct{}{}
	}
	for _, v := range votes {
		if err := r.s.insertVoteLocked(v); err != nil {
			return err
		}
	}

	tok.PositionsVoted = merged
	if !tok.Used && tok.CoversAll(positions) {
		tok.Used = true
		now := time.Now()
		tok.UsedAt = &now
	}
	cp := *tok
	cp.PositionsVoted = append([]string(nil), merged...)
	r.s.tokens[tok.ID] = &cp
	return nil
}

func (r *tokenRepo) Counts(_ context.Context, electionID uuid.UUID) (int, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	issued, used := 0, 0
	for _, t := range r.s.tokens {
		if t.ElectionID != electionID {
			continue
		}
		issued++
		if t.Used {
			used++
		}
	}
	return issued, used, nil
}

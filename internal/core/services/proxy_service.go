package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/domain"
	"github.com/memberhall/elections/internal/core/ports"
)

// proxyService maintains the election's embedded ledger of delegated-voting
// authorizations.
type proxyService struct {
	electionRepo ports.ElectionRepository
	voteRepo     ports.VoteRepository
	members      ports.MemberDirectory
	audit        ports.AuditSink
	notifier     ports.Notifier
	now          func() time.Time
}

func NewProxyService(
	electionRepo ports.ElectionRepository,
	voteRepo ports.VoteRepository,
	members ports.MemberDirectory,
	audit ports.AuditSink,
	notifier ports.Notifier,
) ports.ProxyService {
	return &proxyService{
		electionRepo: electionRepo,
		voteRepo:     voteRepo,
		members:      members,
		audit:        audit,
		notifier:     notifier,
		now:          time.Now,
	}
}

func (s *proxyService) Grant(ctx context.Context, input ports.GrantProxyInput) (*domain.ProxyAuthorization, error) {
	election, err := s.electionRepo.GetByID(ctx, input.ElectionID)
	if err != nil {
		return nil, err
	}

	org, err := s.members.Organization(ctx, election.OrganizationID)
	if err != nil {
		return nil, err
	}
	if !org.ProxyVotingEnabled {
		return nil, domain.ErrProxyVotingDisabled
	}
	if input.DelegatorID == input.ProxyID {
		return nil, domain.ErrSelfProxy
	}
	for _, a := range election.ProxyAuthorizations {
		if a.DelegatorID == input.DelegatorID && a.Active() {
			return nil, domain.ErrDuplicateAuthorization
		}
	}

	auth := domain.ProxyAuthorization{
		ID:           uuid.New(),
		DelegatorID:  input.DelegatorID,
		ProxyID:      input.ProxyID,
		ProxyType:    input.ProxyType,
		Reason:       input.Reason,
		GrantedBy:    input.GrantedBy,
		AuthorizedAt: s.now(),
	}
	election.ProxyAuthorizations = append(election.ProxyAuthorizations, auth)
	if err := s.electionRepo.Update(ctx, election); err != nil {
		return nil, err
	}

	ev := domain.NewAuditEvent("proxy_granted", domain.SeverityInfo, map[string]any{
		"election_id":      election.ID.String(),
		"authorization_id": auth.ID.String(),
		"delegator_id":     auth.DelegatorID.String(),
		"proxy_id":         auth.ProxyID.String(),
		"proxy_type":       auth.ProxyType,
	})
	grantedBy := input.GrantedBy
	ev.UserID = &grantedBy
	_ = s.audit.Record(ctx, ev)

	return &auth, nil
}

func (s *proxyService) Revoke(ctx context.Context, electionID, authorizationID, revokedBy uuid.UUID) error {
	election, err := s.electionRepo.GetByID(ctx, electionID)
	if err != nil {
		return err
	}
	auth := election.Authorization(authorizationID)
	if auth == nil {
		return domain.ErrAuthorizationNotFound
	}
	if !auth.Active() {
		return domain.ErrAuthorizationRevoked
	}

	// An authorization cannot be revoked once a vote has been cast under it.
	used, err := s.voteRepo.HasProxyVote(ctx, electionID, authorizationID)
	if err != nil {
		return err
	}
	if used {
		return domain.ErrAuthorizationUsed
	}

	now := s.now()
	auth.RevokedAt = &now
	if err := s.electionRepo.Update(ctx, election); err != nil {
		return err
	}

	ev := domain.NewAuditEvent("proxy_revoked", domain.SeverityInfo, map[string]any{
		"election_id":      electionID.String(),
		"authorization_id": authorizationID.String(),
	})
	ev.UserID = &revokedBy
	_ = s.audit.Record(ctx, ev)
	return nil
}

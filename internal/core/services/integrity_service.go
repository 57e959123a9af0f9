package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/domain"
	"github.com/memberhall/elections/internal/core/ports"
)

// suspiciousIPThreshold flags any address with more active votes than this
// in the forensic report.
const suspiciousIPThreshold = 5

// integrityService is a read-only consumer of stored votes, tokens, and the
// audit trail; it reports, never alters.
type integrityService struct {
	electionRepo ports.ElectionRepository
	voteRepo     ports.VoteRepository
	tokenRepo    ports.TokenRepository
	signer       *VoteSigner
	audit        ports.AuditSink
}

func NewIntegrityService(
	electionRepo ports.ElectionRepository,
	voteRepo ports.VoteRepository,
	tokenRepo ports.TokenRepository,
	signer *VoteSigner,
	audit ports.AuditSink,
) ports.IntegrityService {
	return &integrityService{
		electionRepo: electionRepo,
		voteRepo:     voteRepo,
		tokenRepo:    tokenRepo,
		signer:       signer,
		audit:        audit,
	}
}

func (s *integrityService) VerifySignatures(ctx context.Context, electionID uuid.UUID) (*domain.SignatureReport, error) {
	if _, err := s.electionRepo.GetByID(ctx, electionID); err != nil {
		return nil, err
	}
	votes, err := s.voteRepo.ListActive(ctx, electionID)
	if err != nil {
		return nil, err
	}

	report := &domain.SignatureReport{ElectionID: electionID, Total: len(votes)}
	for i := range votes {
		v := votes[i]
		switch {
		case v.Signature == "":
			report.Unsigned++
		case s.signer.Verify(&v):
			report.Valid++
		default:
			report.TamperedIDs = append(report.TamperedIDs, v.ID)
		}
	}

	// A mismatch is never silently corrected; it is always surfaced at
	// critical severity.
	if !report.Clean() {
		tampered := make([]string, 0, len(report.TamperedIDs))
		for _, id := range report.TamperedIDs {
			tampered = append(tampered, id.String())
		}
		_ = s.audit.Record(ctx, domain.NewAuditEvent("vote_signature_mismatch", domain.SeverityCritical, map[string]any{
			"election_id":  electionID.String(),
			"unsigned":     report.Unsigned,
			"tampered_ids": tampered,
		}))
	}
	return report, nil
}

func (s *integrityService) Forensics(ctx context.Context, electionID uuid.UUID) (*domain.ForensicsReport, error) {
	sigReport, err := s.VerifySignatures(ctx, electionID)
	if err != nil {
		return nil, err
	}

	report := &domain.ForensicsReport{
		ElectionID:  electionID,
		Signatures:  *sigReport,
		GeneratedAt: time.Now(),
	}

	deleted, err := s.voteRepo.ListDeleted(ctx, electionID)
	if err != nil {
		return nil, err
	}
	for _, v := range deleted {
		report.DeletedVotes = append(report.DeletedVotes, domain.DeletedVoteSummary{
			VoteID:    v.ID,
			Position:  v.Position,
			DeletedAt: *v.DeletedAt,
			DeletedBy: v.DeletedBy,
			Reason:    v.DeletionReason,
		})
	}

	issued, used, err := s.tokenRepo.Counts(ctx, electionID)
	if err != nil {
		return nil, err
	}
	report.TokensIssued = issued
	report.TokensUsed = used

	votes, err := s.voteRepo.ListActive(ctx, electionID)
	if err != nil {
		return nil, err
	}

	report.VotesByIP = make(map[string]int)
	report.HourlyTimeline = make(map[string]int)
	proxyCounts := make(map[uuid.UUID]*domain.ProxyVoteSummary)
	for _, v := range votes {
		if v.IPAddress != "" {
			report.VotesByIP[v.IPAddress]++
		}
		report.HourlyTimeline[v.VotedAt.UTC().Format("2006-01-02T15")]++
		if v.IsProxyVote && v.ProxyAuthorizationID != nil {
			sum, ok := proxyCounts[*v.ProxyAuthorizationID]
			if !ok {
				sum = &domain.ProxyVoteSummary{AuthorizationID: *v.ProxyAuthorizationID}
				if v.ProxyVoterID != nil {
					sum.ProxyVoterID = *v.ProxyVoterID
				}
				proxyCounts[*v.ProxyAuthorizationID] = sum
			}
			sum.Votes++
		}
	}

	for ip, count := range report.VotesByIP {
		if count > suspiciousIPThreshold {
			report.SuspiciousIPs = append(report.SuspiciousIPs, ip)
		}
	}
	sort.Strings(report.SuspiciousIPs)

	for _, sum := range proxyCounts {
		report.ProxyVotes = append(report.ProxyVotes, *sum)
	}
	sort.Slice(report.ProxyVotes, func(i, j int) bool {
		return report.ProxyVotes[i].AuthorizationID.String() < report.ProxyVotes[j].AuthorizationID.String()
	})

	return report, nil
}

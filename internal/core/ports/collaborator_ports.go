package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/memberhall/elections/internal/core/domain"
)

// AuditSink receives the engine's structured audit tuples. Persistence,
// alerting thresholds, and retention belong to the implementation.
type AuditSink interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}

type BallotInvite struct {
	MemberID uuid.UUID
	Token    string
}

// Notifier delivers ballot links and leadership alerts. The engine only
// emits requests; transport is the collaborator's concern.
type Notifier interface {
	SendBallots(ctx context.Context, election *domain.Election, invites []BallotInvite) error
	Alert(ctx context.Context, election *domain.Election, subject, body string, severity domain.Severity) error
}

// Package notify carries ballot links and leadership alerts out of the
// engine. The log notifier is the default; a mail- or chat-backed
// implementation slots in behind the same port.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/memberhall/elections/internal/core/domain"
	"github.com/memberhall/elections/internal/core/ports"
)

type logNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) ports.Notifier {
	return &logNotifier{log: log.Named("notify")}
}

func (n *logNotifier) SendBallots(_ context.Context, election *domain.Election, invites []ports.BallotInvite) error {
	// Tokens are credentials; log only who is being invited.
	members := make([]string, 0, len(invites))
	for _, inv := range invites {
		members = append(members, inv.MemberID.String())
	}
	n.log.Info("ballot invites ready",
		zap.String("election_id", election.ID.String()),
		zap.String("title", election.Title),
		zap.Int("count", len(invites)),
		zap.Strings("member_ids", members),
	)
	return nil
}

func (n *logNotifier) Alert(_ context.Context, election *domain.Election, subject, body string, severity domain.Severity) error {
	n.log.Warn("leadership alert",
		zap.String("election_id", election.ID.String()),
		zap.String("subject", subject),
		zap.String("body", body),
		zap.String("severity", string(severity)),
	)
	return nil
}

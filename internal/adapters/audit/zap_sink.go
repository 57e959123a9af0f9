// Package audit provides a log-backed AuditSink. Events land in the
// structured log stream where log shippers pick them up.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/memberhall/elections/internal/core/domain"
	"github.com/memberhall/elections/internal/core/ports"
)

type zapSink struct {
	log *zap.Logger
}

func NewZapSink(log *zap.Logger) ports.AuditSink {
	return &zapSink{log: log.Named("audit")}
}

func (s *zapSink) Record(_ context.Context, event domain.AuditEvent) error {
	fields := []zap.Field{
		zap.String("event_type", event.Type),
		zap.String("category", event.Category),
		zap.String("severity", string(event.Severity)),
		zap.Time("occurred_at", event.OccurredAt),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.String()))
	}
	if event.IPAddress != "" {
		fields = append(fields, zap.String("ip_address", event.IPAddress))
	}
	if len(event.Data) > 0 {
		fields = append(fields, zap.Any("event_data", event.Data))
	}

	switch event.Severity {
	case domain.SeverityCritical, domain.SeverityHigh:
		s.log.Error("audit event", fields...)
	case domain.SeverityWarning:
		s.log.Warn("audit event", fields...)
	default:
		s.log.Info("audit event", fields...)
	}
	return nil
}

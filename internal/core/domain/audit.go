package domain

import (
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AuditEvent is the structured tuple the engine emits; persistence and
// alerting belong to the sink. Event data never contains secrets.
type AuditEvent struct {
	Type       string         `json:"event_type"`
	Category   string         `json:"category"`
	Severity   Severity       `json:"severity"`
	Data       map[string]any `json:"event_data,omitempty"`
	UserID     *uuid.UUID     `json:"user_id,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

const AuditCategoryElections = "elections"

func NewAuditEvent(eventType string, severity Severity, data map[string]any) AuditEvent {
	return AuditEvent{
		Type:       eventType,
		Category:   AuditCategoryElections,
		Severity:   severity,
		Data:       data,
		OccurredAt: time.Now(),
	}
}

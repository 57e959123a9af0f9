package ports

import (
	"context"

	"github.com/google/uuid"
)

// MemberProfile is the identity collaborator's view of a member, as far as
// the voting engine needs it.
type MemberProfile struct {
	ID         uuid.UUID
	Active     bool
	RoleType   string
	MemberType string

	TierCanVote            bool
	TierRequiresAttendance bool
	TierMinAttendancePct   float64
	TierLookbackMonths     int

	// VotingOverride is a secretary-granted per-member decision that, when
	// present, replaces the tier and position checks entirely.
	VotingOverride *bool
}

type OrgSettings struct {
	ProxyVotingEnabled bool
}

type MemberDirectory interface {
	Profile(ctx context.Context, memberID uuid.UUID) (*MemberProfile, error)
	AttendancePercent(ctx context.Context, memberID uuid.UUID, lookbackMonths int) (float64, error)
	ActiveMemberIDs(ctx context.Context, organizationID uuid.UUID) ([]uuid.UUID, error)
	Organization(ctx context.Context, organizationID uuid.UUID) (*OrgSettings, error)
}
